package storage

import (
	"context"
	"time"

	"gamedex/pkg/config"
	"gamedex/pkg/models"
)

// GameStore persists scraped game details keyed by title.
type GameStore interface {
	// PutGame stores or overwrites the detail for its title.
	PutGame(detail *models.GameDetail) error

	// GetGame retrieves a cached detail. Returns ErrGameNotCached when the
	// title has never been scraped.
	GetGame(title string) (*models.GameDetail, error)

	// ListGames returns all cached details sorted by title.
	ListGames() ([]*models.GameDetail, error)

	// DeleteAllGames wipes the cached catalogue. Favorites and the
	// persisted scan config survive.
	DeleteAllGames() error
}

// FavoriteStore persists the set of favorited titles, independent of the
// game cache.
type FavoriteStore interface {
	AddFavorite(title string) error
	RemoveFavorite(title string) error
	ListFavorites() ([]string, error)
}

// ConfigStore persists the user's scan settings between runs.
type ConfigStore interface {
	SaveScanConfig(cfg *config.ScanConfig) error

	// LoadScanConfig returns (nil, nil) when nothing has been saved.
	LoadScanConfig() (*config.ScanConfig, error)

	ClearScanConfig() error
}

// StoreAdmin handles lifecycle operations.
type StoreAdmin interface {
	// RunGC runs periodic value-log garbage collection. Should be run in a
	// goroutine; returns when ctx is cancelled.
	RunGC(ctx context.Context, interval time.Duration)

	// Close cleanly closes the database.
	Close() error
}

// CatalogueStore combines all store interfaces for components that need
// full access.
type CatalogueStore interface {
	GameStore
	FavoriteStore
	ConfigStore
	StoreAdmin
}
