// Package library is the surface consumers drive: scans, cached game
// lookups, favorites and persisted scan settings.
package library

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"gamedex/pkg/config"
	"gamedex/pkg/crawl"
	"gamedex/pkg/models"
	"gamedex/pkg/site"
	"gamedex/pkg/storage"
	"gamedex/pkg/utils"
)

// Notifier receives fire-and-forget user notifications. Implementations
// must not block; the library never awaits them.
type Notifier interface {
	Notify(title, body string)
}

// Library ties the crawl controller, the scrape lock and the catalogue
// store together. One scan runs at a time.
type Library struct {
	store    storage.CatalogueStore
	source   site.Source
	scraper  *crawl.Scraper
	scanCfg  config.ScanConfig
	notifier Notifier
	log      *logrus.Entry

	mu         sync.Mutex
	controller *crawl.Controller
}

// New creates a Library. notifier may be nil.
func New(store storage.CatalogueStore, source site.Source, scanCfg config.ScanConfig, notifier Notifier, log *logrus.Entry) *Library {
	return &Library{
		store:    store,
		source:   source,
		scraper:  crawl.NewScraper(source, log.WithField("component", "scraper")),
		scanCfg:  scanCfg,
		notifier: notifier,
		log:      log,
	}
}

// StartScan runs a full listing crawl and persists a placeholder for every
// newly discovered title. Returns ErrScanInProgress when a scan is already
// running. Per-page errors are reported in the result's stats.
func (l *Library) StartScan(ctx context.Context, onProgress crawl.ProgressFunc) (*crawl.Result, error) {
	l.mu.Lock()
	if l.controller != nil {
		l.mu.Unlock()
		return nil, utils.ErrScanInProgress
	}
	controller := crawl.NewController(l.source, l.scanCfg, onProgress, l.log)
	l.controller = controller
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.controller = nil
		l.mu.Unlock()
	}()

	result, err := controller.Run(ctx)
	if err != nil {
		return result, err
	}

	stored := 0
	for _, summary := range result.Games {
		// Fully scraped entries in the cache are never downgraded to
		// placeholders; their summary fields get refreshed instead.
		existing, getErr := l.store.GetGame(summary.Title)
		if getErr == nil && existing.Scraped() {
			refreshSummary(existing, summary)
			if putErr := l.store.PutGame(existing); putErr != nil {
				l.log.Warnf("Refreshing %q failed: %v", summary.Title, putErr)
			}
			continue
		}
		placeholder := &models.GameDetail{GameSummary: summary}
		if putErr := l.store.PutGame(placeholder); putErr != nil {
			// Store failures are non-fatal for a scan; the result set is
			// still returned to the caller.
			l.log.Warnf("Storing placeholder for %q failed: %v", summary.Title, putErr)
			continue
		}
		stored++
	}
	l.log.WithFields(logrus.Fields{"items": len(result.Games), "new_placeholders": stored}).Info("Scan results persisted")

	l.notify("Scan finished", fmt.Sprintf("%d games found (%d pages scanned)", result.Stats.ItemsFound, result.Stats.PagesScanned))
	return result, nil
}

// CancelScan requests cancellation of the running scan. Idempotent and safe
// when no scan is running.
func (l *Library) CancelScan() {
	l.mu.Lock()
	controller := l.controller
	l.mu.Unlock()
	if controller != nil {
		controller.Cancel()
	}
}

// GetGameDetail returns the full detail for a title, serving from the
// catalogue when the title was already scraped and fetching (coalesced per
// title) otherwise. pageURL may be empty when the title is expected to be
// cached.
func (l *Library) GetGameDetail(ctx context.Context, title, pageURL string) (*models.GameDetail, error) {
	cached, err := l.store.GetGame(title)
	if err == nil && cached.Scraped() {
		l.log.WithField("title", title).Debug("Serving game detail from cache")
		return cached, nil
	}
	if err != nil && !errors.Is(err, utils.ErrGameNotCached) {
		return nil, err
	}

	if pageURL == "" {
		if cached != nil {
			pageURL = cached.URL
		}
		if pageURL == "" {
			return nil, utils.WrapErrorf(utils.ErrGameNotCached, "%q has no known page URL", title)
		}
	}

	detail, err := l.scraper.Get(ctx, pageURL, title)
	if err != nil {
		return nil, err
	}

	// The listing knows cover and date; the detail page often doesn't.
	if cached != nil {
		refreshSummary(detail, cached.GameSummary)
	}
	if detail.Title == "" {
		detail.Title = title
	}

	if putErr := l.store.PutGame(detail); putErr != nil {
		l.log.Warnf("Caching detail for %q failed: %v", title, putErr)
	}
	return detail, nil
}

// ListGames returns the cached catalogue sorted by title.
func (l *Library) ListGames() ([]*models.GameDetail, error) {
	return l.store.ListGames()
}

// ClearCache wipes cached game details. Favorites and scan settings are
// kept.
func (l *Library) ClearCache() error {
	return l.store.DeleteAllGames()
}

// AddFavorite marks a title as favorited.
func (l *Library) AddFavorite(title string) error {
	return l.store.AddFavorite(title)
}

// RemoveFavorite unmarks a favorited title.
func (l *Library) RemoveFavorite(title string) error {
	return l.store.RemoveFavorite(title)
}

// Favorites lists favorited titles sorted alphabetically.
func (l *Library) Favorites() ([]string, error) {
	return l.store.ListFavorites()
}

// SaveScanSettings validates and persists scan settings for future runs.
func (l *Library) SaveScanSettings(cfg config.ScanConfig) error {
	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, w := range warnings {
			l.log.Warnf("Scan settings: %s", w)
		}
	}
	return l.store.SaveScanConfig(&cfg)
}

// ScanSettings returns persisted scan settings, falling back to the
// configured defaults when nothing was saved.
func (l *Library) ScanSettings() (config.ScanConfig, error) {
	saved, err := l.store.LoadScanConfig()
	if err != nil {
		return l.scanCfg, err
	}
	if saved == nil {
		return l.scanCfg, nil
	}
	saved.Validate()
	return *saved, nil
}

// ClearScanSettings removes persisted scan settings.
func (l *Library) ClearScanSettings() error {
	return l.store.ClearScanConfig()
}

// refreshSummary backfills summary fields on detail from summary without
// clobbering values the detail page itself provided.
func refreshSummary(detail *models.GameDetail, summary models.GameSummary) {
	if detail.URL == "" {
		detail.URL = summary.URL
	}
	if detail.Cover == "" {
		detail.Cover = summary.Cover
	}
	if detail.Date == "" {
		detail.Date = summary.Date
	}
}

func (l *Library) notify(title, body string) {
	if l.notifier == nil {
		return
	}
	// Fire and forget; a slow notifier must not hold up the caller.
	go l.notifier.Notify(title, body)
}
