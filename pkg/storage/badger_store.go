package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"gamedex/pkg/config"
	"gamedex/pkg/log"
	"gamedex/pkg/models"
	"gamedex/pkg/utils"
)

const (
	gameKeyPrefix = "game:" // title -> GameDetail JSON
	favKeyPrefix  = "fav:"  // title -> empty value, presence = favorited
	scanConfigKey = "config:scan"

	catalogueDBDir = "catalogue_db"
)

// BadgerStore implements CatalogueStore on BadgerDB. One store instance
// per site, living under stateDir.
type BadgerStore struct {
	db  *badger.DB
	log *logrus.Entry
}

// NewBadgerStore opens (or creates) the catalogue database for siteDomain
// under stateDir.
func NewBadgerStore(stateDir, siteDomain string, logger *logrus.Entry) (*BadgerStore, error) {
	dbPath := filepath.Join(stateDir, utils.SanitizeDirName(siteDomain)+"_"+catalogueDBDir)
	logger.Infof("Opening catalogue database at: %s", dbPath)

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("cannot create state directory %s: %w", dbPath, err)
	}

	opts := badger.DefaultOptions(dbPath).
		WithLogger(log.NewBadgerAdapter(logger)).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: opening badger database at %s: %v", utils.ErrDatabase, dbPath, err)
	}

	return &BadgerStore{db: db, log: logger}, nil
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction
// conflicts. Concurrent MVCC transactions on overlapping keys can return
// badger.ErrConflict; these resolve in microseconds.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := 0; i < maxConflictRetries; i++ {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// PutGame implements GameStore.
func (s *BadgerStore) PutGame(detail *models.GameDetail) error {
	if detail.Title == "" {
		return fmt.Errorf("%w: refusing to store game with empty title", utils.ErrDatabase)
	}
	value, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("%w: marshalling detail for %q: %v", utils.ErrParsing, detail.Title, err)
	}

	key := []byte(gameKeyPrefix + detail.Title)
	if err := s.dbUpdate(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	}); err != nil {
		return fmt.Errorf("%w: storing game %q: %v", utils.ErrDatabase, detail.Title, err)
	}
	s.log.WithField("title", detail.Title).Debug("Stored game detail")
	return nil
}

// GetGame implements GameStore.
func (s *BadgerStore) GetGame(title string) (*models.GameDetail, error) {
	key := []byte(gameKeyPrefix + title)
	var detail *models.GameDetail

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return utils.WrapErrorf(utils.ErrGameNotCached, "%q", title)
		}
		if err != nil {
			return fmt.Errorf("%w: getting game %q: %v", utils.ErrDatabase, title, err)
		}
		return item.Value(func(val []byte) error {
			var decoded models.GameDetail
			if err := json.Unmarshal(val, &decoded); err != nil {
				return fmt.Errorf("%w: unmarshalling game %q: %v", utils.ErrParsing, title, err)
			}
			detail = &decoded
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// ListGames implements GameStore. Corrupted entries are skipped with a
// warning rather than failing the whole listing.
func (s *BadgerStore) ListGames() ([]*models.GameDetail, error) {
	var games []*models.GameDetail

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(gameKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			if err := item.Value(func(val []byte) error {
				var decoded models.GameDetail
				if err := json.Unmarshal(val, &decoded); err != nil {
					s.log.Warnf("Skipping corrupted catalogue entry %q: %v", string(item.Key()), err)
					return nil
				}
				games = append(games, &decoded)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing games: %v", utils.ErrDatabase, err)
	}

	sort.Slice(games, func(i, j int) bool { return games[i].Title < games[j].Title })
	return games, nil
}

// DeleteAllGames implements GameStore.
func (s *BadgerStore) DeleteAllGames() error {
	count, err := s.deletePrefix([]byte(gameKeyPrefix))
	if err != nil {
		return fmt.Errorf("%w: clearing game cache: %v", utils.ErrDatabase, err)
	}
	s.log.WithField("deleted", count).Info("Cleared game cache")
	return nil
}

// AddFavorite implements FavoriteStore.
func (s *BadgerStore) AddFavorite(title string) error {
	if err := s.dbUpdate(func(txn *badger.Txn) error {
		return txn.Set([]byte(favKeyPrefix+title), []byte{})
	}); err != nil {
		return fmt.Errorf("%w: adding favorite %q: %v", utils.ErrDatabase, title, err)
	}
	return nil
}

// RemoveFavorite implements FavoriteStore. Removing an absent favorite is
// not an error.
func (s *BadgerStore) RemoveFavorite(title string) error {
	if err := s.dbUpdate(func(txn *badger.Txn) error {
		return txn.Delete([]byte(favKeyPrefix + title))
	}); err != nil {
		return fmt.Errorf("%w: removing favorite %q: %v", utils.ErrDatabase, title, err)
	}
	return nil
}

// ListFavorites implements FavoriteStore. Titles come back sorted.
func (s *BadgerStore) ListFavorites() ([]string, error) {
	var titles []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(favKeyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			titles = append(titles, strings.TrimPrefix(key, favKeyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing favorites: %v", utils.ErrDatabase, err)
	}

	sort.Strings(titles)
	return titles, nil
}

// SaveScanConfig implements ConfigStore.
func (s *BadgerStore) SaveScanConfig(cfg *config.ScanConfig) error {
	value, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("%w: marshalling scan config: %v", utils.ErrParsing, err)
	}
	if err := s.dbUpdate(func(txn *badger.Txn) error {
		return txn.Set([]byte(scanConfigKey), value)
	}); err != nil {
		return fmt.Errorf("%w: saving scan config: %v", utils.ErrDatabase, err)
	}
	return nil
}

// LoadScanConfig implements ConfigStore.
func (s *BadgerStore) LoadScanConfig() (*config.ScanConfig, error) {
	var cfg *config.ScanConfig

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(scanConfigKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: getting scan config: %v", utils.ErrDatabase, err)
		}
		return item.Value(func(val []byte) error {
			var decoded config.ScanConfig
			if err := json.Unmarshal(val, &decoded); err != nil {
				return fmt.Errorf("%w: unmarshalling scan config: %v", utils.ErrParsing, err)
			}
			cfg = &decoded
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// ClearScanConfig implements ConfigStore.
func (s *BadgerStore) ClearScanConfig() error {
	if err := s.dbUpdate(func(txn *badger.Txn) error {
		return txn.Delete([]byte(scanConfigKey))
	}); err != nil {
		return fmt.Errorf("%w: clearing scan config: %v", utils.ErrDatabase, err)
	}
	return nil
}

// deletePrefix removes every key under prefix, batching deletes to stay
// under badger's transaction size limit.
func (s *BadgerStore) deletePrefix(prefix []byte) (int, error) {
	const batchSize = 1000
	deleted := 0

	for {
		var keys [][]byte
		err := s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Rewind(); it.Valid() && len(keys) < batchSize; it.Next() {
				keys = append(keys, it.Item().KeyCopy(nil))
			}
			return nil
		})
		if err != nil {
			return deleted, err
		}
		if len(keys) == 0 {
			return deleted, nil
		}

		if err := s.dbUpdate(func(txn *badger.Txn) error {
			for _, key := range keys {
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return deleted, err
		}
		deleted += len(keys)
	}
}

// RunGC implements StoreAdmin. Runs badger's value log garbage collection
// on a ticker until ctx is cancelled.
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Debug("BadgerDB GC goroutine started")
	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				continue
			}
			// Loop GC until there is nothing left to rewrite.
			for {
				err := s.db.RunValueLogGC(0.5)
				if errors.Is(err, badger.ErrNoRewrite) {
					break
				}
				if err != nil {
					s.log.Warnf("BadgerDB GC error: %v", err)
					break
				}
			}
		case <-ctx.Done():
			s.log.Debug("BadgerDB GC goroutine stopping")
			return
		}
	}
}

// Close implements StoreAdmin.
func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	s.log.Debug("Closing catalogue database")
	return s.db.Close()
}

var _ CatalogueStore = (*BadgerStore)(nil)
