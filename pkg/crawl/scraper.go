package crawl

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"gamedex/pkg/models"
	"gamedex/pkg/site"
)

// Scraper fetches individual game pages while coalescing concurrent
// requests for the same key into a single network fetch. The in-flight
// entry is removed when the fetch settles, success or failure, so a retry
// after an error always issues a fresh request.
type Scraper struct {
	source site.Source
	group  singleflight.Group
	log    *logrus.Entry
}

// NewScraper creates a Scraper.
func NewScraper(source site.Source, log *logrus.Entry) *Scraper {
	return &Scraper{source: source, log: log}
}

// Get returns the detail for the game page at pageURL. Concurrent calls
// with the same key share one underlying fetch and all receive its result.
// The shared fetch runs under the first caller's context; a later caller's
// cancellation does not abort it.
//
// Each caller gets its own shallow copy of the fetched detail, so callers
// may backfill scalar fields without racing each other. The link and
// screenshot slices are shared and must be treated as read-only.
func (s *Scraper) Get(ctx context.Context, pageURL, key string) (*models.GameDetail, error) {
	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		return s.source.FetchGameDetail(ctx, pageURL)
	})
	if shared {
		s.log.WithField("key", key).Debug("Coalesced duplicate detail fetch")
	}
	if err != nil {
		return nil, err
	}
	detail := *v.(*models.GameDetail)
	return &detail, nil
}
