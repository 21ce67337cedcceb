// Package crawl drives the batched walk over the site's listing pages and
// coalesces duplicate detail-page fetches.
package crawl

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"gamedex/pkg/config"
	"gamedex/pkg/fetch"
	"gamedex/pkg/models"
	"gamedex/pkg/site"
	"gamedex/pkg/utils"
)

// Reasons a crawl stops. Reported in the final summary log.
const (
	stopEndOfList   = "end_of_list"
	stopCapReached  = "cap_reached"
	stopEmptyStreak = "empty_streak"
	stopCancelled   = "cancelled"
	stopRobots      = "robots_disallowed"
)

// maxInFlightPages bounds concurrent page fetches within a batch, so a
// large pages_per_batch widens the batch without widening the load on
// the site at any instant.
const maxInFlightPages = 4

// ProgressFunc receives a stats snapshot after every settled batch.
type ProgressFunc func(stats models.CrawlStats)

// Result is the outcome of one crawl.
type Result struct {
	ScanID string
	Games  []models.GameSummary
	Stats  models.CrawlStats
}

// Controller walks the paginated listing in sequential batches of
// concurrently fetched pages, merging the supplemental feed at the end.
// A Controller runs one crawl at a time.
type Controller struct {
	source     site.Source
	cfg        config.ScanConfig
	onProgress ProgressFunc
	log        *logrus.Entry

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

// NewController creates a crawl Controller. onProgress may be nil.
func NewController(source site.Source, cfg config.ScanConfig, onProgress ProgressFunc, log *logrus.Entry) *Controller {
	return &Controller{
		source:     source,
		cfg:        cfg,
		onProgress: onProgress,
		log:        log,
	}
}

// Cancel requests cooperative cancellation of the running crawl. Idempotent
// and safe to call when no crawl is running. Pages already in flight are
// awaited, not aborted.
func (c *Controller) Cancel() {
	c.cancelMu.Lock()
	defer c.cancelMu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

type pageResult struct {
	result *models.ListingResult
	err    error
}

type feedResult struct {
	entries map[string]models.FeedEntry
	err     error
}

// Run executes the crawl to completion. Per-page failures are counted in
// the result's stats, never abort the crawl. A crawl that ends with zero
// items returns the empty result alongside ErrNoItemsFound so callers can
// offer a retry.
func (c *Controller) Run(ctx context.Context) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelMu.Lock()
	c.cancel = cancel
	c.cancelMu.Unlock()
	defer func() {
		c.cancelMu.Lock()
		c.cancel = nil
		c.cancelMu.Unlock()
		cancel()
	}()

	scanID := uuid.NewString()
	scanLog := c.log.WithField("scan_id", scanID)
	scanLog.WithFields(logrus.Fields{
		"pages_per_batch": c.cfg.PagesPerBatch,
		"max_games":       c.cfg.MaxGames,
		"batch_delay":     c.cfg.BatchDelay,
	}).Info("Starting scan")

	// The feed is independent of pagination; fetch it alongside the crawl
	// and join before merging.
	feedCh := make(chan feedResult, 1)
	go func() {
		entries, err := c.source.FetchFeed(ctx)
		feedCh <- feedResult{entries: entries, err: err}
	}()

	result := &Result{ScanID: scanID}
	seenTitles := make(map[string]struct{})
	seenURLs := make(map[string]struct{})
	batchPause := fetch.NewRateLimiter(c.cfg.BatchDelay, scanLog.Logger)

	page := 1
	emptyStreak := 0
	stopReason := ""
	var robotsErr error

	for stopReason == "" {
		if ctx.Err() != nil {
			stopReason = stopCancelled
			break
		}
		// Inter-batch delay. No-op before the first batch; skipped
		// entirely when cancellation arrives during the wait.
		if err := batchPause.Wait(ctx); err != nil {
			stopReason = stopCancelled
			break
		}

		results := c.fetchBatch(ctx, page, scanLog)
		batchPause.MarkRequest()

		if ctx.Err() != nil {
			// The batch was awaited above; its results are discarded.
			stopReason = stopCancelled
			break
		}

		newItems := 0
		endOfList := false
		for _, pr := range results {
			if pr.err != nil {
				// A disallowed listing path is a policy decision, not a
				// transient failure; the whole scan stops.
				if errors.Is(pr.err, utils.ErrRobotsDisallowed) {
					stopReason = stopRobots
					robotsErr = pr.err
					break
				}
				result.Stats.AddError(utils.CategorizeError(pr.err))
				continue
			}
			result.Stats.PagesScanned++
			if pr.result.EndOfList {
				endOfList = true
			}
			for _, game := range pr.result.Games {
				urlKey := utils.NormalizeURLKey(game.URL)
				if _, dup := seenTitles[game.Title]; dup {
					continue
				}
				if _, dup := seenURLs[urlKey]; dup {
					continue
				}
				seenTitles[game.Title] = struct{}{}
				seenURLs[urlKey] = struct{}{}
				result.Games = append(result.Games, game)
				newItems++
				if c.cfg.MaxGames > 0 && len(result.Games) >= c.cfg.MaxGames {
					stopReason = stopCapReached
					break
				}
			}
			if stopReason != "" {
				break
			}
		}

		result.Stats.ItemsFound = len(result.Games)
		if c.onProgress != nil {
			c.onProgress(result.Stats)
		}

		if stopReason != "" {
			break
		}
		if endOfList {
			stopReason = stopEndOfList
			break
		}
		if newItems == 0 {
			emptyStreak++
			if emptyStreak >= c.cfg.MaxConsecutiveEmptyBatches {
				stopReason = stopEmptyStreak
				break
			}
		} else {
			emptyStreak = 0
		}
		page += c.cfg.PagesPerBatch
	}

	c.mergeFeed(<-feedCh, result, seenTitles, scanLog)
	result.Stats.ItemsFound = len(result.Games)

	scanLog.WithFields(logrus.Fields{
		"reason": stopReason,
		"items":  result.Stats.ItemsFound,
		"pages":  result.Stats.PagesScanned,
		"errors": result.Stats.ErrorCount(),
	}).Info("Scan finished")
	if result.Stats.ErrorCount() > 0 {
		scanLog.Warn(result.Stats.Summary())
	}

	if robotsErr != nil {
		return result, utils.WrapErrorf(robotsErr, "scan %s aborted", scanID)
	}
	if len(result.Games) == 0 {
		return result, utils.WrapErrorf(utils.ErrNoItemsFound, "scan %s stopped (%s)", scanID, stopReason)
	}
	return result, nil
}

// fetchBatch fetches pagesPerBatch consecutive listing pages, at most
// maxInFlightPages at a time, and returns their results in input order
// once every page has settled.
func (c *Controller) fetchBatch(ctx context.Context, firstPage int, scanLog *logrus.Entry) []pageResult {
	n := c.cfg.PagesPerBatch
	results := make([]pageResult, n)
	sem := semaphore.NewWeighted(maxInFlightPages)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = pageResult{err: err}
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			res, err := c.source.FetchListingPage(ctx, firstPage+i)
			results[i] = pageResult{result: res, err: err}
		}(i)
	}
	wg.Wait()

	scanLog.WithFields(logrus.Fields{"first_page": firstPage, "pages": n}).Debug("Batch settled")
	return results
}

// mergeFeed backfills cover and date from the feed onto matching titles.
// When the listing crawl came up empty, the feed becomes the sole source.
func (c *Controller) mergeFeed(feed feedResult, result *Result, seenTitles map[string]struct{}, scanLog *logrus.Entry) {
	if feed.err != nil {
		scanLog.Warnf("Feed fetch failed, skipping merge: %v", feed.err)
		return
	}
	if len(feed.entries) == 0 {
		return
	}

	if len(result.Games) == 0 {
		scanLog.WithField("entries", len(feed.entries)).Info("Listing crawl empty, using feed as sole source")
		titles := make([]string, 0, len(feed.entries))
		for title := range feed.entries {
			titles = append(titles, title)
		}
		sort.Strings(titles)
		for _, title := range titles {
			// The cap applies to feed-sourced items the same as crawled ones.
			if c.cfg.MaxGames > 0 && len(result.Games) >= c.cfg.MaxGames {
				break
			}
			entry := feed.entries[title]
			seenTitles[title] = struct{}{}
			result.Games = append(result.Games, models.GameSummary{
				Title: title,
				URL:   entry.URL,
				Date:  entry.Date,
				Cover: entry.Cover,
			})
		}
		return
	}

	backfilled := 0
	for i := range result.Games {
		entry, ok := feed.entries[result.Games[i].Title]
		if !ok {
			continue
		}
		if result.Games[i].Cover == "" && entry.Cover != "" {
			result.Games[i].Cover = entry.Cover
			backfilled++
		}
		if result.Games[i].Date == "" && entry.Date != "" {
			result.Games[i].Date = entry.Date
			backfilled++
		}
	}
	if backfilled > 0 {
		scanLog.WithField("fields", backfilled).Debug("Backfilled summary fields from feed")
	}
}
