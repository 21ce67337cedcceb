package crawl

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamedex/pkg/config"
	"gamedex/pkg/models"
	"gamedex/pkg/utils"
)

// fakeSource is an in-memory site.Source. Pages not present in the pages
// map behave like a 404: empty result with EndOfList set.
type fakeSource struct {
	mu           sync.Mutex
	pages        map[int]*models.ListingResult
	pageErrs     map[int]error
	feed         map[string]models.FeedEntry
	feedErr      error
	listingCalls []int
	listingDelay time.Duration
	inFlight     int
	peakInFlight int
	detailCalls  int
	detailDelay  time.Duration
}

func (f *fakeSource) FetchListingPage(ctx context.Context, page int) (*models.ListingResult, error) {
	f.mu.Lock()
	f.listingCalls = append(f.listingCalls, page)
	f.inFlight++
	if f.inFlight > f.peakInFlight {
		f.peakInFlight = f.inFlight
	}
	f.mu.Unlock()

	if f.listingDelay > 0 {
		time.Sleep(f.listingDelay)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if err, ok := f.pageErrs[page]; ok {
		return nil, err
	}
	if result, ok := f.pages[page]; ok {
		return result, nil
	}
	return &models.ListingResult{EndOfList: true}, nil
}

func (f *fakeSource) FetchFeed(ctx context.Context) (map[string]models.FeedEntry, error) {
	return f.feed, f.feedErr
}

func (f *fakeSource) FetchGameDetail(ctx context.Context, pageURL string) (*models.GameDetail, error) {
	f.mu.Lock()
	f.detailCalls++
	f.mu.Unlock()
	if f.detailDelay > 0 {
		time.Sleep(f.detailDelay)
	}
	detail := &models.GameDetail{}
	detail.URL = pageURL
	detail.Title = "GAME AT " + pageURL
	detail.ScrapedAt = time.Now()
	return detail, nil
}

func (f *fakeSource) calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.listingCalls...)
}

func (f *fakeSource) peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peakInFlight
}

func listingPage(firstItem, count int) *models.ListingResult {
	result := &models.ListingResult{}
	for i := 0; i < count; i++ {
		n := firstItem + i
		result.Games = append(result.Games, models.GameSummary{
			Title: fmt.Sprintf("GAME %03d", n),
			URL:   fmt.Sprintf("https://example.com/game-%03d-ps5/", n),
		})
	}
	return result
}

func testScanConfig() config.ScanConfig {
	return config.ScanConfig{
		PagesPerBatch:              2,
		PageFetchTimeout:           time.Second,
		BatchDelay:                 time.Millisecond,
		MaxConsecutiveEmptyBatches: 2,
	}
}

func newTestController(source *fakeSource, cfg config.ScanConfig, onProgress ProgressFunc) *Controller {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewController(source, cfg, onProgress, logrus.NewEntry(logger))
}

func TestController_WalksUntilEndOfList(t *testing.T) {
	source := &fakeSource{pages: map[int]*models.ListingResult{
		1: listingPage(1, 10),
		2: listingPage(11, 10),
		3: listingPage(21, 5),
		// page 4 and beyond: 404 -> EndOfList
	}}

	c := newTestController(source, testScanConfig(), nil)
	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.Games, 25)
	assert.Equal(t, 25, result.Stats.ItemsFound)
	assert.Equal(t, 0, result.Stats.ErrorCount(), "end-of-list is not an error")
	assert.Equal(t, "GAME 001", result.Games[0].Title, "batch results keep input order")
	assert.NotEmpty(t, result.ScanID)
}

func TestController_CapReached(t *testing.T) {
	pages := make(map[int]*models.ListingResult)
	for p := 1; p <= 30; p++ {
		pages[p] = listingPage((p-1)*10+1, 10) // 300 items available
	}
	source := &fakeSource{pages: pages}

	cfg := testScanConfig()
	cfg.MaxGames = 50
	c := newTestController(source, cfg, nil)

	result, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Games, 50)

	// 50 items at 10 per page and 2 pages per batch is 3 batches; the cap
	// stops the crawl there instead of walking all 30 pages.
	calls := source.calls()
	assert.LessOrEqual(t, len(calls), 6)
}

func TestController_DeduplicatesAcrossPages(t *testing.T) {
	// Pages 2 and 3 overlap: items 11-20 appear on both.
	source := &fakeSource{pages: map[int]*models.ListingResult{
		1: listingPage(1, 10),
		2: listingPage(11, 10),
		3: listingPage(11, 10),
	}}

	c := newTestController(source, testScanConfig(), nil)
	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.Games, 20)
	seen := make(map[string]int)
	for _, g := range result.Games {
		seen[g.Title]++
	}
	for title, n := range seen {
		assert.Equal(t, 1, n, "title %q appears more than once", title)
	}
}

func TestController_EmptyStreakStops(t *testing.T) {
	// Pages exist but never yield items and never signal end-of-list.
	pages := make(map[int]*models.ListingResult)
	for p := 1; p <= 100; p++ {
		pages[p] = &models.ListingResult{}
	}
	source := &fakeSource{pages: pages}

	cfg := testScanConfig()
	cfg.MaxConsecutiveEmptyBatches = 2
	c := newTestController(source, cfg, nil)

	result, err := c.Run(context.Background())
	require.ErrorIs(t, err, utils.ErrNoItemsFound)
	assert.Empty(t, result.Games)
	assert.Len(t, source.calls(), 4, "two empty batches of two pages each")
}

func TestController_PageErrorsAreCountedNotFatal(t *testing.T) {
	source := &fakeSource{
		pages: map[int]*models.ListingResult{
			1: listingPage(1, 10),
		},
		pageErrs: map[int]error{
			2: utils.WrapErrorf(utils.ErrServerHTTPError, "status 500"),
		},
	}

	c := newTestController(source, testScanConfig(), nil)
	result, err := c.Run(context.Background())
	require.NoError(t, err, "per-page errors never abort a crawl")

	assert.Len(t, result.Games, 10)
	assert.Equal(t, 1, result.Stats.ServerErrors)
	// Page 1 plus the two end-of-list pages; the failed page is not counted.
	assert.Equal(t, 3, result.Stats.PagesScanned)
}

func TestController_RobotsDisallowAborts(t *testing.T) {
	source := &fakeSource{
		pageErrs: map[int]error{
			1: utils.WrapErrorf(utils.ErrRobotsDisallowed, "listing page 1"),
		},
	}

	c := newTestController(source, testScanConfig(), nil)
	_, err := c.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrRobotsDisallowed)
	// The first batch is the only one dispatched.
	assert.LessOrEqual(t, len(source.calls()), 2)
}

func TestController_Cancellation(t *testing.T) {
	pages := make(map[int]*models.ListingResult)
	for p := 1; p <= 100; p++ {
		pages[p] = listingPage((p-1)*10+1, 10)
	}
	source := &fakeSource{pages: pages}

	cfg := testScanConfig()
	cfg.BatchDelay = 50 * time.Millisecond

	var c *Controller
	cancelled := false
	c = newTestController(source, cfg, func(stats models.CrawlStats) {
		if !cancelled {
			cancelled = true
			c.Cancel()
		}
	})

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	// One batch settled before Cancel; no further batches were dispatched.
	assert.Len(t, source.calls(), cfg.PagesPerBatch)
	assert.Len(t, result.Games, 20, "partial results from the settled batch survive")
}

func TestController_CancelIdempotentWhenIdle(t *testing.T) {
	c := newTestController(&fakeSource{}, testScanConfig(), nil)
	assert.NotPanics(t, func() {
		c.Cancel()
		c.Cancel()
	})
}

func TestController_FeedBackfillsCoverAndDate(t *testing.T) {
	source := &fakeSource{
		pages: map[int]*models.ListingResult{
			1: listingPage(1, 2),
		},
		feed: map[string]models.FeedEntry{
			"GAME 001": {Title: "GAME 001", Cover: "https://example.com/covers/1.jpg", Date: "2023-01-02"},
		},
	}

	c := newTestController(source, testScanConfig(), nil)
	result, err := c.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Games, 2)
	assert.Equal(t, "https://example.com/covers/1.jpg", result.Games[0].Cover)
	assert.Equal(t, "2023-01-02", result.Games[0].Date)
	assert.Empty(t, result.Games[1].Cover)
}

func TestController_BatchConcurrencyBounded(t *testing.T) {
	// A batch wider than the in-flight limit must still fetch every page,
	// just never more than maxInFlightPages of them at once.
	source := &fakeSource{
		pages:        map[int]*models.ListingResult{1: listingPage(1, 10)},
		listingDelay: 20 * time.Millisecond,
	}

	cfg := testScanConfig()
	cfg.PagesPerBatch = 10
	c := newTestController(source, cfg, nil)

	_, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, source.calls(), 10)
	assert.LessOrEqual(t, source.peak(), maxInFlightPages)
	assert.Greater(t, source.peak(), 1, "pages within a batch are fetched concurrently")
}

func TestController_FeedSoleSourceWhenListingEmpty(t *testing.T) {
	source := &fakeSource{
		feed: map[string]models.FeedEntry{
			"GAME B": {Title: "GAME B", URL: "https://example.com/game-b-ps5/"},
			"GAME A": {Title: "GAME A", URL: "https://example.com/game-a-ps5/"},
		},
	}

	c := newTestController(source, testScanConfig(), nil)
	result, err := c.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Games, 2)
	assert.Equal(t, "GAME A", result.Games[0].Title)
	assert.Equal(t, "GAME B", result.Games[1].Title)
}

func TestController_FeedSoleSourceHonorsCap(t *testing.T) {
	feed := make(map[string]models.FeedEntry)
	for _, name := range []string{"GAME A", "GAME B", "GAME C", "GAME D", "GAME E"} {
		feed[name] = models.FeedEntry{Title: name, URL: "https://example.com/" + name}
	}
	source := &fakeSource{feed: feed}

	cfg := testScanConfig()
	cfg.MaxGames = 3
	c := newTestController(source, cfg, nil)

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Games, 3)
	assert.Equal(t, "GAME A", result.Games[0].Title)
	assert.Equal(t, "GAME C", result.Games[2].Title)
}

func TestController_ProgressReported(t *testing.T) {
	source := &fakeSource{pages: map[int]*models.ListingResult{
		1: listingPage(1, 10),
	}}

	var snapshots []models.CrawlStats
	c := newTestController(source, testScanConfig(), func(stats models.CrawlStats) {
		snapshots = append(snapshots, stats)
	})

	_, err := c.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, snapshots)
	assert.Equal(t, 10, snapshots[len(snapshots)-1].ItemsFound)
}
