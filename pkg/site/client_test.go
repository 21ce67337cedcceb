package site

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamedex/pkg/config"
	"gamedex/pkg/fetch"
	"gamedex/pkg/utils"
)

const listingHTML = `<html><body>
<a class="title" href="/game-one-ps5/">Game One PS5 Download</a>
<a class="title" href="/game-two-ps5/">Game Two PS5</a>
</body></html>`

const gamePageHTML = `<html><head>
<title>Game One PS5 Download | Voice: English | Subtitles: English, French | Size: 42.5 GB</title>
<meta name="description" content="Game One PS5 Download">
<meta property="og:image" content="/covers/game-one.jpg">
</head><body>
<div class="entry-content">
<p>Working on FW 5.50</p>
<p><a href="https://akirabox.com/game-one-v1.002.zip">Download Link</a></p>
</div>
</body></html>`

const feedXML = `<?xml version="1.0"?><rss version="2.0"><channel>
<item><title>Game One PS5 Download</title><link>https://example.com/game-one-ps5/</link>
<pubDate>Mon, 02 Jan 2023 15:04:05 +0000</pubDate></item>
</channel></rss>`

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	entry := logrus.NewEntry(logger)

	siteCfg := config.SiteConfig{
		BaseURL:     server.URL,
		ListingPath: "/list-game-ps5/",
		FeedPath:    "/feed/",
		UserAgent:   "gamedex-test/1.0",
	}
	fetcher := fetch.NewFetcher(http.DefaultClient, siteCfg.UserAgent, 5*time.Second, logger)
	limiter := fetch.NewRateLimiter(0, logger)
	robots := fetch.NewRobotsGate(fetcher, siteCfg.UserAgent, false, entry)
	return NewClient(fetcher, limiter, robots, siteCfg, entry)
}

func TestClient_ListingPageURL(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	base := c.site.BaseURL
	assert.Equal(t, base+"/list-game-ps5/", c.ListingPageURL(1))
	assert.Equal(t, base+"/list-game-ps5/page/7/", c.ListingPageURL(7))
}

func TestClient_FetchListingPage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/list-game-ps5/":
			w.Write([]byte(listingHTML))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	result, err := c.FetchListingPage(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, result.EndOfList)
	require.Len(t, result.Games, 2)
	assert.Equal(t, "Game One PS5", result.Games[0].Title)
	assert.Equal(t, c.site.BaseURL+"/game-one-ps5/", result.Games[0].URL)
}

func TestClient_FetchListingPage_EndOfList(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())

	result, err := c.FetchListingPage(context.Background(), 999)
	require.NoError(t, err, "running past the last page is not an error")
	assert.True(t, result.EndOfList)
	assert.Empty(t, result.Games)
}

func TestClient_FetchListingPage_ServerError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.FetchListingPage(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrServerHTTPError)
}

func TestClient_FetchGameDetail(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(gamePageHTML))
	}))

	detail, err := c.FetchGameDetail(context.Background(), c.site.BaseURL+"/game-one-ps5/")
	require.NoError(t, err)
	assert.Equal(t, "Game One PS5", detail.Title)
	assert.Equal(t, "English", detail.Voice)
	assert.Equal(t, "English, French", detail.Subtitles)
	assert.Equal(t, "42.5 GB", detail.Size)
	assert.Equal(t, "5.xx", detail.Firmware)
	require.Len(t, detail.Akira, 1)
	assert.Equal(t, "1.002", detail.Akira[0].ExtractedVersion)
	assert.True(t, detail.Scraped())
	assert.False(t, detail.ScrapedAt.IsZero())
}

func TestClient_FetchGameDetail_TitleFromSlug(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head></head><body></body></html>`))
	}))

	detail, err := c.FetchGameDetail(context.Background(), c.site.BaseURL+"/stellar-drift-ps5/")
	require.NoError(t, err)
	assert.Equal(t, "STELLAR DRIFT", detail.Title)
}

func TestClient_FetchFeed(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/feed/" {
			w.Write([]byte(feedXML))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	entries, err := c.FetchFeed(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	entry, ok := entries["Game One PS5"]
	require.True(t, ok)
	assert.Equal(t, "https://example.com/game-one-ps5/", entry.URL)
}

func TestClient_RobotsDisallowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte("User-agent: *\nDisallow: /\n"))
			return
		}
		w.Write([]byte(listingHTML))
	}))
	t.Cleanup(server.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	entry := logrus.NewEntry(logger)
	siteCfg := config.SiteConfig{BaseURL: server.URL, ListingPath: "/list-game-ps5/", FeedPath: "/feed/", UserAgent: "gamedex-test/1.0"}
	fetcher := fetch.NewFetcher(http.DefaultClient, siteCfg.UserAgent, 5*time.Second, logger)
	c := NewClient(fetcher, fetch.NewRateLimiter(0, logger), fetch.NewRobotsGate(fetcher, siteCfg.UserAgent, true, entry), siteCfg, entry)

	_, err := c.FetchListingPage(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrRobotsDisallowed)
}

var _ Source = (*Client)(nil)
