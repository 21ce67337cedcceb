// Package site wraps fetching and extraction into a typed client for the
// game listing site: numbered listing pages, individual game pages and the
// RSS feed.
package site

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"gamedex/pkg/config"
	"gamedex/pkg/extract"
	"gamedex/pkg/fetch"
	"gamedex/pkg/models"
	"gamedex/pkg/utils"
)

// Source is the read surface the crawl controller consumes. Implemented by
// Client; tests substitute fakes.
type Source interface {
	FetchListingPage(ctx context.Context, page int) (*models.ListingResult, error)
	FetchFeed(ctx context.Context) (map[string]models.FeedEntry, error)
	FetchGameDetail(ctx context.Context, pageURL string) (*models.GameDetail, error)
}

// Client fetches and parses pages from the configured site. All requests go
// through the robots gate and the shared rate limiter.
type Client struct {
	fetcher *fetch.Fetcher
	limiter *fetch.RateLimiter
	robots  *fetch.RobotsGate
	site    config.SiteConfig
	log     *logrus.Entry
}

// NewClient creates a site Client.
func NewClient(fetcher *fetch.Fetcher, limiter *fetch.RateLimiter, robots *fetch.RobotsGate, site config.SiteConfig, log *logrus.Entry) *Client {
	return &Client{
		fetcher: fetcher,
		limiter: limiter,
		robots:  robots,
		site:    site,
		log:     log,
	}
}

// ListingPageURL returns the absolute URL of the numbered listing page.
// Page 1 is the bare listing path; later pages append "page/N/".
func (c *Client) ListingPageURL(page int) string {
	if page <= 1 {
		return c.site.BaseURL + c.site.ListingPath
	}
	return fmt.Sprintf("%s%spage/%d/", c.site.BaseURL, c.site.ListingPath, page)
}

// FetchListingPage fetches and parses one listing page. A 404 means the
// page number ran past the last page and is reported as end-of-list, not as
// an error.
func (c *Client) FetchListingPage(ctx context.Context, page int) (*models.ListingResult, error) {
	pageURL := c.ListingPageURL(page)
	pageLog := c.log.WithFields(logrus.Fields{"page": page, "url": pageURL})

	doc, err := c.fetchDocument(ctx, pageURL)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			pageLog.Info("Listing page not found, treating as end of list")
			return &models.ListingResult{EndOfList: true}, nil
		}
		return nil, err
	}

	games := extract.Listing(doc, c.site.BaseURL, pageLog)
	pageLog.WithField("games", len(games)).Debug("Parsed listing page")
	return &models.ListingResult{Games: games}, nil
}

// FetchFeed fetches and parses the RSS feed, keyed by cleaned title.
func (c *Client) FetchFeed(ctx context.Context) (map[string]models.FeedEntry, error) {
	feedURL := c.site.BaseURL + c.site.FeedPath
	if err := c.gate(ctx, feedURL); err != nil {
		return nil, err
	}

	body, err := c.fetcher.FetchBody(ctx, feedURL)
	c.limiter.MarkRequest()
	if err != nil {
		return nil, err
	}

	entries, err := extract.Feed(bytes.NewReader(body))
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrParsing, "parsing feed %s: %v", feedURL, err)
	}
	c.log.WithField("entries", len(entries)).Debug("Parsed feed")
	return entries, nil
}

// FetchGameDetail fetches and parses a single game page. The returned
// detail always has a non-empty title: when neither the meta description
// nor the page title yields one, it is derived from the URL slug.
func (c *Client) FetchGameDetail(ctx context.Context, pageURL string) (*models.GameDetail, error) {
	doc, err := c.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	detail := extract.GamePage(doc, pageURL, c.log.WithField("url", pageURL))
	if detail.Title == "" {
		detail.Title = extract.TitleFromSlug(pageURL)
	}
	detail.ScrapedAt = time.Now().UTC()
	return detail, nil
}

func (c *Client) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := c.gate(ctx, pageURL); err != nil {
		return nil, err
	}
	doc, err := c.fetcher.FetchDocument(ctx, pageURL)
	c.limiter.MarkRequest()
	return doc, err
}

// gate applies robots rules and the inter-request delay.
func (c *Client) gate(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return utils.WrapErrorf(utils.ErrRequestCreation, "parsing %s: %v", rawURL, err)
	}
	if !c.robots.Allowed(ctx, u) {
		return utils.WrapErrorf(utils.ErrRobotsDisallowed, "robots.txt disallows %s", rawURL)
	}
	return c.limiter.Wait(ctx)
}
