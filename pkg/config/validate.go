package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"gamedex/pkg/utils"
)

// Built-in defaults for the scraped site. Overridable from the config file,
// but the tool is shipped pointed at one site.
const (
	defaultBaseURL     = "https://dlpsgame.com"
	defaultListingPath = "/list-game-ps5/"
	defaultFeedPath    = "/feed/"
	defaultUserAgent   = "gamedex/1.0 (+https://github.com/gamedex)"
)

// defaultHostOrder is the preferred display ordering for link buckets.
var defaultHostOrder = []string{"akira", "viking", "onefichier", "other"}

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	siteWarnings, err := c.Site.Validate()
	warnings = append(warnings, siteWarnings...)
	if err != nil {
		return warnings, err
	}

	scanWarnings := c.Scan.Validate()
	warnings = append(warnings, scanWarnings...)

	// StateDir
	if c.StateDir == "" {
		warnings = append(warnings, "state_dir is empty, defaulting to './gamedex_state'")
		c.StateDir = "./gamedex_state"
	}

	// HTTPClientSettings defaults
	c.validateHTTPClientSettings()

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 4
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}

// Validate checks SiteConfig fields and applies defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place (e.g., path normalization).
func (c *SiteConfig) Validate() (warnings []string, err error) {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	u, parseErr := url.Parse(c.BaseURL)
	if parseErr != nil || u.Scheme == "" || u.Host == "" {
		return warnings, fmt.Errorf("%w: base_url %q is not an absolute URL", utils.ErrConfigValidation, c.BaseURL)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")

	if c.ListingPath == "" {
		c.ListingPath = defaultListingPath
	}
	c.ListingPath = normalizePath(c.ListingPath)

	if c.FeedPath == "" {
		c.FeedPath = defaultFeedPath
	}
	c.FeedPath = normalizePath(c.FeedPath)

	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}

	return warnings, nil
}

// normalizePath ensures a leading and trailing slash so page numbers can be
// appended directly ("/list-game-ps5/" + "page/2/").
func normalizePath(p string) string {
	if p[0] != '/' {
		p = "/" + p
	}
	if p[len(p)-1] != '/' {
		p += "/"
	}
	return p
}

// Validate checks ScanConfig fields and applies defaults.
// Returns collected warnings. Scan settings never fail fatally.
func (c *ScanConfig) Validate() (warnings []string) {
	if c.MaxGames < 0 {
		warnings = append(warnings, "max_games cannot be negative, setting to 0 (unlimited)")
		c.MaxGames = 0
	}
	if c.PagesPerBatch <= 0 {
		c.PagesPerBatch = 5
	}
	if c.PagesPerBatch > 20 {
		warnings = append(warnings, fmt.Sprintf(
			"pages_per_batch %d is excessive for a single site, capping at 20", c.PagesPerBatch))
		c.PagesPerBatch = 20
	}
	if c.PageFetchTimeout <= 0 {
		c.PageFetchTimeout = 30 * time.Second
	}
	if c.BatchDelay < 0 {
		warnings = append(warnings, "batch_delay cannot be negative, setting to 0")
		c.BatchDelay = 0
	}
	if c.BatchDelay == 0 {
		c.BatchDelay = 2 * time.Second
	}
	if c.MaxConsecutiveEmptyBatches <= 0 {
		c.MaxConsecutiveEmptyBatches = 2
	}
	if len(c.HostOrder) == 0 {
		c.HostOrder = append([]string(nil), defaultHostOrder...)
	} else {
		for _, h := range c.HostOrder {
			switch h {
			case "akira", "viking", "onefichier", "other":
			default:
				warnings = append(warnings, fmt.Sprintf(
					"host_order entry %q is not a known bucket, using default ordering", h))
				c.HostOrder = append([]string(nil), defaultHostOrder...)
				return warnings
			}
		}
	}
	return warnings
}
