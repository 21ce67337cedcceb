package fetch

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// RobotsGate fetches and caches the site's robots.txt and answers allow
// checks for it. The file is fetched once, lazily; a fetch or parse failure
// is cached as "no rules", which allows everything.
type RobotsGate struct {
	fetcher   *Fetcher
	userAgent string
	enabled   bool
	log       *logrus.Entry

	mu      sync.Mutex
	fetched bool
	data    *robotstxt.RobotsData
}

// NewRobotsGate creates a RobotsGate. When enabled is false every check
// passes without touching the network.
func NewRobotsGate(fetcher *Fetcher, userAgent string, enabled bool, log *logrus.Entry) *RobotsGate {
	return &RobotsGate{
		fetcher:   fetcher,
		userAgent: userAgent,
		enabled:   enabled,
		log:       log,
	}
}

// Allowed reports whether the configured user agent may fetch targetURL.
// Missing or unreadable robots.txt means allowed.
func (g *RobotsGate) Allowed(ctx context.Context, targetURL *url.URL) bool {
	if !g.enabled {
		return true
	}

	data := g.robotsData(ctx, targetURL)
	if data == nil {
		return true
	}
	// TestAgent only matches Disallow rules against rooted paths, and
	// RequestURI on a URL built via JoinPath can come back unrooted.
	path := targetURL.RequestURI()
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return data.TestAgent(path, g.userAgent)
}

func (g *RobotsGate) robotsData(ctx context.Context, targetURL *url.URL) *robotstxt.RobotsData {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetched {
		return g.data
	}
	g.fetched = true

	robotsURL := &url.URL{Scheme: targetURL.Scheme, Host: targetURL.Host, Path: "/robots.txt"}
	if robotsURL.Scheme != "http" && robotsURL.Scheme != "https" {
		robotsURL.Scheme = "https"
	}
	robotsLog := g.log.WithField("robots_url", robotsURL.String())
	robotsLog.Info("Fetching robots.txt...")

	body, err := g.fetcher.FetchBody(ctx, robotsURL.String())
	if err != nil {
		robotsLog.Warnf("Fetching robots.txt failed, allowing all: %v", err)
		return nil
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		robotsLog.Warnf("Parsing robots.txt failed, allowing all: %v", err)
		return nil
	}

	robotsLog.Info("Successfully fetched and parsed robots.txt")
	g.data = data
	return data
}
