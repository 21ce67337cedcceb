package fetch

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"gamedex/pkg/utils"
)

// maxBodyBytes caps how much of a response body is read. Listing and game
// pages are small HTML documents; anything larger is a misbehaving server.
const maxBodyBytes = 10 << 20

// Fetcher performs single-attempt HTTP GETs against the site. Failed pages
// are reported to the caller and retried only on user request, so there is
// no backoff loop here.
type Fetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	log       *logrus.Logger
}

// NewFetcher creates a Fetcher. timeout bounds each individual request on
// top of whatever deadline the caller's context carries.
func NewFetcher(client *http.Client, userAgent string, timeout time.Duration, log *logrus.Logger) *Fetcher {
	return &Fetcher{
		client:    client,
		userAgent: userAgent,
		timeout:   timeout,
		log:       log,
	}
}

// Fetch GETs rawURL and returns the response on 2xx. Non-2xx statuses and
// transport failures come back as categorized sentinel errors; the response
// body is already drained and closed in every error path. Caller must close
// the body on success. The request is bounded only by ctx: the per-page
// timeout is owned by FetchBody/FetchDocument so it stays alive for the
// body read, not just the header exchange.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*http.Response, error) {
	reqLog := f.log.WithField("url", rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrRequestCreation, "building request for %s: %v", rawURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			reqLog.Warnf("Request timed out: %v", err)
			return nil, utils.WrapErrorf(utils.ErrNetworkTimeout, "fetching %s: %v", rawURL, err)
		}
		reqLog.Warnf("Network error: %v", err)
		return nil, err
	}

	statusCode := resp.StatusCode
	resLog := reqLog.WithFields(logrus.Fields{"status_code": statusCode, "status": resp.Status})

	if statusCode >= 200 && statusCode < 300 {
		resLog.Debug("Successfully fetched")
		return resp, nil
	}

	// Drain so the connection can be reused, then map the status to a sentinel.
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	switch {
	case statusCode == http.StatusNotFound:
		resLog.Debug("Page not found")
		return nil, utils.WrapErrorf(utils.ErrNotFound, "status %s for %s", resp.Status, rawURL)
	case statusCode == http.StatusTooManyRequests:
		resLog.Warn("Rate limited by server")
		return nil, utils.WrapErrorf(utils.ErrRateLimited, "status %s for %s", resp.Status, rawURL)
	case statusCode >= 500:
		resLog.Warn("Server error")
		return nil, utils.WrapErrorf(utils.ErrServerHTTPError, "status %s for %s", resp.Status, rawURL)
	default:
		resLog.Warn("Unexpected status")
		return nil, utils.WrapErrorf(utils.ErrOtherHTTPError, "status %s for %s", resp.Status, rawURL)
	}
}

// withTimeout applies the per-page timeout around a whole fetch-plus-read
// operation. The returned cancel must be held until the body is consumed.
func (f *Fetcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.timeout > 0 {
		return context.WithTimeout(ctx, f.timeout)
	}
	return ctx, func() {}
}

// FetchBody GETs rawURL and returns the response body, capped at maxBodyBytes.
func (f *Fetcher) FetchBody(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	resp, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrResponseBodyRead, "reading %s: %v", rawURL, err)
	}
	return body, nil
}

// FetchDocument GETs rawURL and parses the body as an HTML document.
func (f *Fetcher) FetchDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	resp, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrParsing, "parsing %s: %v", rawURL, err)
	}
	return doc, nil
}
