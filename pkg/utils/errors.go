package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"gamedex/pkg/models"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrNetworkTimeout   = errors.New("network timeout")
	ErrRateLimited      = errors.New("rate limited (HTTP 429)")
	ErrServerHTTPError  = errors.New("server HTTP error (5xx)")
	ErrNotFound         = errors.New("not found (HTTP 404)")
	ErrOtherHTTPError   = errors.New("other HTTP error (non-2xx)")
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")
	ErrParsing          = errors.New("parsing error")  // Wraps specific parsing error (HTML, URL, XML)
	ErrDatabase         = errors.New("database error") // Wraps badger errors
	ErrRequestCreation  = errors.New("failed to create HTTP request")
	ErrResponseBodyRead = errors.New("failed to read response body")
	ErrConfigValidation = errors.New("configuration validation error")
	ErrScanInProgress   = errors.New("a scan is already running")
	ErrGameNotCached    = errors.New("game not found in local catalogue")
	ErrNoItemsFound     = errors.New("scan yielded no items")
)

// WrapErrorf wraps a sentinel error with formatted context. Returns nil when
// err is nil.
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// CategorizeError maps an error to one of the CrawlStats error buckets.
// Every fetch-shaped failure ends up in exactly one bucket; nil maps to "".
func CategorizeError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrNetworkTimeout):
		return models.ErrorCategoryTimeout
	case errors.Is(err, ErrRateLimited):
		return models.ErrorCategoryRateLimited
	case errors.Is(err, ErrServerHTTPError):
		return models.ErrorCategoryServerError
	case errors.Is(err, ErrNotFound):
		return models.ErrorCategoryNotFound
	}

	// Context timeouts count as network timeouts - the per-request deadline
	// is the usual source of a DeadlineExceeded here.
	if errors.Is(err, context.DeadlineExceeded) {
		return models.ErrorCategoryTimeout
	}
	if errors.Is(err, context.Canceled) {
		return models.ErrorCategoryOther
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.ErrorCategoryTimeout
	}

	// Fallback substring checks for errors that were not wrapped with a
	// sentinel (DNS failures, TLS errors, parse errors, ...).
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded") {
		return models.ErrorCategoryTimeout
	}

	return models.ErrorCategoryOther
}
