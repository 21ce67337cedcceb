package models

import (
	"fmt"
	"strings"
)

// CrawlStats carries running totals for a single scan. It is owned by the
// crawl controller, mutated only from the controller goroutine, and handed
// to callers by value through progress callbacks.
type CrawlStats struct {
	ItemsFound   int `json:"items_found"`
	PagesScanned int `json:"pages_scanned"`

	Timeouts     int `json:"timeouts"`
	RateLimited  int `json:"rate_limited"`
	ServerErrors int `json:"server_errors"`
	NotFound     int `json:"not_found"`
	Other        int `json:"other"`
}

// Error categories recorded by AddError. These mirror the buckets exposed
// in CrawlStats.
const (
	ErrorCategoryTimeout     = "timeout"
	ErrorCategoryRateLimited = "rate_limited"
	ErrorCategoryServerError = "server_error"
	ErrorCategoryNotFound    = "not_found"
	ErrorCategoryOther       = "other"
)

// AddError tallies one categorized fetch error.
func (s *CrawlStats) AddError(category string) {
	switch category {
	case ErrorCategoryTimeout:
		s.Timeouts++
	case ErrorCategoryRateLimited:
		s.RateLimited++
	case ErrorCategoryServerError:
		s.ServerErrors++
	case ErrorCategoryNotFound:
		s.NotFound++
	default:
		s.Other++
	}
}

// ErrorCount returns the total number of recorded fetch errors.
func (s *CrawlStats) ErrorCount() int {
	return s.Timeouts + s.RateLimited + s.ServerErrors + s.NotFound + s.Other
}

// Summary renders a human-readable one-line account of the scan, suitable
// for the warning shown when a scan completes with partial failures.
func (s *CrawlStats) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d games across %d pages", s.ItemsFound, s.PagesScanned)
	if s.ErrorCount() == 0 {
		return b.String()
	}
	var parts []string
	if s.Timeouts > 0 {
		parts = append(parts, fmt.Sprintf("%d timeouts", s.Timeouts))
	}
	if s.RateLimited > 0 {
		parts = append(parts, fmt.Sprintf("%d rate-limited", s.RateLimited))
	}
	if s.ServerErrors > 0 {
		parts = append(parts, fmt.Sprintf("%d server errors", s.ServerErrors))
	}
	if s.NotFound > 0 {
		parts = append(parts, fmt.Sprintf("%d not found", s.NotFound))
	}
	if s.Other > 0 {
		parts = append(parts, fmt.Sprintf("%d other errors", s.Other))
	}
	fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
	return b.String()
}
