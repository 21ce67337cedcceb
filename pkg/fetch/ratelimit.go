package fetch

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RateLimiter enforces a minimum delay between consecutive requests to the
// site. Everything goes to one host, so a single timestamp is enough.
type RateLimiter struct {
	mu       sync.Mutex
	last     time.Time
	minDelay time.Duration
	log      *logrus.Logger
}

// NewRateLimiter creates a RateLimiter with the given minimum inter-request
// delay. A non-positive delay disables waiting.
func NewRateLimiter(minDelay time.Duration, log *logrus.Logger) *RateLimiter {
	return &RateLimiter{minDelay: minDelay, log: log}
}

// Wait sleeps until at least the configured delay has passed since the last
// recorded request. Includes +/- 10% jitter. Returns early with the context
// error if ctx is cancelled during the wait.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl.minDelay <= 0 {
		return nil
	}

	rl.mu.Lock()
	last := rl.last
	rl.mu.Unlock()

	if last.IsZero() {
		return nil
	}
	elapsed := time.Since(last)
	if elapsed >= rl.minDelay {
		return nil
	}

	sleep := rl.minDelay - elapsed
	// +/- 10% jitter to avoid a perfectly regular request cadence.
	if jitterRange := int64(sleep) / 5; jitterRange > 0 {
		sleep += time.Duration(rand.Int63n(jitterRange)) - (sleep / 10)
	}
	if sleep <= 0 {
		return nil
	}

	rl.log.WithFields(logrus.Fields{"sleep": sleep, "required_delay": rl.minDelay}).Debug("Rate limit applying sleep")
	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MarkRequest records the current time as the last request attempt. Call
// after each HTTP request to the site.
func (rl *RateLimiter) MarkRequest() {
	rl.mu.Lock()
	rl.last = time.Now()
	rl.mu.Unlock()
}
