// Package ratelimit enforces the client-side request budget against the
// generation API: a trailing window holding at most a fixed number of
// accepted request timestamps.
package ratelimit

import (
	"sync"
	"time"

	"story-client/internal/models"
)

// Limiter is a sliding-window rate limiter. A rejection is synchronous and
// immediate; the limiter never delays or queues a request. Entries older than
// the window are evicted lazily on each check.
type Limiter struct {
	mu         sync.Mutex
	window     time.Duration
	maxEntries int
	timestamps []time.Time
	now        func() time.Time
}

// NewLimiter creates a limiter allowing at most maxEntries accepted calls per
// trailing window.
func NewLimiter(window time.Duration, maxEntries int) *Limiter {
	return &Limiter{
		window:     window,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// NewLimiterWithClock creates a limiter with an injected clock for tests.
func NewLimiterWithClock(window time.Duration, maxEntries int, now func() time.Time) *Limiter {
	l := NewLimiter(window, maxEntries)
	l.now = now
	return l
}

// CheckAndRecord evicts expired timestamps, then either records the current
// call and returns nil, or returns a rate-limited error without recording.
func (l *Limiter) CheckAndRecord() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	// Timestamps are appended in call order, so everything expired sits at
	// the front of the log.
	kept := 0
	for kept < len(l.timestamps) && l.timestamps[kept].Before(cutoff) {
		kept++
	}
	if kept > 0 {
		l.timestamps = append(l.timestamps[:0], l.timestamps[kept:]...)
	}

	if len(l.timestamps) >= l.maxEntries {
		return models.NewRateLimitedError()
	}

	l.timestamps = append(l.timestamps, now)
	return nil
}

// Len reports the number of timestamps currently in the window. Eviction is
// lazy, so the count reflects the last CheckAndRecord call.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timestamps)
}
