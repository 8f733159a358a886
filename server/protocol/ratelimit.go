package protocol

import "time"

// Inbound rate limit defaults
const (
	DefaultRateLimit  = 100
	DefaultRateWindow = 60 * time.Second
)

// RateLimiter is a sliding-window log of accepted messages for one connection.
// Rejected messages do not count against the window. Not safe for concurrent use.
type RateLimiter struct {
	limit  int
	window time.Duration
	hits   []time.Time // accepted times, oldest first
}

// NewRateLimiter allows at most limit messages in any window-long interval
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = DefaultRateWindow
	}
	return &RateLimiter{limit: limit, window: window, hits: make([]time.Time, 0, limit)}
}

// Allow records a message at now and reports whether it may be processed
func (r *RateLimiter) Allow(now time.Time) bool {
	cutoff := now.Add(-r.window)
	drop := 0
	for drop < len(r.hits) && !r.hits[drop].After(cutoff) {
		drop++
	}
	if drop > 0 {
		r.hits = append(r.hits[:0], r.hits[drop:]...)
	}
	if len(r.hits) >= r.limit {
		return false
	}
	r.hits = append(r.hits, now)
	return true
}
