package fallback

import (
	"sync"
	"time"
)

const (
	// DefaultRateLimit is the maximum number of generative calls allowed
	// per sender per minute when no explicit limit is configured.
	DefaultRateLimit = 15

	// defaultRateLimitWindow is the sliding window duration.
	defaultRateLimitWindow = time.Minute
)

// BusyMessage is the reply for senders who exceed the per-minute limit on
// generative calls. Deterministic resolution is unaffected by the limit.
const BusyMessage = "You're sending messages faster than I can think! Give me a few seconds, or try the exact title — that always works."

// RateLimiter enforces a per-sender sliding-window limit on generative
// calls so a single chatty sender cannot exhaust the upstream quota.
//
// Call timestamps are kept per sender and pruned on every Allow call, so
// memory stays bounded to O(limit) entries per active sender.
//
// RateLimiter is safe for concurrent use from multiple goroutines.
type RateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	counters map[string][]time.Time // senderID → call timestamps in window
}

// NewRateLimiter returns a RateLimiter that allows at most limit calls per
// sender within window. Non-positive arguments fall back to the defaults.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	return &RateLimiter{
		limit:    limit,
		window:   window,
		counters: make(map[string][]time.Time),
	}
}

// Allow reports whether the sender may make another generative call, and
// records the current timestamp when it may.
func (r *RateLimiter) Allow(senderID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	existing := r.counters[senderID]
	valid := existing[:0] // reuse backing array
	for _, t := range existing {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= r.limit {
		r.counters[senderID] = valid
		return false
	}

	r.counters[senderID] = append(valid, now)
	return true
}
