package governance

import (
	"net/http"
	"sync"
	"time"
)

// Default limits applied when a RateLimiterConfig field is zero.
const (
	DefaultRequestsPerSecond = 100
	DefaultIdleTTL           = 5 * time.Minute
)

// RateLimiterConfig defines per-key rate limit settings.
type RateLimiterConfig struct {
	RequestsPerSecond int
	BurstSize         int

	// IdleTTL is how long an unused key keeps its bucket.
	IdleTTL time.Duration
}

// RateLimiter implements token bucket rate limiting per API key.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
	rate    float64
	burst   float64
	idleTTL time.Duration
	now     func() time.Time
}

// NewRateLimiter creates a rate limiter with the provided configuration.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = cfg.RequestsPerSecond
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	return &RateLimiter{
		buckets: make(map[string]*tokenBucket),
		rate:    float64(cfg.RequestsPerSecond),
		burst:   float64(cfg.BurstSize),
		idleTTL: cfg.IdleTTL,
		now:     time.Now,
	}
}

// Allow reports whether one more request for key fits within the limit.
// Requests without a key are always allowed; authentication rejects them.
func (rl *RateLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	bucket, ok := rl.buckets[key]
	if !ok {
		bucket = &tokenBucket{tokens: rl.burst, lastRefill: now}
		rl.buckets[key] = bucket
	}
	return bucket.take(now, rl.rate, rl.burst)
}

// Prune drops buckets idle for longer than the configured TTL and returns how
// many were removed.
func (rl *RateLimiter) Prune() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idleTTL)
	removed := 0
	for key, bucket := range rl.buckets {
		if bucket.lastRefill.Before(cutoff) {
			delete(rl.buckets, key)
			removed++
		}
	}
	return removed
}

// Keys reports the number of tracked keys.
func (rl *RateLimiter) Keys() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Middleware answers throttled requests with a success body without calling
// next. keyFunc extracts the limit key; onThrottle may be nil.
func (rl *RateLimiter) Middleware(keyFunc func(*http.Request) string, onThrottle func(*http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl.Allow(keyFunc(r)) {
				next.ServeHTTP(w, r)
				return
			}
			if onThrottle != nil {
				onThrottle(r)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"success":true}`))
		})
	}
}

// tokenBucket is guarded by RateLimiter.mu.
type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
}

func (tb *tokenBucket) take(now time.Time, rate, capacity float64) bool {
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed > 0 {
		tb.tokens = min(capacity, tb.tokens+elapsed*rate)
	}
	tb.lastRefill = now

	if tb.tokens >= 1.0 {
		tb.tokens--
		return true
	}
	return false
}
