package governance

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(cfg RateLimiterConfig) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(cfg)
	rl.now = clock.Now
	return rl, clock
}

func TestRateLimiterBurstAndRefill(t *testing.T) {
	rl, clock := newTestLimiter(RateLimiterConfig{RequestsPerSecond: 2, BurstSize: 3})

	for i := range 3 {
		assert.True(t, rl.Allow("key"), "request %d within burst", i)
	}
	assert.False(t, rl.Allow("key"))

	clock.Advance(500 * time.Millisecond)
	assert.True(t, rl.Allow("key"))
	assert.False(t, rl.Allow("key"))

	clock.Advance(time.Hour)
	for range 3 {
		assert.True(t, rl.Allow("key"))
	}
	assert.False(t, rl.Allow("key"), "refill is capped at burst size")
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl, _ := newTestLimiter(RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 1})

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
	assert.True(t, rl.Allow(""), "unauthenticated requests are not limited")
	assert.Equal(t, 2, rl.Keys())
}

func TestRateLimiterPrune(t *testing.T) {
	rl, clock := newTestLimiter(RateLimiterConfig{IdleTTL: time.Minute})

	rl.Allow("old")
	clock.Advance(2 * time.Minute)
	rl.Allow("fresh")

	assert.Equal(t, 1, rl.Prune())
	assert.Equal(t, 1, rl.Keys())
}

func TestMiddlewareAnswersThrottledRequestsWithSuccess(t *testing.T) {
	rl, _ := newTestLimiter(RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 1})

	calls := 0
	throttled := 0
	handler := rl.Middleware(
		func(r *http.Request) string { return r.Header.Get("X-API-Key") },
		func(*http.Request) { throttled++ },
	)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusAccepted)
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/events", nil)
		req.Header.Set("X-API-Key", "k")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	assert.Equal(t, http.StatusAccepted, first.Code)

	second := send()
	require.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, `{"success":true}`, second.Body.String())
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, throttled)
}
