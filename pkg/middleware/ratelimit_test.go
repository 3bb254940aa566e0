package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(requests, burst int) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	limiter := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: requests,
		WindowDuration:    time.Minute,
		BurstSize:         burst,
	})
	limiter.now = clock.Now
	return limiter, clock
}

func TestRateLimiter_Allow(t *testing.T) {
	limiter, clock := newTestLimiter(10, 2)

	allowed := 0
	for i := 0; i < 20; i++ {
		if limiter.Allow("client") {
			allowed++
		}
	}
	assert.Equal(t, 12, allowed)
	assert.False(t, limiter.Allow("client"))

	// 10 per minute refills one token every 6 seconds
	clock.Advance(5 * time.Second)
	assert.False(t, limiter.Allow("client"))
	clock.Advance(2 * time.Second)
	assert.True(t, limiter.Allow("client"))
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(1, 0)

	assert.True(t, limiter.Allow("a"))
	assert.False(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("b"))
}

func TestRateLimiter_RefillCapped(t *testing.T) {
	limiter, clock := newTestLimiter(10, 2)
	limiter.Allow("client")

	clock.Advance(time.Hour)

	assert.Equal(t, 12, limiter.Remaining("client"))
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter, clock := newTestLimiter(10, 0)
	limiter.Allow("old")
	clock.Advance(90 * time.Second)
	limiter.Allow("fresh")
	clock.Advance(45 * time.Second)

	limiter.Cleanup()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.buckets, "old")
	assert.Contains(t, limiter.buckets, "fresh")
}

func TestRateLimiter_RunCleanupStops(t *testing.T) {
	limiter, _ := newTestLimiter(10, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, limiter.RunCleanup(ctx))
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter, _ := newTestLimiter(1, 1)
	logger, hook := test.NewNullLogger()

	handler := RateLimit(limiter, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(remoteAddr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/hooks/notify", nil)
		req.RemoteAddr = remoteAddr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	w := send("10.0.0.1:5000")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))

	// same host, different port
	w = send("10.0.0.1:5001")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = send("10.0.0.1:5002")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, w.Body.String())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "Rate limit exceeded", hook.LastEntry().Message)

	w = send("10.0.0.2:5000")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{name: "forwarded chain", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, remoteAddr: "10.0.0.1:80", want: "203.0.113.7"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "198.51.100.2"}, remoteAddr: "10.0.0.1:80", want: "198.51.100.2"},
		{name: "remote addr", remoteAddr: "192.0.2.10:4321", want: "192.0.2.10"},
		{name: "remote addr without port", remoteAddr: "192.0.2.10", want: "192.0.2.10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
