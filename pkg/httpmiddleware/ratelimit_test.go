package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitedHandler(cfg RateLimitConfig) http.Handler {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return RateLimit(cfg)(next)
}

func hit(t *testing.T, h http.Handler, remoteAddr string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit(t *testing.T) {
	t.Run("allows up to max", func(t *testing.T) {
		h := limitedHandler(RateLimitConfig{Max: 5, Window: time.Minute})
		for i := range 5 {
			w := hit(t, h, "192.0.2.1:1000")
			require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		}
	})

	t.Run("rejects over max with json body", func(t *testing.T) {
		h := limitedHandler(RateLimitConfig{Max: 2, Window: time.Minute})
		hit(t, h, "192.0.2.2:1000")
		hit(t, h, "192.0.2.2:1000")

		w := hit(t, h, "192.0.2.2:1000")
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("Retry-After"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, float64(http.StatusTooManyRequests), body["code"])
		assert.Equal(t, "rate limit exceeded", body["message"])
	})

	t.Run("keys are independent", func(t *testing.T) {
		h := limitedHandler(RateLimitConfig{Max: 1, Window: time.Minute})

		assert.Equal(t, http.StatusOK, hit(t, h, "192.0.2.3:1000").Code)
		assert.Equal(t, http.StatusOK, hit(t, h, "192.0.2.4:1000").Code)
		// Same IP from a different source port shares the budget.
		assert.Equal(t, http.StatusTooManyRequests, hit(t, h, "192.0.2.3:2000").Code)
	})

	t.Run("sets limit headers on success", func(t *testing.T) {
		h := limitedHandler(RateLimitConfig{Max: 10, Window: time.Minute})

		w := hit(t, h, "192.0.2.5:1000")
		assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "9", w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	})

	t.Run("custom key func", func(t *testing.T) {
		h := limitedHandler(RateLimitConfig{
			Max:    1,
			Window: time.Minute,
			KeyFunc: func(r *http.Request) string {
				return r.Header.Get("X-API-Key")
			},
		})

		assert.Equal(t, http.StatusOK, hit(t, h, "192.0.2.6:1000", "X-API-Key", "key-a").Code)
		assert.Equal(t, http.StatusTooManyRequests, hit(t, h, "192.0.2.7:1000", "X-API-Key", "key-a").Code)
		assert.Equal(t, http.StatusOK, hit(t, h, "192.0.2.6:2000", "X-API-Key", "key-b").Code)
	})

	t.Run("forwarded-for wins over remote addr", func(t *testing.T) {
		h := limitedHandler(RateLimitConfig{Max: 1, Window: time.Minute})

		w := hit(t, h, "192.0.2.8:1000", "X-Forwarded-For", "203.0.113.50, 70.41.3.18")
		assert.Equal(t, http.StatusOK, w.Code)

		w = hit(t, h, "192.0.2.9:1000", "X-Forwarded-For", "203.0.113.50, 70.41.3.18")
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	})
}

func TestLimiterWindowRotation(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 2, Window: time.Minute})
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	_, _, ok := l.take("k", base)
	require.True(t, ok)
	_, _, ok = l.take("k", base.Add(time.Second))
	require.True(t, ok)
	_, _, ok = l.take("k", base.Add(2*time.Second))
	require.False(t, ok, "budget exhausted inside the window")

	// At rotation the previous window still counts in full.
	_, _, ok = l.take("k", base.Add(time.Minute))
	require.False(t, ok)

	// Two full windows later the key starts fresh.
	remaining, _, ok := l.take("k", base.Add(3*time.Minute))
	require.True(t, ok)
	assert.Equal(t, 1, remaining)
}

func TestLimiterEvictStale(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	l.take("a", base)
	l.take("b", base.Add(90*time.Second))
	require.Len(t, l.buckets, 2)

	l.evictStale(base.Add(2 * time.Minute))

	assert.NotContains(t, l.buckets, "a")
	assert.Contains(t, l.buckets, "b")
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote addr",
			remoteAddr: "192.0.2.1:4242",
			want:       "192.0.2.1",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "192.0.2.1",
			want:       "192.0.2.1",
		},
		{
			name:       "x-real-ip",
			remoteAddr: "192.0.2.1:4242",
			headers:    map[string]string{"X-Real-IP": "198.51.100.7"},
			want:       "198.51.100.7",
		},
		{
			name:       "x-forwarded-for first entry",
			remoteAddr: "192.0.2.1:4242",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"},
			want:       "203.0.113.50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
