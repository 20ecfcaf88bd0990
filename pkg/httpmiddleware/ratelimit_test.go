package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func hit(h http.Handler, setup func(r *http.Request)) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "/api/catalog", nil)
	if setup != nil {
		setup(r)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func fromAddr(addr string) func(*http.Request) {
	return func(r *http.Request) { r.RemoteAddr = addr }
}

func TestLimiter_SlidingWindow(t *testing.T) {
	l := NewLimiter(4, time.Minute)
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	for i := range 4 {
		d := l.Allow("till-1", base.Add(time.Duration(i)*time.Second))
		require.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, 3-i, d.Remaining)
	}
	assert.False(t, l.Allow("till-1", base.Add(10*time.Second)).Allowed)

	// Halfway through the next window half of the previous count still
	// applies: 4*0.5 = 2 effective, so two more requests fit.
	mid := base.Add(90 * time.Second)
	assert.True(t, l.Allow("till-1", mid).Allowed)
	assert.True(t, l.Allow("till-1", mid).Allowed)
	assert.False(t, l.Allow("till-1", mid).Allowed)

	// After two idle windows the history is dropped.
	d := l.Allow("till-1", base.Add(5*time.Minute))
	assert.True(t, d.Allowed)
	assert.Equal(t, 3, d.Remaining)
}

func TestLimiter_Sweep(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	l.Allow("a", now)
	l.Allow("b", now.Add(90*time.Second))
	require.Equal(t, 2, l.Len())

	l.Sweep(now.Add(2 * time.Minute))
	assert.Equal(t, 1, l.Len())
}

func TestLimit_OverLimit(t *testing.T) {
	h := Limit(NewLimiter(2, time.Minute), nil)(okHandler())

	for range 2 {
		require.Equal(t, http.StatusOK, hit(h, fromAddr("10.0.0.1:9999")).Code)
	}
	w := hit(h, fromAddr("10.0.0.1:9999"))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"code":429,"message":"rate limit exceeded"}`, w.Body.String())

	assert.Equal(t, http.StatusOK, hit(h, fromAddr("10.0.0.2:1234")).Code, "other client")
}

func TestLimit_CustomKey(t *testing.T) {
	h := Limit(NewLimiter(1, time.Minute), func(r *http.Request) string {
		return r.Header.Get("Authorization")
	})(okHandler())
	bearer := func(tok string) func(*http.Request) {
		return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
	}

	assert.Equal(t, http.StatusOK, hit(h, bearer("a")).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, bearer("a")).Code)
	assert.Equal(t, http.StatusOK, hit(h, bearer("b")).Code)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		realIP string
		remote string
		want   string
	}{
		{name: "forwarded", xff: "203.0.113.50, 70.41.3.18", remote: "10.0.0.1:1", want: "203.0.113.50"},
		{name: "real ip", realIP: "198.51.100.7", remote: "10.0.0.1:1", want: "198.51.100.7"},
		{name: "remote", remote: "192.168.1.1:4444", want: "192.168.1.1"},
		{name: "remote without port", remote: "pipe", want: "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}
