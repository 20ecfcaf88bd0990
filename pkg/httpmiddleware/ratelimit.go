package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures a sliding-window limit per client.
type RateLimitConfig struct {
	Max    int
	Window time.Duration
	// KeyFunc identifies the client; ClientIP when nil.
	KeyFunc func(*http.Request) string
}

// window holds request counts for the current and previous fixed windows.
// The effective count weights the previous window by how much of it still
// overlaps the sliding window ending now.
type window struct {
	prev, curr float64
	start      time.Time
}

// Limiter is a concurrency-safe sliding-window counter keyed by client.
type Limiter struct {
	max  int
	size time.Duration

	mu      sync.Mutex
	windows map[string]*window
}

// NewLimiter allows max requests per size-long window.
func NewLimiter(max int, size time.Duration) *Limiter {
	return &Limiter{max: max, size: size, windows: make(map[string]*window)}
}

// Decision is the outcome of Allow.
type Decision struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Allow counts one request for key at now, unless the limit is reached.
func (l *Limiter) Allow(key string, now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		w = &window{start: now.Truncate(l.size)}
		l.windows[key] = w
	}
	if elapsed := now.Sub(w.start); elapsed >= l.size {
		if elapsed >= 2*l.size {
			w.prev = 0
		} else {
			w.prev = w.curr
		}
		w.curr = 0
		w.start = now.Truncate(l.size)
	}

	overlap := 1 - now.Sub(w.start).Seconds()/l.size.Seconds()
	effective := w.prev*math.Max(overlap, 0) + w.curr
	d := Decision{Reset: w.start.Add(l.size)}
	if effective >= float64(l.max) {
		return d
	}
	w.curr++
	d.Allowed = true
	d.Remaining = max(int(float64(l.max)-effective-1), 0)
	return d
}

// Sweep forgets clients idle for two full windows.
func (l *Limiter) Sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.windows {
		if now.Sub(w.start) >= 2*l.size {
			delete(l.windows, key)
		}
	}
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// RunSweeper calls Sweep every two windows until ctx is done.
func (l *Limiter) RunSweeper(ctx context.Context) {
	t := time.NewTicker(2 * l.size)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			l.Sweep(now)
		}
	}
}

// RateLimit rejects clients over the limit with 429. Every response carries
// X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset. Stale
// clients are swept in the background until ctx is done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := NewLimiter(cfg.Max, cfg.Window)
	go l.RunSweeper(ctx)
	return Limit(l, cfg.KeyFunc)
}

// Limit enforces l, identifying clients with key (ClientIP when nil).
func Limit(l *Limiter, key func(*http.Request) string) Middleware {
	if key == nil {
		key = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			d := l.Allow(key(r), now)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
			if !d.Allowed {
				retry := max(d.Reset.Sub(now), 0)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// remote address host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
