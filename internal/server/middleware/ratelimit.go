package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/wsi/internal/cache"
)

// visitorTTL is how long an idle client keeps its bucket.
const visitorTTL = 10 * time.Minute

// RateLimiter allows a fixed number of requests per client IP and
// interval. Idle visitors expire from the cache.
type RateLimiter struct {
	mu       sync.Mutex
	visitors *cache.Cache[*visitor]
	limit    int
	interval time.Duration
	now      func() time.Time
	logger   *zerolog.Logger
}

type visitor struct {
	mu        sync.Mutex
	tokens    int
	lastReset time.Time
}

// NewRateLimiter creates a limiter of limit requests per minute per IP.
func NewRateLimiter(limit int, logger *zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		visitors: cache.New[*visitor](visitorTTL, visitorTTL/2),
		limit:    limit,
		interval: time.Minute,
		now:      time.Now,
		logger:   logger,
	}
}

func (rl *RateLimiter) getVisitor(ip string) *visitor {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	v, ok := rl.visitors.Get(ip)
	if !ok {
		v = &visitor{tokens: rl.limit, lastReset: rl.now()}
	}
	// refresh the expiry on every request
	rl.visitors.Set(ip, v)
	return v
}

// Allow consumes one token of ip.
func (rl *RateLimiter) Allow(ip string) bool {
	v := rl.getVisitor(ip)

	v.mu.Lock()
	defer v.mu.Unlock()

	now := rl.now()
	if now.Sub(v.lastReset) >= rl.interval {
		v.tokens = rl.limit
		v.lastReset = now
	}
	if v.tokens > 0 {
		v.tokens--
		return true
	}
	return false
}

// Visitors returns the number of tracked clients.
func (rl *RateLimiter) Visitors() int {
	return rl.visitors.Len()
}

// RateLimit rejects clients over their budget with a 429.
func RateLimit(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !rl.Allow(ip) {
				rl.logger.Warn().
					Str("ip", ip).
					Str("path", r.URL.Path).
					Msg("Rate limit exceeded")

				writeError(w, http.StatusTooManyRequests,
					`{"data":null,"error":{"code":"RATE_LIMITED","message":"Rate limit exceeded","details":"Too many requests. Please try again later."}}`)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop, then the remote host.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
