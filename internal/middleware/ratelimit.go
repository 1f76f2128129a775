package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// FixedWindowLimiter counts requests per key in fixed Redis-backed windows.
type FixedWindowLimiter struct {
	rdb    *redis.Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewFixedWindowLimiter returns nil when limit is not positive, which
// disables limiting.
func NewFixedWindowLimiter(rdb *redis.Client, prefix string, limit int, window time.Duration) *FixedWindowLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	return &FixedWindowLimiter{rdb: rdb, prefix: prefix, limit: limit, window: window, now: time.Now}
}

// Allow reports whether key is still within quota. Redis failures deny.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) bool {
	windowMs := l.window.Milliseconds()
	slot := l.now().UTC().UnixMilli() / windowMs
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, slot)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	count, err := fixedWindowScript.Run(ctx, l.rdb, []string{redisKey}, windowMs).Int64()
	if err != nil {
		slog.ErrorContext(ctx, "rate limiter unavailable", "error", err)
		return false
	}
	return count <= int64(l.limit)
}

// RateLimit rejects requests over the limiter's quota, keyed by client IP.
// A nil limiter lets everything through.
func RateLimit(l *FixedWindowLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(r.Context(), clientIP(r)) {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(l.window.Seconds())))
				writeError(w, http.StatusTooManyRequests, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP relies on chi's RealIP middleware having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
