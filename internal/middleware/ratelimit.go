package middleware

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	MaxFailures int           // failed attempts allowed per window
	Window      time.Duration // counted from the first failure
	KeyPrefix   string        // Redis key prefix
}

// RateLimitMiddleware throttles credential guessing. Only responses with status 401
// count against the client; a successful response clears its counter. Once the
// limit is reached further requests get 429 until the window expires. Redis errors
// let the request through.
func RateLimitMiddleware(redisClient *redis.Client, config RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := fmt.Sprintf("%s:%s", config.KeyPrefix, clientIP(r))

			failures, err := redisClient.Get(ctx, key).Int()
			if err != nil && !errors.Is(err, redis.Nil) {
				logger.Error("Failed to read rate limit counter", zap.Error(err), zap.String("key", key))
				next.ServeHTTP(w, r)
				return
			}

			if failures >= config.MaxFailures {
				ttl, err := redisClient.TTL(ctx, key).Result()
				if err != nil || ttl < 0 {
					ttl = config.Window
				}

				logger.Warn("Rate limit exceeded",
					zap.String("key", key),
					zap.Int("failures", failures),
					zap.Int("limit", config.MaxFailures),
				)

				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.MaxFailures))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", strconv.Itoa(int(ttl.Round(time.Second).Seconds())))
				RespondWithError(w, http.StatusTooManyRequests, "Too many failed login attempts. Please try again later.")
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.MaxFailures))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(config.MaxFailures-failures))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			switch status := ww.Status(); {
			case status == http.StatusUnauthorized:
				// the window starts at the first failure; NX keeps a running window and
				// repairs a counter left without a TTL
				var incr *redis.IntCmd
				_, err := redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					incr = pipe.Incr(ctx, key)
					pipe.ExpireNX(ctx, key, config.Window)
					return nil
				})
				if err != nil {
					logger.Error("Failed to record failed login", zap.Error(err), zap.String("key", key))
					return
				}
				logger.Debug("Failed login recorded", zap.String("key", key), zap.Int64("failures", incr.Val()))
			case status >= 200 && status < 300:
				if err := redisClient.Del(ctx, key).Err(); err != nil {
					logger.Error("Failed to reset rate limit counter", zap.Error(err), zap.String("key", key))
				}
			}
		})
	}
}

// clientIP strips the port from RemoteAddr, which middleware.RealIP may already
// have replaced with a forwarded address
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
