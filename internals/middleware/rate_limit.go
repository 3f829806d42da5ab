package middleware

import (
	"fmt"
	"net/http"

	"github.com/eduardohgo/pry-lapape/internals/config"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiter applies coarse fixed-window per-IP caps at the transport
// boundary, in front of the per-account throttling. Counters live in Redis
// (INCR + EXPIRE); when Redis is unavailable the limiter fails open so an
// outage never takes logins down with it.
type RateLimiter struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRateLimiter wraps a Redis client. rdb may be nil, which disables
// limiting entirely.
func NewRateLimiter(rdb *redis.Client, logger *zap.Logger) *RateLimiter {
	if rdb == nil {
		logger.Warn("redis not configured, per-IP rate limiting disabled")
	}
	return &RateLimiter{rdb: rdb, logger: logger}
}

// Limit returns a middleware enforcing rule under the given counter name.
func (rl *RateLimiter) Limit(name string, rule config.RateLimitRule) gin.HandlerFunc {
	if rl.rdb == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := fmt.Sprintf("ratelimit:%s:%s", name, c.ClientIP())

		count, err := rl.rdb.Incr(ctx, key).Result()
		if err != nil {
			rl.logger.Error("redis error during rate limiting", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			rl.rdb.Expire(ctx, key, rule.Window)
		}

		if count > rule.Max {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Demasiadas solicitudes. Intenta más tarde.",
			})
			return
		}
		c.Next()
	}
}
