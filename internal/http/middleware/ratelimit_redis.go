package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

// RateLimiter implements fixed-window limits with Redis SET NX EX + INCR.
// A nil client or any Redis error lets the request through.
type RateLimiter struct {
	client *redis.Client
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// ByIP limits requests per client IP.
// key format: rl:<scope>:<window_seconds>:<ip>
func (l *RateLimiter) ByIP(scope string, maxRequests int, window time.Duration) gin.HandlerFunc {
	return l.limit(scope, maxRequests, window, func(c *gin.Context) (string, bool) {
		return c.ClientIP(), true
	})
}

// ByUser limits requests per authenticated user; JWT must run first.
// key format: rl:<scope>:<window_seconds>:u<user_id>
func (l *RateLimiter) ByUser(scope string, maxRequests int, window time.Duration) gin.HandlerFunc {
	return l.limit(scope, maxRequests, window, func(c *gin.Context) (string, bool) {
		v, ok := c.Get(UserIDKey)
		if !ok {
			return "", false
		}
		id, ok := v.(int64)
		if !ok {
			return "", false
		}
		return "u" + strconv.FormatInt(id, 10), true
	})
}

func (l *RateLimiter) limit(scope string, maxRequests int, window time.Duration, ident func(*gin.Context) (string, bool)) gin.HandlerFunc {
	windowSeconds := strconv.FormatInt(int64(window.Seconds()), 10)
	return func(c *gin.Context) {
		if l == nil || l.client == nil || maxRequests <= 0 {
			c.Next()
			return
		}

		id, ok := ident(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized"})
			return
		}

		key := "rl:" + scope + ":" + windowSeconds + ":" + id
		ctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
		defer cancel()

		// the counter is created with its expiry in the same transaction,
		// so a key can never outlive its window
		var incr *redis.IntCmd
		_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetNX(ctx, key, 0, window)
			incr = pipe.Incr(ctx, key)
			return nil
		})
		if err != nil {
			c.Header("X-RateLimit-Error", "redis-error")
			c.Next()
			return
		}
		val := incr.Val()

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(0, int64(maxRequests)-val), 10))

		if val > int64(maxRequests) {
			RLBlocked.WithLabelValues(scope).Inc()
			c.Header("Retry-After", windowSeconds)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "message": "rate limit exceeded"})
			return
		}

		RLRequests.WithLabelValues(scope).Inc()
		c.Next()
	}
}
