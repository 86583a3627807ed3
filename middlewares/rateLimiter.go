package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed window counter in redis, keyed by user when known and by client IP
// otherwise. A nil client means the shared connection from config.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

func (rl *RateLimiter) key(c *gin.Context) string {
	if email, ok := utils.GetUserEmailFromContext(c.Request.Context()); ok && email != "" {
		return "RateLimit:user:" + email
	}
	return "RateLimit:ip:" + c.ClientIP()
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		client := rl.client
		if client == nil {
			client = config.GetRedisDB()
		}
		if client == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key := rl.key(c)

		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			// redis trouble must not take the API down
			_ = c.Error(err)
			c.Next()
			return
		}
		if count == 1 {
			if err := client.Expire(ctx, key, rl.window).Err(); err != nil {
				_ = c.Error(err)
			}
		}
		if count > rl.limit {
			abort(c, http.StatusTooManyRequests,
				fmt.Errorf("rate limit exceeded, try again in %d seconds", int(rl.window.Seconds())))
			return
		}
		c.Next()
	}
}
