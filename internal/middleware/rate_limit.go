package middleware

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimit caps requests per caller per minute using a Redis counter. The caller is the
// authenticated user, or the client IP. Cache errors and a nil cache let requests through.
func RateLimit(cache *redis.Client, scope string, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 60
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		caller, _ := c.Locals(LocalUserID).(string)
		if caller == "" {
			caller = c.IP()
		}
		window := time.Now().UTC().Format("200601021504")
		key := "ledger:v1:rl:" + scope + ":" + caller + ":" + window

		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			c.Set(fiber.HeaderRetryAfter, "60")
			return fiber.NewError(http.StatusTooManyRequests, "too many requests, try again later")
		}
		return c.Next()
	}
}
