package middleware

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// StoreDeadline bounds the request context handed to handlers, so every store call made
// with c.UserContext() inherits the deadline.
func StoreDeadline(d time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if d <= 0 {
			return c.Next()
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), d)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}
