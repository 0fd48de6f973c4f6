package middleware

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

// OperatorKeyHeader carries the operator key for internal endpoints.
const OperatorKeyHeader = "X-Operator-Key"

// OperatorKey admits requests whose X-Operator-Key matches the bcrypt hash. An empty hash
// closes the route entirely.
func OperatorKey(hash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if hash == "" {
			return fiber.NewError(http.StatusForbidden, "operator access is not configured")
		}
		key := c.Get(OperatorKeyHeader)
		if key == "" {
			return fiber.NewError(http.StatusUnauthorized, "missing operator key")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid operator key")
		}
		return c.Next()
	}
}
