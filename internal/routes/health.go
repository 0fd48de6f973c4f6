package routes

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/loyalty-pay/balance_ledger/internal/infra"
)

// RegisterHealthRoutes adds the readiness endpoint.
func RegisterHealthRoutes(app *fiber.App, health infra.Health) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		status, ok := health.Check(c.UserContext())
		code := http.StatusOK
		if !ok {
			code = http.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status":    status,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
