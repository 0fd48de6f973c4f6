package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/loyalty-pay/balance_ledger/internal/webhook"
)

// RegisterWebhookRoutes wires the processor notification endpoint.
func RegisterWebhookRoutes(app *fiber.App, h *webhook.Handler, mw ...fiber.Handler) {
	handlers := append(mw, h.Receive)
	app.Post("/webhooks/stripe", handlers...)
}
