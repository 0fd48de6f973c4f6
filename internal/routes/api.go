package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/loyalty-pay/balance_ledger/internal/audit"
	"github.com/loyalty-pay/balance_ledger/internal/ledger"
	"github.com/loyalty-pay/balance_ledger/internal/purchase"
	"github.com/loyalty-pay/balance_ledger/internal/topup"
)

// RegisterBalanceRoutes wires balance reads.
func RegisterBalanceRoutes(r fiber.Router, h *ledger.Handler) {
	r.Get("/users/:userId/locations/:locationId/balance", h.Balance)
}

// RegisterPurchaseRoutes wires the purchase executor.
func RegisterPurchaseRoutes(r fiber.Router, h *purchase.Handler, mw ...fiber.Handler) {
	r.Post("/purchases", append(mw, h.Create)...)
}

// RegisterTopUpRoutes wires top-up intent creation.
func RegisterTopUpRoutes(r fiber.Router, h *topup.Handler, mw ...fiber.Handler) {
	r.Post("/topups", append(mw, h.Create)...)
}

// RegisterAuditRoutes wires the operator audit endpoint.
func RegisterAuditRoutes(app *fiber.App, h *audit.Handler, mw ...fiber.Handler) {
	app.Get("/internal/audit", append(mw, h.Run)...)
}
