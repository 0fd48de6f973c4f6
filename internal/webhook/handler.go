package webhook

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/loyalty-pay/balance_ledger/internal/logging"
	"github.com/loyalty-pay/balance_ledger/internal/middleware"
)

// SignatureHeader carries the processor signature.
const SignatureHeader = "Stripe-Signature"

// Handler receives processor notifications over HTTP.
type Handler struct {
	verifier   *Verifier
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewHandler constructs the webhook endpoint.
func NewHandler(verifier *Verifier, dispatcher *Dispatcher, logger *slog.Logger) *Handler {
	return &Handler{verifier: verifier, dispatcher: dispatcher, logger: logging.With(logger, "webhook")}
}

// Receive verifies and dispatches one notification. 400 rejects forged or malformed
// deliveries, 500 asks the processor to retry, anything acknowledged gets 200.
func (h *Handler) Receive(c *fiber.Ctx) error {
	// fiber reuses the request buffer after the handler returns.
	body := append([]byte(nil), c.Body()...)

	ev, err := h.verifier.Verify(body, c.Get(SignatureHeader))
	if err != nil {
		h.logger.Warn("webhook rejected", "error", err, "request_id", c.Locals(middleware.LocalRequestID))
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.dispatcher.Dispatch(c.UserContext(), ev)
	if err != nil {
		var failed *HandlerFailedError
		if errors.As(err, &failed) {
			h.logger.Error("webhook handler failed", "event_id", ev.ID, "type", failed.Type, "error", failed.Cause)
		} else {
			h.logger.Error("webhook dispatch failed", "event_id", ev.ID, "type", ev.Type, "error", err)
		}
		return fiber.NewError(http.StatusInternalServerError, "event processing failed")
	}

	h.logger.Info("webhook processed", "event_id", res.EventID, "type", res.Type, "status", res.Status)
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"received": true,
		"event_id": res.EventID,
		"status":   res.Status,
	})
}
