package topup

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/loyalty-pay/balance_ledger/internal/middleware"
)

// Handler exposes top-up intent creation.
type Handler struct {
	service *Service
}

// NewHandler constructs a top-up handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type topUpRequest struct {
	UserID     string `json:"user_id"`
	LocationID string `json:"location_id"`
	Amount     int64  `json:"amount"`
	RequestID  string `json:"request_id"`
}

type topUpResponse struct {
	PaymentIntentID string `json:"payment_intent_id"`
	ClientSecret    string `json:"client_secret"`
	Status          string `json:"status"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	RequestID       string `json:"request_id"`
}

// Create starts a top-up by creating a payment intent.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req topUpRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if uid, ok := c.Locals(middleware.LocalUserID).(string); ok && uid != "" {
		if req.UserID == "" {
			req.UserID = uid
		} else if req.UserID != uid {
			return fiber.NewError(http.StatusForbidden, "cannot top up another user's balance")
		}
	}

	intent, requestID, err := h.service.Create(c.UserContext(), Input{
		UserID:     req.UserID,
		LocationID: req.LocationID,
		Amount:     req.Amount,
		RequestID:  req.RequestID,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingAccount), errors.Is(err, ErrInvalidAmount):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		default:
			return fiber.NewError(http.StatusBadGateway, "payment processor unavailable")
		}
	}

	return c.Status(http.StatusCreated).JSON(topUpResponse{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Status:          intent.Status,
		Amount:          intent.Amount,
		Currency:        intent.Currency,
		RequestID:       requestID,
	})
}
