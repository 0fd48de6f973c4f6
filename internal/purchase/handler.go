package purchase

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/loyalty-pay/balance_ledger/internal/ledger"
	"github.com/loyalty-pay/balance_ledger/internal/middleware"
)

// Handler exposes the purchase endpoint.
type Handler struct {
	service *Service
}

// NewHandler constructs a purchase handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type purchaseRequest struct {
	UserID     string `json:"user_id"`
	LocationID string `json:"location_id"`
	ItemID     string `json:"item_id"`
	Price      int64  `json:"price"`
	RequestID  string `json:"request_id"`
}

type purchaseResponse struct {
	PurchaseID string    `json:"purchase_id"`
	RequestID  string    `json:"request_id"`
	Status     Status    `json:"status"`
	Balance    int64     `json:"balance"`
	Message    string    `json:"message,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Create executes a purchase.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req purchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if uid, ok := c.Locals(middleware.LocalUserID).(string); ok && uid != "" {
		if req.UserID == "" {
			req.UserID = uid
		} else if req.UserID != uid {
			return fiber.NewError(http.StatusForbidden, "cannot spend another user's balance")
		}
	}

	res, err := h.service.Purchase(c.UserContext(), Input{
		UserID:     req.UserID,
		LocationID: req.LocationID,
		ItemID:     req.ItemID,
		Price:      req.Price,
		RequestID:  req.RequestID,
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientFunds):
			resp := toResponse(res)
			resp.Message = "Not enough balance at this location for this purchase."
			return c.Status(http.StatusPaymentRequired).JSON(resp)
		case errors.Is(err, ErrRequestMismatch):
			return fiber.NewError(http.StatusConflict, err.Error())
		case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrInvalidPrice),
			errors.Is(err, ledger.ErrAmountAboveCeiling):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		default:
			return fiber.NewError(http.StatusServiceUnavailable, "purchase could not be completed, retry with the same request_id")
		}
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	return c.Status(status).JSON(toResponse(res))
}

func toResponse(res Result) purchaseResponse {
	return purchaseResponse{
		PurchaseID: res.Purchase.ID,
		RequestID:  res.Purchase.RequestID,
		Status:     res.Purchase.Status,
		Balance:    res.Balance,
		UpdatedAt:  res.Purchase.UpdatedAt,
	}
}
