package ledger

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/loyalty-pay/balance_ledger/internal/middleware"
)

// Handler exposes balance read endpoints.
type Handler struct {
	ledger Ledger
}

// NewHandler builds a balance HTTP handler.
func NewHandler(l Ledger) *Handler {
	return &Handler{ledger: l}
}

type balanceResponse struct {
	UserID     string    `json:"user_id"`
	LocationID string    `json:"location_id"`
	Balance    int64     `json:"balance"`
	AsOf       time.Time `json:"as_of"`
}

// Balance returns the current balance of a user at a location. When the route runs behind
// JWT auth, a caller may only read their own balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	account := Account{UserID: c.Params("userId"), LocationID: c.Params("locationId")}
	if account.UserID == "" || account.LocationID == "" {
		return fiber.NewError(http.StatusBadRequest, ErrMissingAccount.Error())
	}
	if uid, ok := c.Locals(middleware.LocalUserID).(string); ok && uid != "" && uid != account.UserID {
		return fiber.NewError(http.StatusForbidden, "cannot read another user's balance")
	}

	balance, err := h.ledger.Balance(c.UserContext(), account)
	if err != nil {
		return fiber.NewError(http.StatusServiceUnavailable, "balance store unavailable")
	}
	return c.Status(http.StatusOK).JSON(balanceResponse{
		UserID:     account.UserID,
		LocationID: account.LocationID,
		Balance:    balance,
		AsOf:       time.Now().UTC(),
	})
}
