package topup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/loyalty-pay/balance_ledger/internal/ledger"
	"github.com/loyalty-pay/balance_ledger/internal/logging"
)

var (
	// ErrMissingAccount rejects top-ups without a user or location.
	ErrMissingAccount = errors.New("user_id and location_id are required")
	// ErrInvalidAmount rejects amounts outside [1, ceiling].
	ErrInvalidAmount = errors.New("top-up amount out of range")
)

// Input is a client's request to add balance at a location.
type Input struct {
	UserID     string
	LocationID string
	Amount     int64
	RequestID  string
}

// Service creates top-up payment intents.
type Service struct {
	intents  IntentCreator
	currency string
	ceiling  int64
	logger   *slog.Logger
}

// NewService constructs a top-up service. A nil creator falls back to StaticIntents.
func NewService(intents IntentCreator, currency string, ceiling int64, logger *slog.Logger) *Service {
	if intents == nil {
		intents = StaticIntents{}
	}
	if ledger.ValidateCeiling(ceiling) != nil {
		ceiling = ledger.MaxAmount
	}
	return &Service{intents: intents, currency: currency, ceiling: ceiling, logger: logging.With(logger, "topup")}
}

// Create validates the request and creates a payment intent carrying the balance metadata.
func (s *Service) Create(ctx context.Context, in Input) (Intent, string, error) {
	if in.UserID == "" || in.LocationID == "" {
		return Intent{}, "", ErrMissingAccount
	}
	if in.Amount <= 0 || in.Amount > s.ceiling {
		return Intent{}, "", fmt.Errorf("%w: %d", ErrInvalidAmount, in.Amount)
	}
	if in.RequestID == "" {
		in.RequestID = uuid.NewString()
	}

	intent, err := s.intents.CreateIntent(ctx, IntentRequest{
		UserID:     in.UserID,
		LocationID: in.LocationID,
		Amount:     in.Amount,
		Currency:   s.currency,
		RequestID:  in.RequestID,
	})
	if err != nil {
		return Intent{}, in.RequestID, err
	}
	s.logger.Info("top-up intent created",
		"payment_id", intent.ID, "request_id", in.RequestID,
		"user_id", in.UserID, "location_id", in.LocationID, "amount", in.Amount)
	return intent, in.RequestID, nil
}
