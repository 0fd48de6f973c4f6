package deposit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/loyalty-pay/balance_ledger/internal/ledger"
	"github.com/loyalty-pay/balance_ledger/internal/logging"
)

var (
	// ErrMetadataIncomplete means the payment carried no user or location. Retrying cannot fix it.
	ErrMetadataIncomplete = errors.New("payment metadata missing user_id or location_id")

	// ErrInvalidAmount rejects non-positive amounts and amounts above the balance ceiling.
	ErrInvalidAmount = errors.New("deposit amount out of range")

	// ErrMissingPaymentID rejects deposits without a processor payment id.
	ErrMissingPaymentID = errors.New("source payment id is required")
)

// Recorder writes deposits keyed by the processor payment id.
type Recorder struct {
	repo    Repository
	ceiling int64
	logger  *slog.Logger
	now     func() time.Time
}

// NewRecorder constructs a recorder. A ceiling outside [1, ledger.MaxAmount] falls back to MaxAmount.
func NewRecorder(repo Repository, ceiling int64, logger *slog.Logger) *Recorder {
	if ledger.ValidateCeiling(ceiling) != nil {
		ceiling = ledger.MaxAmount
	}
	return &Recorder{
		repo:    repo,
		ceiling: ceiling,
		logger:  logging.With(logger, "deposit_recorder"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RecordDeposit stores one deposit per source payment id. Replays return the stored row
// with StatusAlreadyRecorded; the stored row wins if the replay disagrees with it.
func (r *Recorder) RecordDeposit(ctx context.Context, sourcePaymentID, userID, locationID string, amount int64) (Outcome, error) {
	if sourcePaymentID == "" {
		return Outcome{}, ErrMissingPaymentID
	}
	if userID == "" || locationID == "" {
		return Outcome{}, ErrMetadataIncomplete
	}
	if amount <= 0 || amount > r.ceiling {
		return Outcome{}, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}

	d := Deposit{
		ID:              uuid.NewString(),
		UserID:          userID,
		LocationID:      locationID,
		Amount:          amount,
		SourcePaymentID: sourcePaymentID,
		CreatedAt:       r.now(),
	}
	inserted, err := r.repo.Insert(ctx, d)
	if err != nil {
		return Outcome{}, fmt.Errorf("insert deposit %s: %w", sourcePaymentID, err)
	}
	if inserted {
		r.logger.Info("deposit recorded",
			"payment_id", sourcePaymentID, "user_id", userID, "location_id", locationID, "amount", amount)
		return Outcome{Status: StatusRecorded, Deposit: d}, nil
	}

	stored, err := r.repo.GetBySourcePaymentID(ctx, sourcePaymentID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load deposit %s: %w", sourcePaymentID, err)
	}
	if stored.Amount != amount || stored.UserID != userID || stored.LocationID != locationID {
		r.logger.Warn("deposit replay differs from stored row",
			"payment_id", sourcePaymentID,
			"stored_user_id", stored.UserID, "stored_location_id", stored.LocationID, "stored_amount", stored.Amount,
			"event_user_id", userID, "event_location_id", locationID, "event_amount", amount)
	}
	return Outcome{Status: StatusAlreadyRecorded, Deposit: stored}, nil
}
