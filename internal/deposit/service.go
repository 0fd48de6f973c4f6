package deposit

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/loyalty-pay/balance_ledger/internal/ledger"
	"github.com/loyalty-pay/balance_ledger/internal/logging"
	"github.com/loyalty-pay/balance_ledger/internal/notification"
	"github.com/loyalty-pay/balance_ledger/internal/telemetry"
)

// KeyPrefix namespaces deposit credits in the idempotency key space.
const KeyPrefix = "deposit:"

// SettleInput is a succeeded payment ready to become balance.
type SettleInput struct {
	PaymentID  string
	UserID     string
	LocationID string
	Amount     int64
	Currency   string
}

// SettleResult reports what the settlement changed.
type SettleResult struct {
	Deposit Outcome
	Credit  ledger.Outcome
}

// Service turns a succeeded payment into a deposit and a balance credit. Every step is
// idempotent, so the whole sequence can be replayed after a crash at any point.
type Service struct {
	recorder *Recorder
	ledger   ledger.Ledger
	notifier notification.Notifier
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewService wires the settlement flow. A nil notifier disables notifications.
func NewService(recorder *Recorder, l ledger.Ledger, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{
		recorder: recorder,
		ledger:   l,
		notifier: notifier,
		logger:   logging.With(logger, "settlement"),
		tracer:   telemetry.Tracer("deposit"),
	}
}

// CreditKey returns the ledger idempotency key for a payment.
func CreditKey(paymentID string) string {
	return KeyPrefix + paymentID
}

// Settle records the deposit and credits the stored deposit's account and amount.
func (s *Service) Settle(ctx context.Context, in SettleInput) (SettleResult, error) {
	ctx, span := s.tracer.Start(ctx, "deposit.Settle", trace.WithAttributes(
		append(telemetry.Account(in.UserID, in.LocationID),
			attribute.String("payment.id", in.PaymentID),
			attribute.Int64("payment.amount", in.Amount))...,
	))
	defer span.End()

	recorded, err := s.recorder.RecordDeposit(ctx, in.PaymentID, in.UserID, in.LocationID, in.Amount)
	if err != nil {
		telemetry.Fail(span, err)
		return SettleResult{}, err
	}

	d := recorded.Deposit
	credit, err := s.ledger.Credit(ctx, ledger.Posting{
		Account: ledger.Account{UserID: d.UserID, LocationID: d.LocationID},
		Amount:  d.Amount,
		Key:     CreditKey(d.SourcePaymentID),
	})
	if err != nil {
		telemetry.Fail(span, err)
		return SettleResult{Deposit: recorded}, fmt.Errorf("credit deposit %s: %w", d.SourcePaymentID, err)
	}

	span.SetAttributes(attribute.String("ledger.status", string(credit.Status)))
	s.logger.Info("deposit settled",
		"payment_id", d.SourcePaymentID, "user_id", d.UserID, "location_id", d.LocationID,
		"amount", d.Amount, "deposit", recorded.Status, "credit", credit.Status, "balance", credit.Balance)

	if credit.Status == ledger.StatusApplied {
		s.notify(ctx, d, in.Currency, credit.Balance)
	}
	return SettleResult{Deposit: recorded, Credit: credit}, nil
}

func (s *Service) notify(ctx context.Context, d Deposit, currency string, balance int64) {
	if s.notifier == nil {
		return
	}
	msg := notification.Message{
		Kind:        notification.KindBalanceCredited,
		Destination: d.UserID,
		Body: fmt.Sprintf("%s %s added at %s, balance %s %s",
			notification.FormatMinorUnits(d.Amount), currency, d.LocationID,
			notification.FormatMinorUnits(balance), currency),
		Attributes: map[string]string{
			"payment_id":  d.SourcePaymentID,
			"location_id": d.LocationID,
		},
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn("balance notification failed", "payment_id", d.SourcePaymentID, "error", err)
	}
}
