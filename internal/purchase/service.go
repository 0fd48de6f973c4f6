package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/loyalty-pay/balance_ledger/internal/ledger"
	"github.com/loyalty-pay/balance_ledger/internal/logging"
	"github.com/loyalty-pay/balance_ledger/internal/notification"
	"github.com/loyalty-pay/balance_ledger/internal/telemetry"
)

// KeyPrefix namespaces purchase debits in the idempotency key space.
const KeyPrefix = "purchase:"

var (
	// ErrInvalidRequest rejects purchases missing a request, user, location or item id.
	ErrInvalidRequest = errors.New("request_id, user_id, location_id and item_id are required")

	// ErrInvalidPrice rejects non-positive prices.
	ErrInvalidPrice = errors.New("price must be positive")

	// ErrRequestMismatch means a request id was reused for a different purchase.
	ErrRequestMismatch = errors.New("request id already used for a different purchase")
)

// Input is a purchase request from a client.
type Input struct {
	UserID     string
	LocationID string
	ItemID     string
	Price      int64
	RequestID  string
}

// Result is the purchase after execution. Replayed is true when an earlier call with the
// same request id had already completed it.
type Result struct {
	Purchase Purchase
	Balance  int64
	Replayed bool
}

// Service executes purchases against the balance ledger.
type Service struct {
	repo     Repository
	ledger   ledger.Ledger
	notifier notification.Notifier
	currency string
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewService constructs the purchase executor. A nil notifier disables notifications.
func NewService(repo Repository, l ledger.Ledger, notifier notification.Notifier, currency string, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		ledger:   l,
		notifier: notifier,
		currency: currency,
		logger:   logging.With(logger, "purchase"),
		tracer:   telemetry.Tracer("purchase"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// DebitKey returns the ledger idempotency key for a purchase request.
func DebitKey(requestID string) string {
	return KeyPrefix + requestID
}

// Purchase reserves the request, debits the price and records the outcome. A denied
// purchase returns its Result together with an error wrapping ledger.ErrInsufficientFunds.
// Retrying a denied request attempts the debit again.
func (s *Service) Purchase(ctx context.Context, in Input) (Result, error) {
	if in.RequestID == "" || in.UserID == "" || in.LocationID == "" || in.ItemID == "" {
		return Result{}, ErrInvalidRequest
	}
	if in.Price <= 0 {
		return Result{}, ErrInvalidPrice
	}

	ctx, span := s.tracer.Start(ctx, "purchase.Execute", trace.WithAttributes(
		append(telemetry.Account(in.UserID, in.LocationID),
			attribute.String("purchase.request_id", in.RequestID),
			attribute.Int64("purchase.price", in.Price))...,
	))
	defer span.End()

	now := s.now()
	p, created, err := s.repo.Reserve(ctx, Purchase{
		ID:         uuid.NewString(),
		RequestID:  in.RequestID,
		UserID:     in.UserID,
		LocationID: in.LocationID,
		ItemID:     in.ItemID,
		Price:      in.Price,
		CreatedAt:  now,
	})
	if err != nil {
		telemetry.Fail(span, err)
		return Result{}, fmt.Errorf("reserve purchase %s: %w", in.RequestID, err)
	}
	if !created && !p.sameRequest(Purchase{UserID: in.UserID, LocationID: in.LocationID, ItemID: in.ItemID, Price: in.Price}) {
		telemetry.Fail(span, ErrRequestMismatch)
		return Result{Purchase: p}, ErrRequestMismatch
	}

	account := ledger.Account{UserID: p.UserID, LocationID: p.LocationID}
	if p.Status == StatusCompleted {
		return s.replay(ctx, span, p)
	}

	out, err := s.ledger.Debit(ctx, ledger.Posting{Account: account, Amount: p.Price, Key: DebitKey(p.RequestID)})
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		stored, uerr := s.repo.UpdateStatus(ctx, p.RequestID, StatusDenied)
		if uerr != nil {
			telemetry.Fail(span, uerr)
			return Result{}, fmt.Errorf("deny purchase %s: %w", p.RequestID, uerr)
		}
		if stored.Status == StatusCompleted {
			// A concurrent call with the same request id debited and completed it.
			return s.replay(ctx, span, stored)
		}
		p = stored
		span.SetAttributes(attribute.String("purchase.status", string(p.Status)))
		s.logger.Info("purchase denied",
			"request_id", p.RequestID, "user_id", p.UserID, "location_id", p.LocationID,
			"price", p.Price, "balance", out.Balance)
		return Result{Purchase: p, Balance: out.Balance}, fmt.Errorf("purchase %s: %w", p.RequestID, err)
	case err != nil:
		// The row stays pending; a retry with the same request id resumes here.
		telemetry.Fail(span, err)
		return Result{}, fmt.Errorf("debit purchase %s: %w", p.RequestID, err)
	}

	p, err = s.repo.UpdateStatus(ctx, p.RequestID, StatusCompleted)
	if err != nil {
		telemetry.Fail(span, err)
		return Result{}, fmt.Errorf("complete purchase %s: %w", in.RequestID, err)
	}
	span.SetAttributes(attribute.String("purchase.status", string(p.Status)))
	s.logger.Info("purchase completed",
		"request_id", p.RequestID, "user_id", p.UserID, "location_id", p.LocationID,
		"item_id", p.ItemID, "price", p.Price, "debit", out.Status, "balance", out.Balance)

	if out.Status == ledger.StatusApplied {
		s.notify(ctx, p, out.Balance)
	}
	return Result{Purchase: p, Balance: out.Balance, Replayed: out.Status == ledger.StatusAlreadyApplied}, nil
}

// replay returns a purchase completed by an earlier or concurrent call.
func (s *Service) replay(ctx context.Context, span trace.Span, p Purchase) (Result, error) {
	balance, err := s.ledger.Balance(ctx, ledger.Account{UserID: p.UserID, LocationID: p.LocationID})
	if err != nil {
		telemetry.Fail(span, err)
		return Result{}, err
	}
	span.SetAttributes(attribute.String("purchase.status", string(p.Status)))
	return Result{Purchase: p, Balance: balance, Replayed: true}, nil
}

func (s *Service) notify(ctx context.Context, p Purchase, balance int64) {
	if s.notifier == nil {
		return
	}
	msg := notification.Message{
		Kind:        notification.KindPurchaseCompleted,
		Destination: p.UserID,
		Body: fmt.Sprintf("%s %s spent on %s, balance %s %s",
			notification.FormatMinorUnits(p.Price), s.currency, p.ItemID,
			notification.FormatMinorUnits(balance), s.currency),
		Attributes: map[string]string{
			"request_id":  p.RequestID,
			"location_id": p.LocationID,
		},
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn("purchase notification failed", "request_id", p.RequestID, "error", err)
	}
}
