package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stripe/stripe-go/v74"

	"github.com/loyalty-pay/balance_ledger/internal/deposit"
	"github.com/loyalty-pay/balance_ledger/internal/ledger"
	"github.com/loyalty-pay/balance_ledger/internal/logging"
)

// Event types handled by the service.
const (
	TypePaymentIntentSucceeded = "payment_intent.succeeded"
	TypePaymentIntentFailed    = "payment_intent.payment_failed"
	TypePaymentIntentCanceled  = "payment_intent.canceled"
	TypeChargeSucceeded        = "charge.succeeded"
	TypeChargeFailed           = "charge.failed"
)

// Metadata keys every top-up intent must carry.
const (
	MetadataUserID     = "user_id"
	MetadataLocationID = "location_id"
)

// Settler turns a succeeded payment into balance.
type Settler interface {
	Settle(ctx context.Context, in deposit.SettleInput) (deposit.SettleResult, error)
}

// PaymentHandlers holds the per-type payment event handlers.
type PaymentHandlers struct {
	settler Settler
	logger  *slog.Logger
}

// NewPaymentHandlers constructs the handler set.
func NewPaymentHandlers(settler Settler, logger *slog.Logger) *PaymentHandlers {
	return &PaymentHandlers{settler: settler, logger: logging.With(logger, "payment_events")}
}

// Register binds every payment handler on d.
func (h *PaymentHandlers) Register(d *Dispatcher) {
	d.Register(TypePaymentIntentSucceeded, h.PaymentIntentSucceeded)
	d.Register(TypePaymentIntentFailed, h.PaymentIntentFailed)
	d.Register(TypePaymentIntentCanceled, h.PaymentIntentCanceled)
	d.Register(TypeChargeSucceeded, h.ChargeSucceeded)
	d.Register(TypeChargeFailed, h.ChargeFailed)
}

// PaymentIntentSucceeded settles the intent: one deposit and one credit per intent id.
func (h *PaymentHandlers) PaymentIntentSucceeded(ctx context.Context, ev Event) error {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(ev.Object, &pi); err != nil {
		return Permanent(fmt.Errorf("decode payment intent: %w", err))
	}
	amount := pi.AmountReceived
	if amount == 0 {
		amount = pi.Amount
	}

	res, err := h.settler.Settle(ctx, deposit.SettleInput{
		PaymentID:  pi.ID,
		UserID:     pi.Metadata[MetadataUserID],
		LocationID: pi.Metadata[MetadataLocationID],
		Amount:     amount,
		Currency:   string(pi.Currency),
	})
	switch {
	case errors.Is(err, deposit.ErrMetadataIncomplete),
		errors.Is(err, deposit.ErrInvalidAmount),
		errors.Is(err, deposit.ErrMissingPaymentID):
		return Permanent(err)
	case errors.Is(err, ledger.ErrBalanceOverflow):
		h.logger.Error("balance ceiling reached, deposit not credited",
			"event_id", ev.ID, "payment_id", pi.ID, "amount", amount, "error", err)
		return err
	case err != nil:
		return err
	}

	h.logger.Info("payment intent settled",
		"event_id", ev.ID, "payment_id", pi.ID,
		"deposit", res.Deposit.Status, "credit", res.Credit.Status, "balance", res.Credit.Balance)
	return nil
}

// PaymentIntentFailed records a failed payment attempt. Balances are not touched.
func (h *PaymentHandlers) PaymentIntentFailed(_ context.Context, ev Event) error {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(ev.Object, &pi); err != nil {
		return Permanent(fmt.Errorf("decode payment intent: %w", err))
	}
	reason := ""
	if pi.LastPaymentError != nil {
		reason = pi.LastPaymentError.Msg
	}
	h.logger.Warn("payment intent failed",
		"event_id", ev.ID, "payment_id", pi.ID,
		"user_id", pi.Metadata[MetadataUserID], "location_id", pi.Metadata[MetadataLocationID],
		"amount", pi.Amount, "reason", reason)
	return nil
}

// PaymentIntentCanceled records a canceled intent. Balances are not touched.
func (h *PaymentHandlers) PaymentIntentCanceled(_ context.Context, ev Event) error {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(ev.Object, &pi); err != nil {
		return Permanent(fmt.Errorf("decode payment intent: %w", err))
	}
	h.logger.Info("payment intent canceled",
		"event_id", ev.ID, "payment_id", pi.ID,
		"user_id", pi.Metadata[MetadataUserID], "location_id", pi.Metadata[MetadataLocationID],
		"reason", string(pi.CancellationReason))
	return nil
}

// ChargeSucceeded is informational: settlement happens on payment_intent.succeeded only,
// so a payment never credits twice through its charge.
func (h *PaymentHandlers) ChargeSucceeded(_ context.Context, ev Event) error {
	var ch stripe.Charge
	if err := json.Unmarshal(ev.Object, &ch); err != nil {
		return Permanent(fmt.Errorf("decode charge: %w", err))
	}
	h.logger.Info("charge succeeded", "event_id", ev.ID, "charge_id", ch.ID, "payment_id", chargeIntentID(ch), "amount", ch.Amount)
	return nil
}

// ChargeFailed records a failed charge.
func (h *PaymentHandlers) ChargeFailed(_ context.Context, ev Event) error {
	var ch stripe.Charge
	if err := json.Unmarshal(ev.Object, &ch); err != nil {
		return Permanent(fmt.Errorf("decode charge: %w", err))
	}
	h.logger.Warn("charge failed",
		"event_id", ev.ID, "charge_id", ch.ID, "payment_id", chargeIntentID(ch),
		"amount", ch.Amount, "reason", ch.FailureMessage)
	return nil
}

func chargeIntentID(ch stripe.Charge) string {
	if ch.PaymentIntent == nil {
		return ""
	}
	return ch.PaymentIntent.ID
}
