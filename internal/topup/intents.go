package topup

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
)

// IntentCreator creates processor payment intents.
type IntentCreator interface {
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
}

// IntentRequest carries everything the processor needs, including the metadata the
// settlement path reads back from payment_intent.succeeded.
type IntentRequest struct {
	UserID     string
	LocationID string
	Amount     int64
	Currency   string
	RequestID  string
}

// Intent is the processor's view of a created payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       int64
	Currency     string
}

// StripeIntents creates payment intents through the Stripe API.
type StripeIntents struct {
	api *client.API
}

// NewStripeIntents builds a Stripe-backed intent creator.
func NewStripeIntents(secretKey string) *StripeIntents {
	return &StripeIntents{api: client.New(secretKey, nil)}
}

// CreateIntent creates a payment intent tagged with user_id and location_id. The client
// request id is the processor idempotency key, so a retried request reuses its intent.
func (s *StripeIntents) CreateIntent(_ context.Context, req IntentRequest) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("user_id", req.UserID)
	params.AddMetadata("location_id", req.LocationID)
	params.AddMetadata("request_id", req.RequestID)
	params.SetIdempotencyKey("topup:" + req.RequestID)

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("create payment intent: %w", err)
	}
	return Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}

// StaticIntents fabricates intents locally for development and tests.
type StaticIntents struct{}

// CreateIntent returns a synthetic intent.
func (StaticIntents) CreateIntent(_ context.Context, req IntentRequest) (Intent, error) {
	id := "pi_static_" + uuid.NewString()
	return Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       "requires_payment_method",
		Amount:       req.Amount,
		Currency:     req.Currency,
	}, nil
}

// ErrProcessorUnavailable is returned when no processor key is configured.
var ErrProcessorUnavailable = errors.New("payment processor not configured")

type unavailableIntents struct{}

func (unavailableIntents) CreateIntent(context.Context, IntentRequest) (Intent, error) {
	return Intent{}, ErrProcessorUnavailable
}

// NewIntentCreator returns the Stripe creator when a secret key is set. Without one,
// development gets StaticIntents and every other environment refuses top-ups.
func NewIntentCreator(secretKey string, development bool) IntentCreator {
	switch {
	case secretKey != "":
		return NewStripeIntents(secretKey)
	case development:
		return StaticIntents{}
	default:
		return unavailableIntents{}
	}
}
