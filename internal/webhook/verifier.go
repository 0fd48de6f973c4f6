package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v74"
	stripewebhook "github.com/stripe/stripe-go/v74/webhook"
)

// DefaultTolerance is the accepted clock skew between the signature timestamp and now.
const DefaultTolerance = 5 * time.Minute

var (
	// ErrVerification is wrapped by every verification failure. Callers answer 400.
	ErrVerification = errors.New("webhook verification failed")

	ErrSignatureInvalid  = fmt.Errorf("%w: signature invalid", ErrVerification)
	ErrTimestampExpired  = fmt.Errorf("%w: timestamp outside tolerance", ErrVerification)
	ErrMalformedHeader   = fmt.Errorf("%w: malformed signature header", ErrVerification)
	ErrMalformedPayload  = fmt.Errorf("%w: payload is not a payment event", ErrVerification)
	errMissingSigningKey = fmt.Errorf("%w: signing secret not configured", ErrVerification)
)

// Event is a verified payment-processor notification.
type Event struct {
	ID       string
	Type     string
	Created  time.Time
	Livemode bool
	// Object is the raw data.object of the event.
	Object   json.RawMessage
	Metadata map[string]string
}

// Verifier binds a signing secret and tolerance.
type Verifier struct {
	secret    string
	tolerance time.Duration
}

// NewVerifier constructs a verifier. A non-positive tolerance uses DefaultTolerance.
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{secret: secret, tolerance: tolerance}
}

// Verify authenticates rawBody against the signature header.
func (v *Verifier) Verify(rawBody []byte, signatureHeader string) (Event, error) {
	return Verify(rawBody, signatureHeader, v.secret, v.tolerance)
}

// Verify checks the processor signature over the exact raw bytes and decodes the event.
// It has no side effects.
func Verify(rawBody []byte, signatureHeader, signingSecret string, tolerance time.Duration) (Event, error) {
	if signingSecret == "" {
		return Event{}, errMissingSigningKey
	}
	if err := stripewebhook.ValidatePayloadWithTolerance(rawBody, signatureHeader, signingSecret, tolerance); err != nil {
		switch {
		case errors.Is(err, stripewebhook.ErrTooOld):
			return Event{}, ErrTimestampExpired
		case errors.Is(err, stripewebhook.ErrNoValidSignature):
			return Event{}, ErrSignatureInvalid
		default:
			return Event{}, ErrMalformedHeader
		}
	}

	var raw stripe.Event
	if err := json.Unmarshal(rawBody, &raw); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if raw.ID == "" || raw.Type == "" || raw.Data == nil || len(raw.Data.Raw) == 0 {
		return Event{}, ErrMalformedPayload
	}

	var obj struct {
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(raw.Data.Raw, &obj); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	return Event{
		ID:       raw.ID,
		Type:     string(raw.Type),
		Created:  time.Unix(raw.Created, 0).UTC(),
		Livemode: raw.Livemode,
		Object:   raw.Data.Raw,
		Metadata: obj.Metadata,
	}, nil
}
