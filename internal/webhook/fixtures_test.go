package webhook

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	stripewebhook "github.com/stripe/stripe-go/v74/webhook"
)

const testSecret = "whsec_test_secret"

func signHeader(payload []byte, secret string, ts time.Time) string {
	sig := stripewebhook.ComputeSignature(ts, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(sig))
}

func eventPayload(t *testing.T, id, eventType string, object map[string]any) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"created":     time.Now().Unix(),
		"api_version": "2022-11-15",
		"data":        map[string]any{"object": object},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload
}

func succeededIntent(id string, amount int64, metadata map[string]string) map[string]any {
	return map[string]any{
		"id":              id,
		"object":          "payment_intent",
		"amount":          amount,
		"amount_received": amount,
		"currency":        "usd",
		"status":          "succeeded",
		"metadata":        metadata,
	}
}
