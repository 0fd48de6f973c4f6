package infra

import (
	"context"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type brokerStub bool

func (b brokerStub) Healthy() bool { return bool(b) }

func TestHealthCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	status, ok := Health{Cache: cache, Broker: brokerStub(true)}.Check(context.Background())
	if !ok {
		t.Fatalf("expected healthy, got %v", status)
	}
	if status["postgres"] != "disabled" || status["redis"] != "ok" || status["broker"] != "ok" {
		t.Fatalf("unexpected status: %v", status)
	}

	status, ok = Health{Broker: brokerStub(false)}.Check(context.Background())
	if ok || status["broker"] != "error" {
		t.Fatalf("expected broker failure, got %v", status)
	}
}

func TestSchemaDeclaresUniqueKeys(t *testing.T) {
	ddl := Schema()
	for _, want := range []string{
		"source_payment_id TEXT        NOT NULL UNIQUE",
		"idempotency_key TEXT PRIMARY KEY",
		"request_id  TEXT        NOT NULL UNIQUE",
		"CHECK (balance >= 0)",
	} {
		if !strings.Contains(ddl, want) {
			t.Fatalf("schema missing %q", want)
		}
	}
}
