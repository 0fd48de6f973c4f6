package telemetry

import (
	"context"
	"errors"
	"testing"
)

func TestInitTracerWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "balance-ledger", "test", "")
	if err != nil {
		t.Fatalf("init tracer: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	_, span := Tracer("test").Start(context.Background(), "noop")
	Fail(span, errors.New("boom"))
	Fail(span, nil)
	span.End()
}
