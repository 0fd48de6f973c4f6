package webhook

import (
	"context"
	"errors"
	"testing"

	"github.com/loyalty-pay/balance_ledger/internal/logging"
)

func TestDispatchUnknownTypeIgnored(t *testing.T) {
	d := NewDispatcher(logging.Discard())
	res, err := d.Dispatch(context.Background(), Event{ID: "evt_1", Type: "customer.created"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.Status != StatusIgnored {
		t.Fatalf("expected ignored, got %s", res.Status)
	}
}

func TestDispatchOutcomes(t *testing.T) {
	errStore := errors.New("store unavailable")
	d := NewDispatcher(logging.Discard())
	d.Register("ok", func(context.Context, Event) error { return nil })
	d.Register("permanent", func(context.Context, Event) error { return Permanent(errors.New("bad metadata")) })
	d.Register("transient", func(context.Context, Event) error { return errStore })

	res, err := d.Dispatch(context.Background(), Event{ID: "evt_ok", Type: "ok"})
	if err != nil || res.Status != StatusHandled {
		t.Fatalf("ok: %+v %v", res, err)
	}

	res, err = d.Dispatch(context.Background(), Event{ID: "evt_perm", Type: "permanent"})
	if err != nil || res.Status != StatusDropped || res.Reason == "" {
		t.Fatalf("permanent: %+v %v", res, err)
	}

	_, err = d.Dispatch(context.Background(), Event{ID: "evt_tr", Type: "transient"})
	var failed *HandlerFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected HandlerFailedError, got %v", err)
	}
	if failed.Type != "transient" || !errors.Is(err, errStore) {
		t.Fatalf("unexpected failure: %+v", failed)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	d := NewDispatcher(logging.Discard())
	d.Register(TypeChargeFailed, func(context.Context, Event) error { return nil })

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	d.Register(TypeChargeFailed, func(context.Context, Event) error { return nil })
}

func TestPermanentNil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Fatal("Permanent(nil) should be nil")
	}
	if IsPermanent(errors.New("plain")) {
		t.Fatal("plain errors are not permanent")
	}
}
