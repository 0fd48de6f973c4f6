package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/loyalty-pay/balance_ledger/internal/logging"
)

// Status is the dispatcher's verdict on an event.
type Status string

const (
	// StatusHandled means a handler processed the event.
	StatusHandled Status = "handled"
	// StatusIgnored means no handler is registered for the event type.
	StatusIgnored Status = "ignored"
	// StatusDropped means the handler rejected the event permanently. It is acknowledged
	// so the processor stops retrying, and logged for follow-up.
	StatusDropped Status = "dropped"
)

// Result is the outcome of Dispatch.
type Result struct {
	EventID string
	Type    string
	Status  Status
	Reason  string
}

// HandlerFunc processes one verified event.
type HandlerFunc func(ctx context.Context, ev Event) error

// HandlerFailedError carries a retryable handler failure. The processor should redeliver.
type HandlerFailedError struct {
	Type  string
	Cause error
}

func (e *HandlerFailedError) Error() string {
	return fmt.Sprintf("handler for %s failed: %v", e.Type, e.Cause)
}

func (e *HandlerFailedError) Unwrap() error {
	return e.Cause
}

type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks a handler error as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// Dispatcher routes verified events to exactly one handler by type.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   *slog.Logger
}

// NewDispatcher constructs an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{handlers: make(map[string]HandlerFunc), logger: logging.With(logger, "webhook_dispatcher")}
}

// Register binds a handler to an event type. It panics when the type is already bound.
func (d *Dispatcher) Register(eventType string, h HandlerFunc) {
	if _, exists := d.handlers[eventType]; exists {
		panic(fmt.Sprintf("webhook: handler already registered for %q", eventType))
	}
	d.handlers[eventType] = h
}

// Dispatch invokes the handler registered for ev.Type.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) (Result, error) {
	res := Result{EventID: ev.ID, Type: ev.Type}
	h, ok := d.handlers[ev.Type]
	if !ok {
		d.logger.Debug("event ignored", "event_id", ev.ID, "type", ev.Type)
		res.Status = StatusIgnored
		return res, nil
	}

	if err := h(ctx, ev); err != nil {
		if IsPermanent(err) {
			d.logger.Error("event dropped", "event_id", ev.ID, "type", ev.Type, "error", err)
			res.Status = StatusDropped
			res.Reason = err.Error()
			return res, nil
		}
		return res, &HandlerFailedError{Type: ev.Type, Cause: err}
	}

	res.Status = StatusHandled
	return res, nil
}
