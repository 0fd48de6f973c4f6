package notification

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
)

const (
	// KindBalanceCredited is published after a deposit credits a balance.
	KindBalanceCredited = "balance.credited"
	// KindPurchaseCompleted is published after a purchase debits a balance.
	KindPurchaseCompleted = "purchase.completed"
)

// Message describes a domain event for downstream notifiers. Delivery to end users is
// their concern; this service only publishes.
type Message struct {
	Kind        string            `json:"kind"`
	Destination string            `json:"destination"`
	Body        string            `json:"body"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Notifier publishes messages to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger. Used when no broker is configured.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}

// FormatMinorUnits renders an amount in minor units as a two-decimal string, e.g. 1250 -> "12.50".
func FormatMinorUnits(amount int64) string {
	return decimal.New(amount, -2).StringFixed(2)
}
