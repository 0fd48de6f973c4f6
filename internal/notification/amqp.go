package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// publisher is the part of *amqp.Channel the notifier uses.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// connection is the part of *amqp.Connection the notifier uses.
type connection interface {
	IsClosed() bool
	Close() error
}

// AMQPNotifier publishes messages as JSON to a topic exchange, routed by message kind.
type AMQPNotifier struct {
	conn     connection
	ch       publisher
	exchange string
}

// NewAMQPNotifier dials the broker and declares a durable topic exchange.
func NewAMQPNotifier(url, exchange string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPNotifier{conn: conn, ch: ch, exchange: exchange}, nil
}

// Send publishes the message with its kind as routing key.
func (n *AMQPNotifier) Send(ctx context.Context, message Message) error {
	body, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return n.ch.PublishWithContext(ctx, n.exchange, message.Kind, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

// Healthy reports whether the broker connection is still open.
func (n *AMQPNotifier) Healthy() bool {
	return n != nil && n.conn != nil && !n.conn.IsClosed()
}

// Close releases the channel and connection.
func (n *AMQPNotifier) Close() error {
	if n.ch != nil {
		_ = n.ch.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}
