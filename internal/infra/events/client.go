// Package events carries ledger change notifications over AMQP so every
// replica can drop its cached dashboard summaries for the changed user.
package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/finledger-go/internal/domain"
	"github.com/boddenberg/finledger-go/internal/infra/observability"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Handler processes one decoded event. Returning an error requeues it.
type Handler func(ctx context.Context, event domain.LedgerEvent) error

// Client publishes and consumes ledger events on a durable direct exchange.
type Client struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	queue    string
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// Dial connects and declares the exchange, the queue and their binding.
func Dial(url, exchange, queue string, metrics *observability.Metrics, logger *zap.Logger) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	c := &Client{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		queue:    queue,
		metrics:  metrics,
		logger:   logger,
	}
	if err := c.setup(); err != nil {
		c.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	return c, nil
}

func (c *Client) setup() error {
	if err := c.channel.ExchangeDeclare(
		c.exchange, // name
		"direct",   // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	spec := queueSpecFor(c.queue)
	q, err := c.channel.QueueDeclare(
		spec.name,       // name
		spec.durable,    // durable
		spec.autoDelete, // delete when unused
		spec.exclusive,  // exclusive
		false,           // no-wait
		nil,             // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	c.queue = q.Name

	if err := c.channel.QueueBind(c.queue, RoutingKey, c.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

type queueSpec struct {
	name       string
	durable    bool
	autoDelete bool
	exclusive  bool
}

// queueSpecFor maps the configured queue name to its declaration. An empty
// name asks the broker for a private queue that lives as long as this
// connection, so every replica sees every event. A cache that died with its
// process needs no backlog, so nothing is lost by dropping the queue.
func queueSpecFor(name string) queueSpec {
	if name == "" {
		return queueSpec{autoDelete: true, exclusive: true}
	}
	return queueSpec{name: name, durable: true}
}

// Queue is the name of the bound queue, broker-assigned when none was configured.
func (c *Client) Queue() string {
	return c.queue
}

// Publish sends one event as a persistent JSON message.
func (c *Client) Publish(ctx context.Context, event domain.LedgerEvent) error {
	body, err := Encode(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(ctx,
		c.exchange, // exchange
		RoutingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    event.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		c.metrics.IncrEvent("publish", "error")
		return fmt.Errorf("publish event: %w", err)
	}
	c.metrics.IncrEvent("publish", "ok")
	return nil
}

// Consume delivers events to handler until ctx is cancelled or the
// channel closes. Acks are manual.
func (c *Client) Consume(ctx context.Context, handler Handler) error {
	msgs, err := c.channel.Consume(
		c.queue, // queue
		"",      // consumer
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.Info("consuming ledger events", zap.String("queue", c.queue))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("ledger event channel closed")
			}
			status := handleDelivery(ctx, d.Body, d, handler, c.logger)
			c.metrics.IncrEvent("consume", status)
		}
	}
}

// acknowledger is the part of amqp091.Delivery the consumer needs.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// handleDelivery decodes one message and settles it. Malformed messages
// are dropped; handler failures are requeued.
func handleDelivery(ctx context.Context, body []byte, ack acknowledger, handler Handler, logger *zap.Logger) string {
	event, err := Decode(body)
	if err != nil {
		logger.Warn("dropping malformed ledger event", zap.Error(err))
		_ = ack.Nack(false, false)
		return "malformed"
	}

	if err := handler(ctx, event); err != nil {
		logger.Error("ledger event handler failed",
			zap.String("username", event.Username),
			zap.String("kind", string(event.Kind)),
			zap.Error(err),
		)
		_ = ack.Nack(false, true)
		return "requeued"
	}

	_ = ack.Ack(false)
	return "ok"
}

// Close closes the channel and the connection.
func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// NopPublisher discards events. Used when AMQP is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.LedgerEvent) error { return nil }
func (NopPublisher) Close() error                                      { return nil }
