package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/talkspace/payment-gateway/internal/core"
	"github.com/talkspace/payment-gateway/internal/port/output"
	"go.uber.org/zap"
)

const (
	ExchangeName = "bookings"
	QueueName    = "booking_outcomes"

	RoutingKeyConfirmed = "booking.confirmed"
	RoutingKeyFailed    = "payment.failed"

	PrefetchCount = 1 // Process one message at a time per worker
)

// BookingOutcomeMessage announces a payment outcome for a booking. BookingRef
// is the consumer-side dedup key, which keeps the side-effect idempotent
// under webhook reprocessing.
type BookingOutcomeMessage struct {
	BookingRef string             `json:"booking_ref"`
	Status     core.PaymentStatus `json:"status"`
	Timestamp  time.Time          `json:"timestamp"`
}

// RabbitMQClient is a secondary adapter that implements the BookingNotifier
// output port
type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *zap.Logger
}

// NewRabbitMQClient creates a new RabbitMQ client (returns interface for ports)
func NewRabbitMQClient(amqpURL string, logger *zap.Logger) (output.BookingNotifier, error) {
	return NewRabbitMQClientConcrete(amqpURL, logger)
}

// NewRabbitMQClientConcrete creates a new RabbitMQ client (returns concrete type for workers)
func NewRabbitMQClientConcrete(amqpURL string, logger *zap.Logger) (*RabbitMQClient, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// Declare exchange
	err = channel.ExchangeDeclare(
		ExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	// Declare queue
	_, err = channel.QueueDeclare(
		QueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	// Bind queue to exchange for both outcome routing keys
	for _, key := range []string{RoutingKeyConfirmed, RoutingKeyFailed} {
		if err := channel.QueueBind(QueueName, key, ExchangeName, false, nil); err != nil {
			channel.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to bind queue: %w", err)
		}
	}

	return &RabbitMQClient{
		conn:    conn,
		channel: channel,
		logger:  logger,
	}, nil
}

// PublishOutcome publishes a booking outcome message
func (c *RabbitMQClient) PublishOutcome(ctx context.Context, bookingRef string, status core.PaymentStatus) error {
	message := BookingOutcomeMessage{
		BookingRef: bookingRef,
		Status:     status,
		Timestamp:  time.Now(),
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	routingKey := RoutingKeyConfirmed
	if status == core.PaymentStatusFailed {
		routingKey = RoutingKeyFailed
	}

	err = c.channel.PublishWithContext(
		ctx,
		ExchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent, // Make message persistent
			MessageId:    bookingRef,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.logger.Info("published booking outcome",
		zap.String("booking_ref", bookingRef),
		zap.String("routing_key", routingKey))
	return nil
}

// ConsumeOutcomes starts consuming booking outcome messages
func (c *RabbitMQClient) ConsumeOutcomes(handler func(BookingOutcomeMessage) error) error {
	// Set QoS to process one message at a time
	err := c.channel.Qos(
		PrefetchCount,
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := c.channel.Consume(
		QueueName,
		"",    // consumer tag
		false, // auto-ack (we'll manually ack after processing)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("started consuming booking outcomes")

	go func() {
		for msg := range msgs {
			var outcome BookingOutcomeMessage
			if err := json.Unmarshal(msg.Body, &outcome); err != nil {
				c.logger.Error("failed to unmarshal message", zap.Error(err))
				msg.Nack(false, false) // Poison message, do not requeue
				continue
			}

			if err := handler(outcome); err != nil {
				c.logger.Error("failed to handle booking outcome",
					zap.String("booking_ref", outcome.BookingRef), zap.Error(err))
				// Terminal errors are acked to remove the message from the
				// queue; transient ones are requeued for retry.
				if isTerminalError(err) {
					msg.Ack(false)
				} else {
					msg.Nack(false, true)
				}
				continue
			}

			msg.Ack(false)
			c.logger.Info("handled booking outcome",
				zap.String("booking_ref", outcome.BookingRef),
				zap.String("status", string(outcome.Status)))
		}
	}()

	return nil
}

// Close closes the RabbitMQ connection
func (c *RabbitMQClient) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// isTerminalError checks if an error cannot be resolved by redelivery
func isTerminalError(err error) bool {
	return errors.Is(err, core.ErrRecordNotFound) || errors.Is(err, core.ErrStatusConflict)
}
