// Package rabbitmq consumes payout results from the bank gateway.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/metalaloud/settlement/internal/config"
	"github.com/metalaloud/settlement/internal/ledger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrDrop marks a message that can never succeed. It is rejected without
// requeue.
var ErrDrop = errors.New("drop message")

type Handler func(ctx context.Context, body []byte) error

type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	config  config.RabbitMQConfig
}

func NewConsumer(cfg config.RabbitMQConfig) (*Consumer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.Qos(cfg.Prefetch, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	return &Consumer{
		conn:    conn,
		channel: channel,
		config:  cfg,
	}, nil
}

func (c *Consumer) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}

// Consume runs h for every delivery on the payout queue until ctx is done or
// the channel closes.
func (c *Consumer) Consume(ctx context.Context, h Handler) error {
	queue := c.config.PayoutQueue
	_, err := c.channel.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	msgs, err := c.channel.Consume(
		queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	log.Printf("rabbitmq: consuming %s", queue)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("rabbitmq: delivery channel closed")
			}
			settle(msg, h(ctx, msg.Body))
		}
	}
}

// Acknowledger is the part of amqp.Delivery that settle needs.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func settle(msg Acknowledger, err error) {
	switch {
	case err == nil:
		_ = msg.Ack(false)
	case errors.Is(err, ErrDrop):
		log.Printf("rabbitmq: dropping message: %v", err)
		_ = msg.Nack(false, false)
	default:
		log.Printf("rabbitmq: requeue message: %v", err)
		_ = msg.Nack(false, true)
	}
}

// PayoutResult is the gateway's verdict on one withdrawal.
type PayoutResult struct {
	TransactionID string          `json:"transaction_id"`
	Status        ledger.TxStatus `json:"status"`
}

// DecodePayoutResult parses a payout message. Malformed messages wrap ErrDrop.
func DecodePayoutResult(body []byte) (PayoutResult, error) {
	var r PayoutResult
	if err := json.Unmarshal(body, &r); err != nil {
		return r, fmt.Errorf("%w: %v", ErrDrop, err)
	}
	if r.TransactionID == "" {
		return r, fmt.Errorf("%w: missing transaction_id", ErrDrop)
	}
	if r.Status != ledger.TxCompleted && r.Status != ledger.TxFailed {
		return r, fmt.Errorf("%w: bad status %q", ErrDrop, r.Status)
	}
	return r, nil
}
