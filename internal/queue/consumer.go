package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-api/internal/metrics"
)

// Sender delivers one mail.  Errors wrapped with retry.RetryableError are
// retried; anything else drops the message.
type Sender interface {
	Send(ctx context.Context, msg MailMessage) error
}

// Consumer drains MailQueue and hands each message to a Sender.
type Consumer struct {
	url    string
	sender Sender
	log    *zap.Logger

	// backoffs are overridable in tests
	reconnect func() retry.Backoff
	delivery  func() retry.Backoff
}

func NewConsumer(url string, sender Sender, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{
		url:    url,
		sender: sender,
		log:    log.Named("mail-consumer"),
		reconnect: func() retry.Backoff {
			return retry.WithCappedDuration(30*time.Second, retry.NewExponential(time.Second))
		},
		delivery: func() retry.Backoff {
			return retry.WithMaxRetries(4, retry.NewExponential(500*time.Millisecond))
		},
	}
}

var errConnectionLost = errors.New("connection lost")

// Run connects to the broker and consumes until ctx is cancelled.  Dialling
// is retried with capped exponential backoff; a connection that drops after
// consuming started is re-dialled with a fresh backoff.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		err := retry.Do(ctx, c.reconnect(), func(ctx context.Context) error {
			conn, err := amqp.Dial(c.url)
			if err != nil {
				c.log.Warn("failed to dial broker, retrying", zap.Error(err))
				return retry.RetryableError(err)
			}
			defer func() { _ = conn.Close() }()

			if err := c.consumeLoop(ctx, conn); err != nil && ctx.Err() == nil {
				return fmt.Errorf("%w: %v", errConnectionLost, err)
			}
			return nil
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(err, errConnectionLost) {
			return err
		}
		c.log.Warn("consume loop ended, reconnecting", zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		c.log.Warn("set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(MailQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(MailQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.log.Info("consuming", zap.String("queue", MailQueue))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(ctx, d.Body); err != nil {
				c.log.Error("mail dropped", zap.String("message_id", d.MessageId), zap.Error(err))
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// handle decodes one delivery and sends it, retrying transient failures.
func (c *Consumer) handle(ctx context.Context, body []byte) error {
	var msg MailMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if msg.To == "" {
		return errors.New("mail without recipient")
	}

	err := retry.Do(ctx, c.delivery(), func(ctx context.Context) error {
		return c.sender.Send(ctx, msg)
	})
	metrics.RecordDelivery(msg.Kind, err)
	if err != nil {
		return fmt.Errorf("deliver %s to %s: %w", msg.Kind, msg.To, err)
	}
	c.log.Info("mail delivered", zap.String("id", msg.ID), zap.String("kind", msg.Kind))
	return nil
}
