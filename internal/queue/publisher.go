package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher sends MailMessages to MailQueue.  It dials per publish so a
// broker restart never leaves the API holding a dead connection; mail
// volume is low enough that the extra handshake does not matter.
type Publisher struct {
	url string
	log *zap.Logger
}

func NewPublisher(url string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{url: url, log: log.Named("mail-publisher")}
}

// newPublishing fills in ID and CreatedAt when missing and encodes msg as a
// persistent JSON delivery.
func newPublishing(msg *MailMessage, now time.Time) (amqp.Publishing, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now.UTC()
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal mail: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		MessageId:    msg.ID,
		Type:         msg.Kind,
		Timestamp:    msg.CreatedAt,
		Body:         body,
	}, nil
}

// Publish declares MailQueue (idempotent) and publishes msg to it through the
// default exchange.
func (p *Publisher) Publish(ctx context.Context, msg MailMessage) error {
	pub, err := newPublishing(&msg, time.Now())
	if err != nil {
		return err
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn("dial failed", zap.Error(err))
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		MailQueue, // name
		true,      // durable
		false,     // autoDelete
		false,     // exclusive
		false,     // noWait
		nil,       // args
	); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	if err := ch.PublishWithContext(ctx,
		"",        // default exchange
		MailQueue, // routing key = queue name
		false,     // mandatory
		false,     // immediate
		pub,
	); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	p.log.Debug("mail queued", zap.String("id", msg.ID), zap.String("kind", msg.Kind))
	return nil
}
