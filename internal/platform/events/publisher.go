package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/iftar/pkg/config"
)

// PaymentCompleted is published once a participant's payment is confirmed.
type PaymentCompleted struct {
	ParticipantID string    `json:"participant_id"`
	PaymentID     string    `json:"payment_id"`
	Source        string    `json:"source"` // gateway, manual or admin
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	QRCode        string    `json:"qr_code,omitempty"`
	CompletedAt   time.Time `json:"completed_at"`
}

// Publisher sends domain events to RabbitMQ. A Publisher without URL drops events.
type Publisher struct {
	url   string
	queue string
	log   *zap.SugaredLogger
}

func NewPublisher(cfg *cfgpkg.Config, log *zap.SugaredLogger) *Publisher {
	if cfg.AMQP.URL == "" {
		log.Infow("amqp disabled, domain events are dropped")
	}
	return &Publisher{url: cfg.AMQP.URL, queue: cfg.AMQP.Queue, log: log}
}

func (p *Publisher) Enabled() bool { return p != nil && p.url != "" }

// PublishPaymentCompleted dials, declares the durable queue and publishes a persistent message.
// Volume is a handful of messages per event so a connection per publish is fine.
func (p *Publisher) PublishPaymentCompleted(ctx context.Context, evt PaymentCompleted) error {
	if !p.Enabled() {
		return nil
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp queue declare: %w", err)
	}
	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	p.log.Debugw("event_published", "queue", p.queue, "participant_id", evt.ParticipantID)
	return nil
}

var Module = fx.Options(
	fx.Provide(NewPublisher),
)
