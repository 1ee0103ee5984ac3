// Package service publishes auth events to RabbitMQ. Publish failures are
// logged and swallowed so the broker being down never fails a request.
package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/dkoval/authgate/internal/queue"
)

// Publisher sends AuthEvents to the durable auth events queue. It dials
// per publish, which keeps it robust against broker restarts at the cost
// of a connection per event; auth events are low-volume enough for that.
type Publisher struct {
	url string
	log zerolog.Logger
}

// NewPublisher constructs a Publisher for the given broker URL.
func NewPublisher(url string, log zerolog.Logger) *Publisher {
	return &Publisher{url: url, log: log}
}

// Publish delivers the event, stamping OccurredAt if unset. Errors are
// logged, never returned; callers treat publishing as fire-and-forget.
func (p *Publisher) Publish(ctx context.Context, ev queue.AuthEvent) {
	if ev.OccurredAt == "" {
		ev.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	}
	if err := p.publish(ctx, ev); err != nil {
		p.log.Warn().Err(err).Str("event", ev.Event).Msg("event publish failed")
	}
}

func (p *Publisher) publish(ctx context.Context, ev queue.AuthEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so events survive broker restarts; declare is idempotent.
	if _, err := ch.QueueDeclare(queue.AuthEventsQueue, true, false, false, false, nil); err != nil {
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(ctx,
		"",                    // default exchange
		queue.AuthEventsQueue, // routing key = queue name
		false,                 // mandatory
		false,                 // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}
