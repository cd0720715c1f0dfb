// Package service publishes domain events to RabbitMQ.  Errors are logged
// and returned so callers can ignore failures without interrupting the
// request flow.
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/venue-occupancy-map/internal/queue"
)

// EventPublisher announces area changes.
type EventPublisher interface {
	PublishAreaChanged(ctx context.Context, ev queue.AreaChangedEvent) error
}

// AMQPPublisher dials the broker per publish.  Admin writes are rare, so a
// long-lived channel is not worth its reconnect handling.
type AMQPPublisher struct {
	url   string
	queue string
	log   *zap.Logger
}

// NewAMQPPublisher returns a publisher sending to queue on the broker at url.
func NewAMQPPublisher(url, queue string, log *zap.Logger) *AMQPPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &AMQPPublisher{url: url, queue: queue, log: log.Named("publisher")}
}

// PublishAreaChanged publishes ev as a persistent JSON message.  Missing
// EventID and OccurredAt are filled in.
func (p *AMQPPublisher) PublishAreaChanged(ctx context.Context, ev queue.AreaChangedEvent) error {
	ev = Stamp(ev)
	body, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("marshal event failed", zap.Error(err))
		return err
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn("dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// durable so events survive broker restarts
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		p.log.Warn("queue declare failed", zap.Error(err))
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Type:         ev.Kind,
		Timestamp:    ev.OccurredAt,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.log.Warn("publish failed", zap.Error(err), zap.String("event_id", ev.EventID))
		return err
	}
	p.log.Debug("published", zap.String("kind", ev.Kind), zap.Uint64("area_id", ev.AreaID))
	return nil
}

// Stamp fills in a random EventID and the current time when missing.
func Stamp(ev queue.AreaChangedEvent) queue.AreaChangedEvent {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	return ev
}

// Nop discards events.  Used when the broker is disabled.
type Nop struct{}

func (Nop) PublishAreaChanged(context.Context, queue.AreaChangedEvent) error { return nil }
