package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/venue-occupancy-map/internal/model"
)

// SnapshotRecorder stores a visitor reading.
type SnapshotRecorder interface {
	Record(ctx context.Context, areaID uint64, visitors int, at time.Time) (*model.VisitorSnapshot, error)
}

// Refresher rebuilds the dashboard snapshot.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// VisitorConsumer reads VisitorCountEvents from a durable queue, stores
// them and refreshes the board once the queue has been drained.
type VisitorConsumer struct {
	url     string
	queue   string
	rec     SnapshotRecorder
	board   Refresher
	log     *zap.Logger
	timeout time.Duration
}

// NewVisitorConsumer wires a consumer for queue on the broker at url.
func NewVisitorConsumer(url, queue string, rec SnapshotRecorder, board Refresher, log *zap.Logger) *VisitorConsumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &VisitorConsumer{
		url:     url,
		queue:   queue,
		rec:     rec,
		board:   board,
		log:     log.Named("visitor-consumer").With(zap.String("queue", queue)),
		timeout: 5 * time.Second,
	}
}

// Run connects to the broker and consumes until ctx is cancelled.  Lost
// connections are re-dialled with exponential backoff capped at 30s.
func (c *VisitorConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *VisitorConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.log.Info("consuming")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleMessage(ctx, d.Body); err != nil {
				c.log.Warn("message rejected", zap.Error(err), zap.String("message_id", d.MessageId))
				// no requeue, a bad reading would loop forever
				_ = d.Nack(false, false)
			} else {
				_ = d.Ack(false)
			}
			if len(msgs) == 0 {
				c.refresh(ctx)
			}
		}
	}
}

// handleMessage decodes and stores one reading.
func (c *VisitorConsumer) handleMessage(ctx context.Context, body []byte) error {
	var ev VisitorCountEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if _, err := c.rec.Record(ctx, ev.AreaID, ev.Visitors, ev.ObservedAt); err != nil {
		return fmt.Errorf("record area %d: %w", ev.AreaID, err)
	}
	return nil
}

func (c *VisitorConsumer) refresh(ctx context.Context) {
	if c.board == nil {
		return
	}
	if err := c.board.Refresh(ctx); err != nil {
		c.log.Warn("board refresh after ingest failed", zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
