// Package service holds clients for external systems: the message broker
// receiving activity events and the speech-to-text API.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/wedding-planner/internal/queue"
)

// PublishTimeout bounds a single publish, dial included.
const PublishTimeout = 3 * time.Second

// ActivityPublisher sends activity events to a durable queue on the default
// exchange.  A zero URL turns it into a no-op.  The connection is opened
// lazily and re-dialled after failures.
type ActivityPublisher struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewActivityPublisher(url, queue string) *ActivityPublisher {
	return &ActivityPublisher{url: url, queue: queue}
}

// Enabled reports whether a broker is configured.
func (p *ActivityPublisher) Enabled() bool { return p != nil && p.url != "" }

// Publish sends ev as a persistent JSON message.  Errors are logged and
// returned so callers can ignore them without interrupting a request.
func (p *ActivityPublisher) Publish(ctx context.Context, ev queue.ActivityEvent) error {
	if !p.Enabled() {
		return nil
	}
	body, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, PublishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		slog.Warn("rabbitmq: channel unavailable", "err", err, "event", ev.Type)
		return err
	}
	err = ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		slog.Warn("rabbitmq: publish failed", "err", err, "event", ev.Type)
		p.reset()
		return fmt.Errorf("publish: %w", err)
	}
	slog.Debug("published activity event", "event", ev.Type, "user_id", ev.UserID, "queue", p.queue)
	return nil
}

// channel returns the open channel, dialling when needed.  p.mu is held.
func (p *ActivityPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(PublishTimeout)})
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *ActivityPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Close releases the broker connection.
func (p *ActivityPublisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}
