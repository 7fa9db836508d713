package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ActivityLogName is the file the consumer appends to inside its log dir.
const ActivityLogName = "activity.log"

// Consumer reads activity events from a durable queue and appends one line
// per event to <LogDir>/activity.log.
type Consumer struct {
	URL    string
	Queue  string
	LogDir string

	mu sync.Mutex // serializes writes to the log file
}

func NewConsumer(url, queue, logDir string) *Consumer {
	return &Consumer{URL: url, Queue: queue, LogDir: logDir}
}

// Run connects to the broker and consumes until ctx is cancelled.  Lost
// connections are re-dialled with capped exponential backoff.
func (c *Consumer) Run(ctx context.Context) error {
	if c.URL == "" {
		return errors.New("activity consumer: broker url is empty")
	}
	if err := os.MkdirAll(c.LogDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.LogDir, err)
	}

	attempt := 0
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			wait := backoff(attempt)
			attempt++
			slog.Warn("activity consumer: dial failed", "err", err, "retry_in", wait)
			if !sleep(ctx, wait) {
				return ctx.Err()
			}
			continue
		}
		attempt = 0

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("activity consumer: consume loop ended, reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		slog.Warn("activity consumer: set QoS failed", "err", err)
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	slog.Info("activity consumer: started", "queue", c.Queue, "log", filepath.Join(c.LogDir, ActivityLogName))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleMessage(d.Body); err != nil {
				slog.Error("activity consumer: handle message failed", "err", err)
				_ = d.Nack(false, false) // do not requeue, avoids a tight redelivery loop
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handleMessage(body []byte) error {
	ev, err := ActivityEventFromJSON(body)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(c.LogDir, ActivityLogName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func formatLine(ev ActivityEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | user_id=%s", ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.UserID)
	if ev.ResourceID != "" {
		fmt.Fprintf(&b, " | resource_id=%s", ev.ResourceID)
	}
	if ev.Count != 0 {
		fmt.Fprintf(&b, " | count=%d", ev.Count)
	}
	if ev.Detail != "" {
		fmt.Fprintf(&b, " | detail=%q", ev.Detail)
	}
	b.WriteByte('\n')
	return b.String()
}

// backoff doubles from one second and caps at thirty.
func backoff(attempt int) time.Duration {
	d := time.Second
	for i := 0; i < attempt && d < 30*time.Second; i++ {
		d *= 2
	}
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
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
