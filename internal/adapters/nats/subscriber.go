package natsadapter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := ensureStreams(js); err != nil {
		conn.Close()
		return nil, err
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeJobTriggers delivers manual run requests to handler. Triggers are
// never redelivered: a rejected trigger (unknown job, job already running) is
// terminated and logged.
func (s *Subscriber) SubscribeJobTriggers(ctx context.Context, handler func(ctx context.Context, job string) error) error {
	sub, err := s.js.Subscribe(subjectTriggerPrefix+">", func(msg *nats.Msg) {
		job, ok := JobFromTriggerSubject(msg.Subject)
		if !ok {
			slog.Warn("malformed trigger subject", "subject", msg.Subject)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, job); err != nil {
			slog.Warn("job trigger rejected", "job", job, "error", err)
			_ = msg.Term()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("job-triggers"),
		nats.ManualAck(),
		nats.MaxDeliver(1),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
