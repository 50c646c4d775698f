package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/placekeeper/internal/core/domain"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
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

	return &Publisher{conn: conn, js: js}, nil
}

func ensureStreams(js nats.JetStreamContext) error {
	streams := []nats.StreamConfig{
		{
			Name:      "PLACEKEEPER_PLACES",
			Subjects:  []string{"placekeeper.places.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "PLACEKEEPER_JOBS",
			Subjects:  []string{"placekeeper.jobs.>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    7 * 24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "PLACEKEEPER_TRIGGERS",
			Subjects:  []string{"placekeeper.triggers.>"},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}
	return nil
}

// PublishPlaceCreated announces a place accepted by the ingest gate.
func (p *Publisher) PublishPlaceCreated(ctx context.Context, place *domain.Place) error {
	data, err := json.Marshal(place)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectPlaceCreated, data, nats.Context(ctx))
	return err
}

// PublishJobCompleted announces the end of a job run.
func (p *Publisher) PublishJobCompleted(ctx context.Context, run *domain.JobRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(JobCompletedSubject(run.Job), data, nats.Context(ctx))
	return err
}

// RequestRun publishes a manual trigger for job.
func (p *Publisher) RequestRun(ctx context.Context, job string) error {
	_, err := p.js.Publish(TriggerSubject(job), nil, nats.Context(ctx))
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// Connect creates a plain NATS connection with reconnect enabled.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("placekeeper"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
