package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/placekeeper/internal/adapters/postgres"
	"github.com/samirrijal/placekeeper/internal/adapters/valkey"
	"github.com/samirrijal/placekeeper/internal/core/domain"
	"github.com/samirrijal/placekeeper/internal/scheduler"
)

// JobRunner is the scheduler surface exposed over HTTP.
type JobRunner interface {
	Trigger(name, trigger string) error
	Jobs() []scheduler.JobInfo
	LastRun(name string) (domain.JobRun, bool)
}

// StatsReader computes store-wide aggregates.
type StatsReader interface {
	Stats(ctx context.Context) (domain.PlaceStats, error)
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Jobs    JobRunner
	Places  StatsReader
	DB      *postgres.DB
	NATS    *nats.Conn
	Cache   *valkey.Cache
	Version string
	// OpenAPIPath is served at /docs/openapi.yaml.
	OpenAPIPath string
}
