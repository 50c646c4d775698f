package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"
	"go.temporal.io/sdk/client"

	"github.com/samirrijal/placekeeper/internal/adapters/google"
	"github.com/samirrijal/placekeeper/internal/adapters/imaging"
	natsadapter "github.com/samirrijal/placekeeper/internal/adapters/nats"
	"github.com/samirrijal/placekeeper/internal/adapters/nominatim"
	"github.com/samirrijal/placekeeper/internal/adapters/postgres"
	"github.com/samirrijal/placekeeper/internal/adapters/storage"
	"github.com/samirrijal/placekeeper/internal/adapters/valkey"
	"github.com/samirrijal/placekeeper/internal/core/domain"
	"github.com/samirrijal/placekeeper/internal/core/ports"
	"github.com/samirrijal/placekeeper/internal/core/usecases"
	"github.com/samirrijal/placekeeper/internal/geography"
	"github.com/samirrijal/placekeeper/internal/pkg/config"
	"github.com/samirrijal/placekeeper/internal/pkg/telemetry"
	"github.com/samirrijal/placekeeper/internal/scheduler"
	"github.com/samirrijal/placekeeper/internal/workflows"
)

// errMissingAPIKey is returned when a provider-backed job starts without credentials.
var errMissingAPIKey = errors.New("google.api_key is required")

// app holds every long-lived collaborator of a process. It is built once at
// startup and handed to the job functions.
type app struct {
	cfg *config.Config

	db     *postgres.DB
	places *postgres.PlaceRepo

	// Optional collaborators; nil when unavailable.
	cache     *valkey.Cache
	publisher *natsadapter.Publisher
	temporal  client.Client

	closers []func()
}

// newApp connects to the store and the optional services. Only a store
// connection failure is returned as an error.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			a.closers = append(a.closers, shutdown)
		}
	}

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("database: %w", err)
	}
	a.db = db
	a.places = postgres.NewPlaceRepo(db)
	a.closers = append(a.closers, db.Close)

	if cache, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable, running without cache and distributed lock", "error", err)
	} else {
		a.cache = cache
		a.closers = append(a.closers, cache.Close)
	}

	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, events disabled", "error", err)
	} else {
		a.publisher = pub
		a.closers = append(a.closers, pub.Close)
	}

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// events returns the publisher as a port, or nil.
func (a *app) events() ports.EventPublisher {
	if a.publisher == nil {
		return nil
	}
	return a.publisher
}

// cacheService returns the cache as a port, or nil.
func (a *app) cacheService() ports.CacheService {
	if a.cache == nil {
		return nil
	}
	return a.cache
}

func (a *app) provider() (*google.Client, error) {
	if a.cfg.Google.APIKey == "" {
		return nil, errMissingAPIKey
	}
	return google.New(a.cfg.Google), nil
}

func (a *app) assetStore() *storage.AssetStore {
	return storage.NewAssetStore(afero.NewOsFs(), a.cfg.Assets.Root)
}

func (a *app) maintenanceService() *usecases.MaintenanceService {
	mc := a.cfg.Maintenance
	return usecases.NewMaintenanceService(
		a.places,
		a.assetStore(),
		storage.NewReportWriter(afero.NewOsFs(), mc.ReportsDir),
		usecases.MaintenanceOptions{
			AssetRetention:  mc.AssetRetention,
			DeleteBatchSize: mc.DeleteBatchSize,
		},
	)
}

// jobFunc builds the job function for name. Provider-backed jobs fail when
// credentials are missing.
func (a *app) jobFunc(name string) (scheduler.JobFunc, error) {
	switch name {
	case domain.JobDiscovery:
		provider, err := a.provider()
		if err != nil {
			return nil, err
		}
		dc := a.cfg.Discovery
		assets := usecases.NewAssetService(
			provider,
			imaging.NewWatermarker(a.cfg.Assets.WatermarkText, a.cfg.Assets.JPEGQuality),
			a.assetStore(),
		)
		ingest := usecases.NewIngestService(a.places, assets, a.events())
		svc := usecases.NewDiscoveryService(provider, ingest, usecases.DiscoveryOptions{
			Cells:          dc.Cells,
			Categories:     dc.Categories,
			RequestDelay:   dc.RequestDelay,
			RateLimitDelay: dc.RateLimitDelay,
			PageTokenDelay: dc.PageTokenDelay,
			MaxRetries:     dc.MaxRetries,
			MaxPages:       dc.MaxPages,
			Workers:        dc.Workers,
		})
		return func(ctx context.Context) (any, error) { return svc.Run(ctx) }, nil

	case domain.JobEnrichment:
		provider, err := a.provider()
		if err != nil {
			return nil, err
		}
		ec := a.cfg.Enrichment
		svc := usecases.NewEnrichmentService(a.places, provider, usecases.EnrichmentOptions{
			DailyCallBudget:     ec.DailyCallBudget,
			RequestDelay:        ec.RequestDelay,
			RateLimitDelay:      ec.RateLimitDelay,
			MaxRateLimitRetries: ec.MaxRateLimitRetries,
			MatchRadiusM:        ec.MatchRadiusM,
		})
		return func(ctx context.Context) (any, error) { return svc.Run(ctx) }, nil

	case domain.JobGeography:
		gc := a.cfg.Geocoding
		geocoder, err := nominatim.New(gc)
		if err != nil {
			return nil, fmt.Errorf("geocoder: %w", err)
		}
		svc := usecases.NewGeographyService(a.places, geography.Default(), geocoder, a.cacheService(), usecases.GeographyOptions{
			RequestDelay:        gc.RequestDelay,
			RateLimitDelay:      gc.RateLimitDelay,
			MaxRateLimitRetries: gc.MaxRateLimitRetries,
			BatchSize:           gc.BatchSize,
			CacheTTL:            gc.CacheTTL,
		})
		return func(ctx context.Context) (any, error) { return svc.Run(ctx) }, nil

	case domain.JobMaintenance:
		if a.temporal != nil {
			return a.maintenanceWorkflowJob(), nil
		}
		svc := a.maintenanceService()
		return func(ctx context.Context) (any, error) { return svc.Run(ctx) }, nil
	}
	return nil, fmt.Errorf("%s: %w", name, domain.ErrUnknownJob)
}

// maintenanceWorkflowJob runs the sweep as a Temporal workflow and waits for its report.
func (a *app) maintenanceWorkflowJob() scheduler.JobFunc {
	return func(ctx context.Context) (any, error) {
		run, err := workflows.StartMaintenance(ctx, a.temporal, a.cfg.Temporal.TaskQueue, "scheduler")
		if err != nil {
			return nil, err
		}
		slog.Info("maintenance workflow started", "workflowID", run.GetID(), "runID", run.GetRunID())

		var report domain.CleanupReport
		if err := run.Get(ctx, &report); err != nil {
			return nil, fmt.Errorf("maintenance workflow: %w", err)
		}
		return &report, stepErrors(report.Steps)
	}
}

// dialTemporal connects the Temporal client when enabled.
func (a *app) dialTemporal() error {
	if !a.cfg.Temporal.Enabled {
		return nil
	}
	c, err := client.Dial(client.Options{
		HostPort:  a.cfg.Temporal.HostPort,
		Namespace: a.cfg.Temporal.Namespace,
	})
	if err != nil {
		return fmt.Errorf("temporal client: %w", err)
	}
	a.temporal = c
	a.closers = append(a.closers, c.Close)
	return nil
}

// jobLock picks the cross-process run guard: Valkey when configured, otherwise
// a Postgres advisory lock.
func (a *app) jobLock() ports.JobLock {
	switch {
	case a.cache != nil:
		return a.cache
	case a.db != nil:
		return a.db
	}
	return nil
}

// newScheduler builds a scheduler with the run lock and optional event publisher.
func (a *app) newScheduler() *scheduler.Scheduler {
	var opts []scheduler.Option
	if lock := a.jobLock(); lock != nil {
		opts = append(opts, scheduler.WithLock(lock, a.cfg.Schedule.LockTTL))
	}
	if a.publisher != nil {
		opts = append(opts, scheduler.WithEvents(a.publisher))
	}
	return scheduler.New(opts...)
}

// register adds the named jobs to s. schedule controls whether the cron spec
// from configuration is installed or the job is manual-only.
func (a *app) register(s *scheduler.Scheduler, names []string, schedule bool) error {
	specs := a.cfg.Schedule.Specs()
	for _, name := range names {
		fn, err := a.jobFunc(name)
		if err != nil {
			return err
		}
		spec := ""
		if schedule {
			spec = specs[name]
		}
		if err := s.Register(name, spec, fn); err != nil {
			return err
		}
	}
	return nil
}

func stepErrors(steps []domain.StepResult) error {
	var errs []error
	for _, st := range steps {
		if !st.OK {
			errs = append(errs, fmt.Errorf("%s: %s", st.Name, st.Error))
		}
	}
	return errors.Join(errs...)
}
