package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/placekeeper/internal/core/domain"
	"github.com/samirrijal/placekeeper/internal/core/ports"
	"github.com/samirrijal/placekeeper/internal/pkg/telemetry"
)

// Maintenance step names, as recorded in the cleanup report.
const (
	StepDedup       = "dedup"
	StepAssetPurge  = "asset_retention"
	StepReindex     = "reindex"
	StepReport      = "report"
	defaultDelBatch = 500
)

// MaintenanceOptions configures the maintenance sweep.
type MaintenanceOptions struct {
	AssetRetention  time.Duration
	DeleteBatchSize int
}

// MaintenanceService runs the periodic store sweep.
type MaintenanceService struct {
	places  ports.PlaceRepository
	assets  ports.AssetStore
	reports ports.ReportWriter
	opts    MaintenanceOptions
	now     func() time.Time
}

// NewMaintenanceService creates a new MaintenanceService.
func NewMaintenanceService(places ports.PlaceRepository, assets ports.AssetStore, reports ports.ReportWriter, opts MaintenanceOptions) *MaintenanceService {
	if opts.DeleteBatchSize <= 0 {
		opts.DeleteBatchSize = defaultDelBatch
	}
	return &MaintenanceService{places: places, assets: assets, reports: reports, opts: opts, now: time.Now}
}

// survivor is the record kept for an identity group.
type survivor struct {
	id        string
	createdAt time.Time
}

func (s survivor) before(pi domain.PlaceIdentity) bool {
	if s.createdAt.Equal(pi.CreatedAt) {
		return s.id < pi.ID
	}
	return s.createdAt.Before(pi.CreatedAt)
}

// Dedup keeps the earliest record (created_at, then id) of every identity group
// and deletes the rest. It returns the number of deleted records.
func (s *MaintenanceService) Dedup(ctx context.Context) (int, error) {
	seen := make(map[domain.Identity]survivor)
	var doomed []string

	err := s.places.StreamIdentities(ctx, func(pi domain.PlaceIdentity) error {
		keep, ok := seen[pi.Identity]
		switch {
		case !ok:
			seen[pi.Identity] = survivor{id: pi.ID, createdAt: pi.CreatedAt}
		case keep.before(pi):
			doomed = append(doomed, pi.ID)
		default:
			doomed = append(doomed, keep.id)
			seen[pi.Identity] = survivor{id: pi.ID, createdAt: pi.CreatedAt}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("stream identities: %w", err)
	}

	removed := 0
	for start := 0; start < len(doomed); start += s.opts.DeleteBatchSize {
		end := min(start+s.opts.DeleteBatchSize, len(doomed))
		n, err := s.places.DeleteByIDs(ctx, doomed[start:end])
		removed += n
		if err != nil {
			return removed, fmt.Errorf("delete duplicates: %w", err)
		}
	}
	return removed, nil
}

// PurgeAssets removes asset files older than the retention window, whether or
// not a place still references them.
func (s *MaintenanceService) PurgeAssets(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.opts.AssetRetention)
	n, err := s.assets.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return n, fmt.Errorf("purge assets: %w", err)
	}
	return n, nil
}

// RebuildIndex rebuilds the spatial index.
func (s *MaintenanceService) RebuildIndex(ctx context.Context) error {
	if err := s.places.RebuildSpatialIndex(ctx); err != nil {
		return fmt.Errorf("rebuild spatial index: %w", err)
	}
	return nil
}

// WriteReport computes store aggregates and persists them with the step outcomes.
func (s *MaintenanceService) WriteReport(ctx context.Context, report *domain.CleanupReport) (string, error) {
	stats, err := s.places.Stats(ctx)
	if err != nil {
		return "", fmt.Errorf("compute stats: %w", err)
	}
	report.TotalPlaces = stats.Total
	report.WithImages = stats.WithImages
	report.ImagePercentage = math.Round(stats.ImagePercentage()*100) / 100
	report.ByCategory = stats.ByCategory
	report.BySource = stats.BySource

	path, err := s.reports.WriteReport(ctx, report)
	if err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// Run executes every step in order. A failing step is logged and recorded;
// the following steps still run. The returned error joins all step errors.
func (s *MaintenanceService) Run(ctx context.Context) (*domain.CleanupReport, error) {
	report := &domain.CleanupReport{GeneratedAt: s.now().UTC()}
	var errs []error

	record := func(name string, affected int, err error) {
		res := domain.StepResult{Name: name, OK: err == nil, Affected: affected}
		if err != nil {
			res.Error = err.Error()
			errs = append(errs, err)
			slog.Error("maintenance step failed", "step", name, "error", err)
		} else {
			slog.Info("maintenance step done", "step", name, "affected", affected)
		}
		report.Steps = append(report.Steps, res)
	}

	removed, err := traced(ctx, StepDedup, s.Dedup)
	report.DuplicatesRemoved = removed
	record(StepDedup, removed, err)

	purged, err := traced(ctx, StepAssetPurge, s.PurgeAssets)
	report.AssetsPurged = purged
	record(StepAssetPurge, purged, err)

	_, err = traced(ctx, StepReindex, func(ctx context.Context) (int, error) {
		return 0, s.RebuildIndex(ctx)
	})
	record(StepReindex, 0, err)

	var path string
	_, err = traced(ctx, StepReport, func(ctx context.Context) (int, error) {
		var werr error
		path, werr = s.WriteReport(ctx, report)
		return 0, werr
	})
	record(StepReport, 0, err)
	if err == nil {
		slog.Info("cleanup report written", "path", path)
	}

	return report, errors.Join(errs...)
}

// traced runs one step inside its own span.
func traced(ctx context.Context, step string, fn func(context.Context) (int, error)) (int, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanMaintenanceOp,
		trace.WithAttributes(attribute.String(telemetry.AttrStep, step)))
	defer span.End()

	n, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return n, err
}
