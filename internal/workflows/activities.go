package workflows

import (
	"context"

	"github.com/samirrijal/placekeeper/internal/core/domain"
	"github.com/samirrijal/placekeeper/internal/core/usecases"
)

// ReportResult is returned by the report activity.
type ReportResult struct {
	Path   string
	Report domain.CleanupReport
}

// MaintenanceActivities holds the activity implementations for the maintenance workflow.
type MaintenanceActivities struct {
	Maintenance *usecases.MaintenanceService
}

// DedupPlaces deletes all but the earliest record of every identity group.
func (a *MaintenanceActivities) DedupPlaces(ctx context.Context) (int, error) {
	return a.Maintenance.Dedup(ctx)
}

// PurgeAssets removes asset files past the retention window.
func (a *MaintenanceActivities) PurgeAssets(ctx context.Context) (int, error) {
	return a.Maintenance.PurgeAssets(ctx)
}

// RebuildSpatialIndex rebuilds the places location index.
func (a *MaintenanceActivities) RebuildSpatialIndex(ctx context.Context) error {
	return a.Maintenance.RebuildIndex(ctx)
}

// WriteCleanupReport fills in store aggregates and writes the report artifact.
func (a *MaintenanceActivities) WriteCleanupReport(ctx context.Context, report domain.CleanupReport) (ReportResult, error) {
	path, err := a.Maintenance.WriteReport(ctx, &report)
	if err != nil {
		return ReportResult{}, err
	}
	return ReportResult{Path: path, Report: report}, nil
}
