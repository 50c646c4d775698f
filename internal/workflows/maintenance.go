package workflows

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/placekeeper/internal/core/domain"
	"github.com/samirrijal/placekeeper/internal/core/usecases"
)

// MaintenanceWorkflowName is the registered workflow type.
const MaintenanceWorkflowName = "MaintenanceWorkflow"

// MaintenanceInput is the input for the maintenance workflow.
type MaintenanceInput struct {
	RequestedBy string
}

// MaintenanceWorkflow runs the sweep steps as activities. A failed step is
// recorded in the report and the next step still runs; the report step always runs.
func MaintenanceWorkflow(ctx workflow.Context, input MaintenanceInput) (domain.CleanupReport, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting maintenance workflow", "requestedBy", input.RequestedBy)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: time.Hour,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 10 * time.Second,
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	report := domain.CleanupReport{GeneratedAt: workflow.Now(ctx).UTC()}
	record := func(name string, affected int, err error) {
		res := domain.StepResult{Name: name, OK: err == nil, Affected: affected}
		if err != nil {
			res.Error = err.Error()
			logger.Warn("maintenance step failed", "step", name, "error", err)
		}
		report.Steps = append(report.Steps, res)
	}

	// Step 1: remove duplicate identities
	var removed int
	err := workflow.ExecuteActivity(ctx, "DedupPlaces").Get(ctx, &removed)
	report.DuplicatesRemoved = removed
	record(usecases.StepDedup, removed, err)

	// Step 2: asset retention
	var purged int
	err = workflow.ExecuteActivity(ctx, "PurgeAssets").Get(ctx, &purged)
	report.AssetsPurged = purged
	record(usecases.StepAssetPurge, purged, err)

	// Step 3: spatial index
	err = workflow.ExecuteActivity(ctx, "RebuildSpatialIndex").Get(ctx, nil)
	record(usecases.StepReindex, 0, err)

	// Step 4: report
	var result ReportResult
	err = workflow.ExecuteActivity(ctx, "WriteCleanupReport", report).Get(ctx, &result)
	if err == nil {
		steps := report.Steps
		report = result.Report
		report.Steps = steps
	}
	record(usecases.StepReport, 0, err)

	logger.Info("Maintenance workflow finished", "path", result.Path, "duplicatesRemoved", report.DuplicatesRemoved)
	return report, nil
}

// StartMaintenance starts a maintenance workflow run on the given task queue.
func StartMaintenance(ctx context.Context, c client.Client, taskQueue, requestedBy string) (client.WorkflowRun, error) {
	opts := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("maintenance-%d", time.Now().UnixMilli()),
		TaskQueue: taskQueue,
	}
	run, err := c.ExecuteWorkflow(ctx, opts, MaintenanceWorkflowName, MaintenanceInput{RequestedBy: requestedBy})
	if err != nil {
		return nil, fmt.Errorf("start maintenance workflow: %w", err)
	}
	return run, nil
}
