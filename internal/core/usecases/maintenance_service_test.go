package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/placekeeper/internal/core/domain"
	"github.com/samirrijal/placekeeper/internal/core/usecases"
)

func TestMaintenanceService_DedupKeepsEarliestPerGroup(t *testing.T) {
	var seed []domain.Place
	groupSizes := []int{3, 2, 4}
	for g, n := range groupSizes {
		for i := 0; i < n; i++ {
			p := cafeX()
			p.Name = fmt.Sprintf("group-%d", g)
			seed = append(seed, p)
		}
	}
	single := cafeX()
	single.Name = "unique"
	seed = append(seed, single)

	repo := newMemPlaceRepo(seed...)
	before, _ := repo.Count(context.Background())

	// Survivors are the first inserted record of each group.
	want := map[string]bool{}
	seen := map[string]bool{}
	for _, p := range repo.places {
		if !seen[p.Name] {
			seen[p.Name] = true
			want[p.ID] = true
		}
	}

	svc := usecases.NewMaintenanceService(repo, &mockAssetStore{}, &mockReportWriter{}, usecases.MaintenanceOptions{DeleteBatchSize: 2})
	removed, err := svc.Dedup(context.Background())
	require.NoError(t, err)

	assert.Equal(t, (3-1)+(2-1)+(4-1), removed)
	after, _ := repo.Count(context.Background())
	assert.Equal(t, before-removed, after)
	for _, id := range repo.ids() {
		assert.True(t, want[id], "unexpected survivor %s", id)
	}
	assert.Len(t, repo.deleteBatches, 3, "deletes should be batched")
}

func TestMaintenanceService_DedupBreaksTiesByID(t *testing.T) {
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	b := cafeX()
	b.ID, b.CreatedAt = "b", at
	a := cafeX()
	a.ID, a.CreatedAt = "a", at
	repo := newMemPlaceRepo(b, a)

	svc := usecases.NewMaintenanceService(repo, &mockAssetStore{}, &mockReportWriter{}, usecases.MaintenanceOptions{})
	removed, err := svc.Dedup(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"a"}, repo.ids())
}

func TestMaintenanceService_ScenarioA(t *testing.T) {
	repo := newMemPlaceRepo(cafeX(), cafeX())
	gate := usecases.NewIngestService(repo, nil, nil)

	require.Equal(t, domain.IngestSkipped, gate.Ingest(context.Background(), draftOf(cafeX())))
	n, _ := repo.Count(context.Background())
	require.Equal(t, 2, n)

	svc := usecases.NewMaintenanceService(repo, &mockAssetStore{}, &mockReportWriter{}, usecases.MaintenanceOptions{})
	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	n, _ = repo.Count(context.Background())
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, report.DuplicatesRemoved)
	assert.Equal(t, 1, report.TotalPlaces)
}

func TestMaintenanceService_PurgeUsesRetentionWindow(t *testing.T) {
	var cutoff time.Time
	store := &mockAssetStore{purgeFn: func(ctx context.Context, c time.Time) (int, error) {
		cutoff = c
		return 3, nil
	}}
	svc := usecases.NewMaintenanceService(newMemPlaceRepo(), store, &mockReportWriter{}, usecases.MaintenanceOptions{
		AssetRetention: 30 * 24 * time.Hour,
	})

	start := time.Now()
	n, err := svc.PurgeAssets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.WithinDuration(t, start.Add(-30*24*time.Hour), cutoff, time.Minute)
}

func TestMaintenanceService_RunContinuesAfterStepFailure(t *testing.T) {
	withImage := cafeX()
	withImage.OfficialImages = []string{"places/a_1.jpg"}
	bar := cafeX()
	bar.Name, bar.Category = "Bar Y", "bar"
	repo := newMemPlaceRepo(withImage, bar, cafeX(), cafeX())
	repo.reindexErr = errors.New("lock timeout")

	store := &mockAssetStore{purgeFn: func(ctx context.Context, c time.Time) (int, error) {
		return 0, errors.New("permission denied")
	}}
	reports := &mockReportWriter{}
	svc := usecases.NewMaintenanceService(repo, store, reports, usecases.MaintenanceOptions{AssetRetention: time.Hour})

	report, err := svc.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, reports.last, "report must be written even when earlier steps fail")

	assert.Equal(t, 1, repo.reindexCalls)
	assert.Equal(t, 2, report.DuplicatesRemoved)
	assert.Equal(t, 2, report.TotalPlaces)
	assert.Equal(t, 50.0, report.ImagePercentage)
	assert.Equal(t, map[string]int{"cafe": 1, "bar": 1}, report.ByCategory)
	assert.Equal(t, map[string]int{"google_places": 2}, report.BySource)

	steps := map[string]domain.StepResult{}
	for _, s := range report.Steps {
		steps[s.Name] = s
	}
	assert.True(t, steps[usecases.StepDedup].OK)
	assert.False(t, steps[usecases.StepAssetPurge].OK)
	assert.False(t, steps[usecases.StepReindex].OK)
	assert.True(t, steps[usecases.StepReport].OK)
	assert.Contains(t, steps[usecases.StepReindex].Error, "lock timeout")
}
