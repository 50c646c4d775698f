package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/placekeeper/internal/core/domain"
	"github.com/samirrijal/placekeeper/internal/core/usecases"
)

func verifiedPlace(name string, concurrence int, rating float64) domain.Place {
	p := cafeX()
	p.Name = name
	p.Verified = true
	p.Concurrence = concurrence
	p.Rating = rating
	return p
}

// matchingProvider resolves every name to a candidate at the queried point.
func matchingProvider() *mockProvider {
	return &mockProvider{
		findFn: func(ctx context.Context, q domain.FindPlaceQuery) (*domain.FindPlaceCandidate, error) {
			return &domain.FindPlaceCandidate{PlaceID: "gp-" + q.Name, Name: q.Name, Lat: q.Lat, Lon: q.Lon}, nil
		},
		detailsFn: func(ctx context.Context, placeID string) (*domain.PlaceDetails, error) {
			rating := 4.6
			price := 2
			return &domain.PlaceDetails{
				PlaceID:      placeID,
				Rating:       &rating,
				TotalRatings: 120,
				Phone:        "+57 605 555 0101",
				Website:      "https://example.co",
				OpeningHours: []string{"lunes: 8:00-18:00"},
				PriceLevel:   &price,
				Photos:       make([]domain.PhotoDescriptor, 8),
			}, nil
		},
	}
}

func TestEnrichmentService_EnrichesInPriorityOrder(t *testing.T) {
	repo := newMemPlaceRepo(
		verifiedPlace("low", 1, 5),
		verifiedPlace("high", 9, 3),
		verifiedPlace("mid", 5, 4),
	)
	unverified := cafeX()
	unverified.Name = "pending"
	require.NoError(t, repo.Insert(context.Background(), &unverified))

	provider := matchingProvider()
	var order []string
	find := provider.findFn
	provider.findFn = func(ctx context.Context, q domain.FindPlaceQuery) (*domain.FindPlaceCandidate, error) {
		order = append(order, q.Name)
		return find(ctx, q)
	}

	svc := usecases.NewEnrichmentService(repo, provider, usecases.EnrichmentOptions{DailyCallBudget: 100, MatchRadiusM: 150})
	stats, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"high", "mid", "low"}, order)
	assert.Equal(t, 3, stats.Enriched)
	assert.Equal(t, 6, stats.CallsUsed)

	p, _ := repo.GetByID(context.Background(), repo.places[1].ID)
	assert.Equal(t, "gp-high", p.ProviderPlaceID)
	assert.Equal(t, 4.6, p.Rating)
	assert.Equal(t, 120, p.TotalRatings)
	assert.Len(t, p.PhotoDescriptors, domain.MaxPhotoDescriptors)
	assert.NotNil(t, p.LastEnrichedAt)
}

func TestEnrichmentService_BudgetBound(t *testing.T) {
	var seed []domain.Place
	for i := 0; i < 10; i++ {
		seed = append(seed, verifiedPlace(fmt.Sprintf("place-%d", i), 10-i, 4))
	}

	for _, budget := range []int{0, 1, 5, 6, 7, 40} {
		t.Run(fmt.Sprint(budget), func(t *testing.T) {
			repo := newMemPlaceRepo(seed...)
			provider := matchingProvider()
			svc := usecases.NewEnrichmentService(repo, provider, usecases.EnrichmentOptions{DailyCallBudget: budget})

			stats, err := svc.Run(context.Background())
			require.NoError(t, err)

			assert.LessOrEqual(t, provider.calls(), 2*budget)
			assert.LessOrEqual(t, provider.calls(), budget)
			assert.Equal(t, provider.calls(), stats.CallsUsed)
			assert.Equal(t, min(budget/2, 10), stats.Enriched)
			assert.Equal(t, budget < 20, stats.BudgetExhausted)
		})
	}
}

func TestEnrichmentService_RateLimitRetriesSameCandidate(t *testing.T) {
	repo := newMemPlaceRepo(verifiedPlace("a", 2, 4), verifiedPlace("b", 1, 4))
	provider := matchingProvider()
	details := provider.detailsFn
	hits := 0
	provider.detailsFn = func(ctx context.Context, id string) (*domain.PlaceDetails, error) {
		hits++
		if hits <= 2 {
			return nil, quotaErr()
		}
		return details(ctx, id)
	}

	svc := usecases.NewEnrichmentService(repo, provider, usecases.EnrichmentOptions{
		DailyCallBudget: 100, MaxRateLimitRetries: 5,
	})
	stats, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Enriched)
	assert.Equal(t, 2, stats.RateLimited)
	assert.Equal(t, 2, provider.findCalls, "rate limit must not re-resolve or advance")
	assert.Equal(t, 6, stats.CallsUsed)
}

func TestEnrichmentService_RateLimitCapSkipsCandidate(t *testing.T) {
	repo := newMemPlaceRepo(verifiedPlace("stuck", 2, 4), verifiedPlace("next", 1, 4))
	provider := matchingProvider()
	details := provider.detailsFn
	provider.detailsFn = func(ctx context.Context, id string) (*domain.PlaceDetails, error) {
		if id == "gp-stuck" {
			return nil, quotaErr()
		}
		return details(ctx, id)
	}

	svc := usecases.NewEnrichmentService(repo, provider, usecases.EnrichmentOptions{
		DailyCallBudget: 100, MaxRateLimitRetries: 3,
	})
	stats, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Enriched)
	assert.Equal(t, 4, stats.RateLimited)
}

func TestEnrichmentService_RateLimitsSpendBudget(t *testing.T) {
	repo := newMemPlaceRepo(verifiedPlace("a", 1, 4))
	provider := matchingProvider()
	provider.detailsFn = func(ctx context.Context, id string) (*domain.PlaceDetails, error) {
		return nil, quotaErr()
	}

	svc := usecases.NewEnrichmentService(repo, provider, usecases.EnrichmentOptions{
		DailyCallBudget: 4, MaxRateLimitRetries: 100,
	})
	stats, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, provider.calls())
	assert.True(t, stats.BudgetExhausted)
	assert.Equal(t, 0, stats.Enriched)
}

func TestEnrichmentService_NotFoundAndFarMatchesSkip(t *testing.T) {
	repo := newMemPlaceRepo(verifiedPlace("ghost", 3, 4), verifiedPlace("far", 2, 4), verifiedPlace("near", 1, 4))
	provider := matchingProvider()
	find := provider.findFn
	provider.findFn = func(ctx context.Context, q domain.FindPlaceQuery) (*domain.FindPlaceCandidate, error) {
		switch q.Name {
		case "ghost":
			return nil, notFoundErr()
		case "far":
			return &domain.FindPlaceCandidate{PlaceID: "gp-far", Lat: q.Lat + 0.05, Lon: q.Lon}, nil
		}
		return find(ctx, q)
	}

	svc := usecases.NewEnrichmentService(repo, provider, usecases.EnrichmentOptions{DailyCallBudget: 100, MatchRadiusM: 150})
	stats, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.NotFound)
	assert.Equal(t, 1, stats.Enriched)
	assert.Equal(t, 1, provider.detailsCalls)
}

func TestEnrichmentService_KnownProviderIDSkipsResolution(t *testing.T) {
	p := verifiedPlace("known", 1, 4)
	p.ProviderPlaceID = "gp-known"
	repo := newMemPlaceRepo(p)
	provider := matchingProvider()

	svc := usecases.NewEnrichmentService(repo, provider, usecases.EnrichmentOptions{DailyCallBudget: 1})
	stats, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, provider.findCalls)
	assert.Equal(t, 1, stats.Enriched)
}

func TestEnrichmentService_LastEnrichedAtIsMonotonic(t *testing.T) {
	repo := newMemPlaceRepo(verifiedPlace("a", 1, 4))
	provider := matchingProvider()
	svc := usecases.NewEnrichmentService(repo, provider, usecases.EnrichmentOptions{DailyCallBudget: 10})

	_, err := svc.Run(context.Background())
	require.NoError(t, err)
	first := *repo.places[0].LastEnrichedAt

	// Clearing the provider id makes the place a candidate again.
	repo.places[0].ProviderPlaceID = ""
	provider.detailsFn = func(ctx context.Context, id string) (*domain.PlaceDetails, error) {
		return nil, errors.New("upstream exploded")
	}
	stats, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Skipped)
	require.NotNil(t, repo.places[0].LastEnrichedAt)
	assert.False(t, repo.places[0].LastEnrichedAt.Before(first))
}

func TestEnrichmentService_NetworkFailureRetriedOnce(t *testing.T) {
	repo := newMemPlaceRepo(verifiedPlace("a", 1, 4))
	provider := matchingProvider()
	details := provider.detailsFn
	failures := 0
	provider.detailsFn = func(ctx context.Context, id string) (*domain.PlaceDetails, error) {
		if failures == 0 {
			failures++
			return nil, domain.NewProviderError(domain.ProviderNetwork, "reset", nil)
		}
		return details(ctx, id)
	}

	svc := usecases.NewEnrichmentService(repo, provider, usecases.EnrichmentOptions{DailyCallBudget: 10})
	stats, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Enriched)
	assert.Equal(t, 3, stats.CallsUsed)
}
