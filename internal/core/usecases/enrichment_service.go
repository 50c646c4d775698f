package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/samirrijal/placekeeper/internal/core/domain"
	"github.com/samirrijal/placekeeper/internal/core/ports"
	"github.com/samirrijal/placekeeper/internal/pkg/geospatial"
	"github.com/samirrijal/placekeeper/internal/pkg/metrics"
	"github.com/samirrijal/placekeeper/internal/pkg/retry"
)

// EnrichmentOptions configures an enrichment run.
type EnrichmentOptions struct {
	// DailyCallBudget caps provider calls per run, rate-limited ones included.
	DailyCallBudget     int
	RequestDelay        time.Duration
	RateLimitDelay      time.Duration
	MaxRateLimitRetries int
	MatchRadiusM        int
}

// EnrichmentService adds provider detail fields to verified places.
type EnrichmentService struct {
	places   ports.PlaceRepository
	provider ports.PlacesProvider
	opts     EnrichmentOptions
	limiter  *rate.Limiter
	now      func() time.Time
}

// NewEnrichmentService creates a new EnrichmentService.
func NewEnrichmentService(places ports.PlaceRepository, provider ports.PlacesProvider, opts EnrichmentOptions) *EnrichmentService {
	return &EnrichmentService{
		places:   places,
		provider: provider,
		opts:     opts,
		limiter:  newLimiter(opts.RequestDelay),
		now:      time.Now,
	}
}

// enrichmentRun tracks the call budget of one run.
type enrichmentRun struct {
	budget int
	used   int
	stats  domain.EnrichmentStats
}

func (r *enrichmentRun) remaining() int { return r.budget - r.used }

// Run enriches candidates in priority order until they run out or the call
// budget cannot cover the next one. Running out of budget is not an error.
func (s *EnrichmentService) Run(ctx context.Context) (domain.EnrichmentStats, error) {
	candidates, err := s.places.ListEnrichmentCandidates(ctx, 0)
	if err != nil {
		return domain.EnrichmentStats{}, fmt.Errorf("list enrichment candidates: %w", err)
	}

	run := &enrichmentRun{budget: s.opts.DailyCallBudget}
	run.stats.Candidates = len(candidates)
	metrics.EnrichmentBudgetRemaining.Set(float64(run.remaining()))

	for i := range candidates {
		if err := ctx.Err(); err != nil {
			return run.stats, err
		}
		p := &candidates[i]

		need := 2
		if p.ProviderPlaceID != "" {
			need = 1
		}
		if run.remaining() < need {
			run.stats.BudgetExhausted = true
			break
		}

		err := s.enrich(ctx, run, p)
		metrics.EnrichmentBudgetRemaining.Set(float64(run.remaining()))

		log := slog.With("place", p.ID, "name", p.Name)
		switch {
		case err == nil:
			run.stats.Enriched++
			log.Info("place enriched")
		case ctx.Err() != nil:
			return run.stats, ctx.Err()
		case errors.Is(err, domain.ErrBudgetExhausted):
			run.stats.Skipped++
			run.stats.BudgetExhausted = true
			log.Info("call budget exhausted mid-candidate")
		case domain.IsProviderNotFound(err):
			run.stats.NotFound++
			log.Info("no provider match", "error", err)
		default:
			run.stats.Skipped++
			log.Warn("enrichment skipped", "error", err)
		}
		if run.stats.BudgetExhausted {
			break
		}
	}

	run.stats.CallsUsed = run.used
	return run.stats, nil
}

func (s *EnrichmentService) enrich(ctx context.Context, run *enrichmentRun, p *domain.Place) error {
	providerID := p.ProviderPlaceID
	if providerID == "" {
		var cand *domain.FindPlaceCandidate
		err := s.call(ctx, run, func() error {
			var err error
			cand, err = s.provider.FindPlace(ctx, domain.FindPlaceQuery{
				Name:         p.Name,
				Lat:          p.Coordinates.Lat,
				Lon:          p.Coordinates.Lon,
				RadiusMeters: s.opts.MatchRadiusM,
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("resolve provider id: %w", err)
		}
		if s.opts.MatchRadiusM > 0 &&
			!geospatial.Within(p.Coordinates.Lat, p.Coordinates.Lon, cand.Lat, cand.Lon, float64(s.opts.MatchRadiusM)) {
			return domain.NewProviderError(domain.ProviderNotFound,
				fmt.Sprintf("candidate %s outside %dm", cand.PlaceID, s.opts.MatchRadiusM), nil)
		}
		providerID = cand.PlaceID
	}

	var details *domain.PlaceDetails
	err := s.call(ctx, run, func() error {
		var err error
		details, err = s.provider.Details(ctx, providerID)
		return err
	})
	if err != nil {
		return fmt.Errorf("fetch details: %w", err)
	}

	photos := details.Photos
	if len(photos) > domain.MaxPhotoDescriptors {
		photos = photos[:domain.MaxPhotoDescriptors]
	}
	if err := s.places.ApplyEnrichment(ctx, p.ID, domain.Enrichment{
		ProviderPlaceID:  providerID,
		Rating:           details.Rating,
		TotalRatings:     details.TotalRatings,
		Phone:            details.Phone,
		Website:          details.Website,
		OpeningHours:     details.OpeningHours,
		PriceLevel:       details.PriceLevel,
		PhotoDescriptors: photos,
		EnrichedAt:       s.now().UTC(),
	}); err != nil {
		return fmt.Errorf("persist enrichment: %w", err)
	}
	return nil
}

// call performs one budgeted provider call. Quota errors sleep and retry the
// same call up to MaxRateLimitRetries times; every attempt spends budget.
func (s *EnrichmentService) call(ctx context.Context, run *enrichmentRun, op func() error) error {
	policy := retry.Policy{Delay: s.opts.RateLimitDelay, MaxRetries: s.opts.MaxRateLimitRetries}
	return retry.Do(ctx, policy, domain.IsQuotaExceeded, func() error {
		return retryNetworkOnce(ctx, s.opts.RequestDelay, func() error {
			if run.remaining() <= 0 {
				return domain.ErrBudgetExhausted
			}
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
			run.used++
			err := op()
			if domain.IsQuotaExceeded(err) {
				run.stats.RateLimited++
			}
			return err
		})
	}, func(err error, wait time.Duration) {
		slog.Warn("provider rate limited, retrying same candidate", "wait", wait)
	})
}
