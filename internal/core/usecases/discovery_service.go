package usecases

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/samirrijal/placekeeper/internal/core/domain"
	"github.com/samirrijal/placekeeper/internal/core/ports"
	"github.com/samirrijal/placekeeper/internal/pkg/retry"
)

// DiscoveryOptions configures a discovery scan.
type DiscoveryOptions struct {
	Cells          []domain.SearchCell
	Categories     []domain.Category
	RequestDelay   time.Duration
	RateLimitDelay time.Duration
	PageTokenDelay time.Duration
	MaxRetries     int
	MaxPages       int
	Workers        int
}

// DiscoveryService scans the search grid and hands every result to a DraftSink.
type DiscoveryService struct {
	provider ports.PlacesProvider
	sink     ports.DraftSink
	opts     DiscoveryOptions
	limiter  *rate.Limiter
}

// NewDiscoveryService creates a new DiscoveryService.
func NewDiscoveryService(provider ports.PlacesProvider, sink ports.DraftSink, opts DiscoveryOptions) *DiscoveryService {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 1
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &DiscoveryService{
		provider: provider,
		sink:     sink,
		opts:     opts,
		limiter:  newLimiter(opts.RequestDelay),
	}
}

// Run scans every (cell, category) pair. Provider failures are logged and
// skipped; only cancellation ends the run early.
func (s *DiscoveryService) Run(ctx context.Context) (domain.DiscoveryStats, error) {
	var (
		mu    sync.Mutex
		total domain.DiscoveryStats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for _, cell := range s.opts.Cells {
		cell := cell
		g.Go(func() error {
			var stats domain.DiscoveryStats
			for _, cat := range s.opts.Categories {
				if err := s.scan(gctx, cell, cat, &stats); err != nil {
					mu.Lock()
					total.Merge(stats)
					mu.Unlock()
					return err
				}
			}
			mu.Lock()
			total.Merge(stats)
			mu.Unlock()
			slog.Info("discovery cell done",
				"cell", cell.Centroid.Name, "candidates", stats.Candidates,
				"inserted", stats.Inserted, "skipped", stats.Skipped)
			return nil
		})
	}

	err := g.Wait()
	return total, err
}

// scan walks the result pages of one (cell, category) pair. The returned error
// is non-nil only when ctx is done.
func (s *DiscoveryService) scan(ctx context.Context, cell domain.SearchCell, cat domain.Category, stats *domain.DiscoveryStats) error {
	log := slog.With("cell", cell.Centroid.Name, "category", cat.Name)

	token := ""
	for page := 0; page < s.opts.MaxPages; page++ {
		if token != "" {
			// Page tokens only become valid a short while after they are issued.
			if err := retry.Sleep(ctx, s.opts.PageTokenDelay); err != nil {
				return err
			}
		}

		q := domain.NearbyQuery{
			Lat:          cell.Centroid.Lat,
			Lon:          cell.Centroid.Lon,
			RadiusMeters: cell.RadiusMeters,
			Type:         cat.Type,
			Keyword:      cat.Keyword,
			PageToken:    token,
		}

		res, err := s.search(ctx, q, stats)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case domain.IsProviderNotFound(err):
			return nil
		case err != nil:
			stats.Errors++
			log.Warn("nearby search failed, skipping", "page", page, "error", err)
			return nil
		}

		for _, r := range res.Results {
			draft := domain.PlaceDraft{
				Name:            r.Name,
				Category:        cat.Name,
				Coordinates:     domain.Coordinates{Lon: r.Lon, Lat: r.Lat},
				Address:         r.Vicinity,
				Rating:          r.Rating,
				Source:          domain.SourceGooglePlaces,
				PhotoReference:  r.PhotoReference,
				ProviderPlaceID: r.PlaceID,
			}
			if err := draft.Coordinates.Validate(); err != nil || draft.Name == "" {
				stats.InvalidDrafts++
				continue
			}
			stats.Candidates++
			stats.Record(s.sink.Ingest(ctx, draft))
		}

		token = res.NextPageToken
		if token == "" {
			return nil
		}
	}
	return nil
}

// search issues one nearby search, sleeping and retrying the same request on
// quota errors up to MaxRetries times.
func (s *DiscoveryService) search(ctx context.Context, q domain.NearbyQuery, stats *domain.DiscoveryStats) (*domain.NearbyPage, error) {
	var res *domain.NearbyPage
	policy := retry.Policy{Delay: s.opts.RateLimitDelay, MaxRetries: s.opts.MaxRetries}

	err := retry.Do(ctx, policy, domain.IsQuotaExceeded, func() error {
		return retryNetworkOnce(ctx, s.opts.RequestDelay, func() error {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
			stats.Requests++
			page, err := s.provider.NearbySearch(ctx, q)
			if err != nil {
				if domain.IsQuotaExceeded(err) {
					stats.RateLimited++
				}
				return err
			}
			res = page
			return nil
		})
	}, func(err error, wait time.Duration) {
		slog.Warn("provider rate limited, retrying", "wait", wait, "error", err)
	})
	return res, err
}
