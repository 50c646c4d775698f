package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/samirrijal/placekeeper/internal/core/domain"
	"github.com/samirrijal/placekeeper/internal/core/ports"
	"github.com/samirrijal/placekeeper/internal/geography"
	"github.com/samirrijal/placekeeper/internal/pkg/geospatial"
	"github.com/samirrijal/placekeeper/internal/pkg/metrics"
	"github.com/samirrijal/placekeeper/internal/pkg/retry"
)

// reverseCacheDecimals rounds coordinates to roughly 11 m for cache keys.
const reverseCacheDecimals = 4

// GeographyOptions configures a geography run.
type GeographyOptions struct {
	RequestDelay        time.Duration
	RateLimitDelay      time.Duration
	MaxRateLimitRetries int
	BatchSize           int
	CacheTTL            time.Duration
}

// GeographyService assigns city, department and sector to places missing a city.
type GeographyService struct {
	places   ports.PlaceRepository
	dict     *geography.Dictionary
	geocoder ports.ReverseGeocoder
	cache    ports.CacheService
	opts     GeographyOptions
	limiter  *rate.Limiter
}

// NewGeographyService creates a new GeographyService. geocoder and cache may be
// nil, in which case only the dictionary is used or nothing is cached.
func NewGeographyService(
	places ports.PlaceRepository,
	dict *geography.Dictionary,
	geocoder ports.ReverseGeocoder,
	cache ports.CacheService,
	opts GeographyOptions,
) *GeographyService {
	return &GeographyService{
		places:   places,
		dict:     dict,
		geocoder: geocoder,
		cache:    cache,
		opts:     opts,
		limiter:  newLimiter(opts.RequestDelay),
	}
}

// Run resolves every place still missing a city. Candidates are read in pages
// of BatchSize so one run walks the whole backlog; places left unresolved stay
// candidates for the next run.
func (s *GeographyService) Run(ctx context.Context) (domain.GeographyStats, error) {
	var stats domain.GeographyStats
	var cursor domain.PlaceCursor

	for {
		page, err := s.places.ListMissingCity(ctx, cursor, s.opts.BatchSize)
		if err != nil {
			return stats, fmt.Errorf("list places missing city: %w", err)
		}
		stats.Candidates += len(page)

		for i := range page {
			if err := s.classify(ctx, &page[i], &stats); err != nil {
				return stats, err
			}
		}

		if s.opts.BatchSize <= 0 || len(page) < s.opts.BatchSize {
			return stats, nil
		}
		cursor = domain.CursorOf(&page[len(page)-1])
	}
}

// classify resolves and persists one place. Only context errors are returned.
func (s *GeographyService) classify(ctx context.Context, p *domain.Place, stats *domain.GeographyStats) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log := slog.With("place", p.ID, "name", p.Name)

	g, err := s.resolve(ctx, p, stats)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		stats.Failed++
		log.Warn("geography lookup failed", "error", err)
		return nil
	}
	if g.City == "" {
		stats.Unresolved++
	}
	if g.Empty() {
		log.Debug("no geography resolved")
		return nil
	}

	if err := s.places.SetGeography(ctx, p.ID, g); err != nil {
		stats.Failed++
		log.Error("persist geography failed", "error", err)
		return nil
	}
	log.Debug("geography resolved", "city", g.City, "department", g.Department, "sector", g.Sector)
	return nil
}

// Resolve classifies a single place without persisting anything.
func (s *GeographyService) Resolve(ctx context.Context, p *domain.Place) (domain.Geography, error) {
	var stats domain.GeographyStats
	return s.resolve(ctx, p, &stats)
}

func (s *GeographyService) resolve(ctx context.Context, p *domain.Place, stats *domain.GeographyStats) (domain.Geography, error) {
	g := s.dict.Match(p.Address)
	if g.City != "" {
		stats.ByDictionary++
		return g, nil
	}
	if s.geocoder == nil {
		return g, nil
	}

	addr, err := s.reverse(ctx, p.Coordinates, stats)
	if domain.IsProviderNotFound(err) {
		return g, nil
	}
	if err != nil {
		return g, err
	}

	rev := domain.Geography{
		City:       addr.Locality(),
		Department: s.dict.NormalizeDepartment(addr.State),
		Sector:     addr.District(),
	}
	if rev.Department == "" && rev.City != "" {
		rev.Department, _ = s.dict.DepartmentOf(rev.City)
	}
	if rev.Sector == "" {
		rev.Sector = g.Sector
	}
	if rev.City != "" {
		stats.ByReverse++
	}
	return rev, nil
}

// reverse calls the geocoder through the cache. Requests are spaced by
// RequestDelay; 429s sleep RateLimitDelay and retry the same request.
func (s *GeographyService) reverse(ctx context.Context, c domain.Coordinates, stats *domain.GeographyStats) (*domain.ReverseAddress, error) {
	key := "geocode:reverse:" + geospatial.CellKey(c.Lat, c.Lon, reverseCacheDecimals)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var addr domain.ReverseAddress
			if err := json.Unmarshal(data, &addr); err == nil {
				stats.CacheHits++
				metrics.CacheHits.WithLabelValues("reverse_geocode").Inc()
				return &addr, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("reverse_geocode").Inc()
	}

	var addr *domain.ReverseAddress
	policy := retry.Policy{Delay: s.opts.RateLimitDelay, MaxRetries: s.opts.MaxRateLimitRetries}
	err := retry.Do(ctx, policy, domain.IsQuotaExceeded, func() error {
		return retryNetworkOnce(ctx, s.opts.RequestDelay, func() error {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
			stats.ProviderCalls++
			a, err := s.geocoder.Reverse(ctx, c.Lat, c.Lon)
			if err != nil {
				return err
			}
			addr = a
			return nil
		})
	}, func(err error, wait time.Duration) {
		stats.RateLimitWaits++
		slog.Warn("reverse geocoder rate limited, waiting", "wait", wait)
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(addr); err == nil {
			_ = s.cache.Set(ctx, key, data, int(s.opts.CacheTTL.Seconds()))
		}
	}
	return addr, nil
}
