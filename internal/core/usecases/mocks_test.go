package usecases_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samirrijal/placekeeper/internal/core/domain"
)

// --- In-memory PlaceRepository ---

type memPlaceRepo struct {
	mu     sync.Mutex
	places []domain.Place
	clock  time.Time

	insertErr     error
	reindexErr    error
	reindexCalls  int
	deleteBatches [][]string
}

func newMemPlaceRepo(seed ...domain.Place) *memPlaceRepo {
	r := &memPlaceRepo{clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	for i := range seed {
		p := seed[i]
		if err := r.Insert(context.Background(), &p); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *memPlaceRepo) Insert(ctx context.Context, p *domain.Place) error {
	if err := p.Coordinates.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	if p.ID == "" {
		p.ID = fmt.Sprintf("p-%03d", len(r.places)+1)
	}
	r.clock = r.clock.Add(time.Second)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.clock
	}
	p.UpdatedAt = r.clock
	r.places = append(r.places, *p)
	return nil
}

func (r *memPlaceRepo) FindByIdentity(ctx context.Context, id domain.Identity) (*domain.Place, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *domain.Place
	for i := range r.places {
		p := &r.places[i]
		if p.Identity() != id {
			continue
		}
		if best == nil || p.CreatedAt.Before(best.CreatedAt) {
			best = p
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *memPlaceRepo) GetByID(ctx context.Context, id string) (*domain.Place, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.places {
		if r.places[i].ID == id {
			cp := r.places[i]
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memPlaceRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.places), nil
}

func (r *memPlaceRepo) ListEnrichmentCandidates(ctx context.Context, limit int) ([]domain.Place, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Place
	for _, p := range r.places {
		if p.NeedsEnrichment() {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Concurrence != out[j].Concurrence {
			return out[i].Concurrence > out[j].Concurrence
		}
		return out[i].Rating > out[j].Rating
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memPlaceRepo) ApplyEnrichment(ctx context.Context, placeID string, e domain.Enrichment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.places {
		p := &r.places[i]
		if p.ID != placeID {
			continue
		}
		p.ProviderPlaceID = e.ProviderPlaceID
		if e.Rating != nil {
			p.Rating = *e.Rating
		}
		p.TotalRatings = e.TotalRatings
		p.Phone = e.Phone
		p.Website = e.Website
		p.OpeningHours = e.OpeningHours
		p.PriceLevel = e.PriceLevel
		p.PhotoDescriptors = e.PhotoDescriptors
		if p.LastEnrichedAt == nil || e.EnrichedAt.After(*p.LastEnrichedAt) {
			at := e.EnrichedAt
			p.LastEnrichedAt = &at
		}
		return nil
	}
	return domain.ErrNotFound
}

func (r *memPlaceRepo) ListMissingCity(ctx context.Context, after domain.PlaceCursor, limit int) ([]domain.Place, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Place
	for _, p := range r.places {
		if p.City == "" && afterCursor(p, after) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func afterCursor(p domain.Place, c domain.PlaceCursor) bool {
	if c.IsZero() {
		return true
	}
	if !p.CreatedAt.Equal(c.CreatedAt) {
		return p.CreatedAt.After(c.CreatedAt)
	}
	return p.ID > c.ID
}

func (r *memPlaceRepo) SetGeography(ctx context.Context, placeID string, g domain.Geography) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.places {
		p := &r.places[i]
		if p.ID != placeID {
			continue
		}
		if g.Department != "" {
			p.Department = g.Department
		}
		if g.City != "" {
			p.City = g.City
		}
		if g.Sector != "" {
			p.Sector = g.Sector
		}
		return nil
	}
	return domain.ErrNotFound
}

func (r *memPlaceRepo) StreamIdentities(ctx context.Context, fn func(domain.PlaceIdentity) error) error {
	r.mu.Lock()
	snapshot := make([]domain.PlaceIdentity, 0, len(r.places))
	for _, p := range r.places {
		snapshot = append(snapshot, domain.PlaceIdentity{ID: p.ID, Identity: p.Identity(), CreatedAt: p.CreatedAt})
	}
	r.mu.Unlock()

	sort.Slice(snapshot, func(i, j int) bool {
		if !snapshot[i].CreatedAt.Equal(snapshot[j].CreatedAt) {
			return snapshot[i].CreatedAt.Before(snapshot[j].CreatedAt)
		}
		return snapshot[i].ID < snapshot[j].ID
	})
	for _, pi := range snapshot {
		if err := fn(pi); err != nil {
			return err
		}
	}
	return nil
}

func (r *memPlaceRepo) DeleteByIDs(ctx context.Context, ids []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteBatches = append(r.deleteBatches, append([]string(nil), ids...))
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := r.places[:0]
	n := 0
	for _, p := range r.places {
		if drop[p.ID] {
			n++
			continue
		}
		kept = append(kept, p)
	}
	r.places = kept
	return n, nil
}

func (r *memPlaceRepo) RebuildSpatialIndex(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reindexCalls++
	return r.reindexErr
}

func (r *memPlaceRepo) Stats(ctx context.Context) (domain.PlaceStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := domain.PlaceStats{ByCategory: map[string]int{}, BySource: map[string]int{}}
	for _, p := range r.places {
		s.Total++
		if len(p.OfficialImages) > 0 {
			s.WithImages++
		}
		s.ByCategory[p.Category]++
		s.BySource[string(p.Source)]++
	}
	return s, nil
}

func (r *memPlaceRepo) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.places))
	for _, p := range r.places {
		out = append(out, p.ID)
	}
	return out
}

// --- Mock PlacesProvider ---

type mockProvider struct {
	mu        sync.Mutex
	nearbyFn  func(ctx context.Context, q domain.NearbyQuery) (*domain.NearbyPage, error)
	findFn    func(ctx context.Context, q domain.FindPlaceQuery) (*domain.FindPlaceCandidate, error)
	detailsFn func(ctx context.Context, placeID string) (*domain.PlaceDetails, error)
	photoFn   func(ctx context.Context, ref string) ([]byte, string, error)

	nearbyCalls  []domain.NearbyQuery
	findCalls    int
	detailsCalls int
}

func (m *mockProvider) NearbySearch(ctx context.Context, q domain.NearbyQuery) (*domain.NearbyPage, error) {
	m.mu.Lock()
	m.nearbyCalls = append(m.nearbyCalls, q)
	m.mu.Unlock()
	if m.nearbyFn != nil {
		return m.nearbyFn(ctx, q)
	}
	return &domain.NearbyPage{}, nil
}

func (m *mockProvider) FindPlace(ctx context.Context, q domain.FindPlaceQuery) (*domain.FindPlaceCandidate, error) {
	m.mu.Lock()
	m.findCalls++
	m.mu.Unlock()
	if m.findFn != nil {
		return m.findFn(ctx, q)
	}
	return nil, domain.NewProviderError(domain.ProviderNotFound, "no candidates", nil)
}

func (m *mockProvider) Details(ctx context.Context, placeID string) (*domain.PlaceDetails, error) {
	m.mu.Lock()
	m.detailsCalls++
	m.mu.Unlock()
	if m.detailsFn != nil {
		return m.detailsFn(ctx, placeID)
	}
	return &domain.PlaceDetails{PlaceID: placeID}, nil
}

func (m *mockProvider) Photo(ctx context.Context, ref string) ([]byte, string, error) {
	if m.photoFn != nil {
		return m.photoFn(ctx, ref)
	}
	return []byte("raw"), "image/jpeg", nil
}

func (m *mockProvider) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.nearbyCalls) + m.findCalls + m.detailsCalls
}

// --- Small fakes ---

type mockWatermarker struct {
	applyFn func(data []byte) ([]byte, string, error)
}

func (m *mockWatermarker) Apply(data []byte) ([]byte, string, error) {
	if m.applyFn != nil {
		return m.applyFn(data)
	}
	return append([]byte("wm:"), data...), "jpg", nil
}

type mockAssetStore struct {
	writeFn func(ctx context.Context, name string, data []byte) (string, error)
	purgeFn func(ctx context.Context, cutoff time.Time) (int, error)
	written map[string][]byte
	removed []string
}

func (m *mockAssetStore) Write(ctx context.Context, name string, data []byte) (string, error) {
	if m.writeFn != nil {
		return m.writeFn(ctx, name, data)
	}
	if m.written == nil {
		m.written = map[string][]byte{}
	}
	m.written[name] = data
	return name, nil
}

func (m *mockAssetStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	if m.purgeFn != nil {
		return m.purgeFn(ctx, cutoff)
	}
	return 0, nil
}

func (m *mockAssetStore) Remove(ctx context.Context, rel string) error {
	m.removed = append(m.removed, rel)
	delete(m.written, rel)
	return nil
}

type mockAssetPipeline struct {
	processFn func(ctx context.Context, ref, owner string) string
	calls     int
	discarded []string
	mu        sync.Mutex
}

func (m *mockAssetPipeline) Process(ctx context.Context, ref, owner string) string {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.processFn != nil {
		return m.processFn(ctx, ref, owner)
	}
	return "places/" + owner + "_1.jpg"
}

func (m *mockAssetPipeline) Discard(ctx context.Context, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discarded = append(m.discarded, path)
}

type mockReportWriter struct {
	writeFn func(ctx context.Context, r *domain.CleanupReport) (string, error)
	last    *domain.CleanupReport
}

func (m *mockReportWriter) WriteReport(ctx context.Context, r *domain.CleanupReport) (string, error) {
	m.last = r
	if m.writeFn != nil {
		return m.writeFn(ctx, r)
	}
	return "reports/cleanup-report.json", nil
}

type mockPublisher struct {
	created []string
	jobs    []string
}

func (m *mockPublisher) PublishPlaceCreated(ctx context.Context, p *domain.Place) error {
	m.created = append(m.created, p.ID)
	return nil
}

func (m *mockPublisher) PublishJobCompleted(ctx context.Context, r *domain.JobRun) error {
	m.jobs = append(m.jobs, r.Job)
	return nil
}

type mapCache struct {
	data map[string][]byte
}

func (c *mapCache) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := c.data[key]; ok {
		return v, nil
	}
	return nil, domain.ErrNotFound
}

func (c *mapCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	if c.data == nil {
		c.data = map[string][]byte{}
	}
	c.data[key] = value
	return nil
}

func (c *mapCache) Delete(ctx context.Context, key string) error {
	delete(c.data, key)
	return nil
}

func quotaErr() error {
	return domain.NewProviderError(domain.ProviderQuotaExceeded, "OVER_QUERY_LIMIT", nil)
}

func notFoundErr() error {
	return domain.NewProviderError(domain.ProviderNotFound, "ZERO_RESULTS", nil)
}

func cafeX() domain.Place {
	return domain.Place{
		Name:        "Cafe X",
		Category:    "cafe",
		Coordinates: domain.Coordinates{Lon: -74.5, Lat: 10.9},
		Source:      domain.SourceGooglePlaces,
	}
}
