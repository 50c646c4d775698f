package usecases

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/samirrijal/placekeeper/internal/core/domain"
	"github.com/samirrijal/placekeeper/internal/core/ports"
	"github.com/samirrijal/placekeeper/internal/pkg/metrics"
)

// IngestService is the dedup gate between discovery and the canonical store.
type IngestService struct {
	places ports.PlaceRepository
	assets ports.AssetPipeline
	events ports.EventPublisher
	newID  func() string

	// Lookup and insert of one identity are serialised; different identities
	// proceed in parallel.
	mu    sync.Mutex
	locks map[domain.Identity]*identityLock
}

type identityLock struct {
	sync.Mutex
	refs int
}

// NewIngestService creates a new IngestService. assets and events may be nil.
func NewIngestService(places ports.PlaceRepository, assets ports.AssetPipeline, events ports.EventPublisher) *IngestService {
	return &IngestService{
		places: places,
		assets: assets,
		events: events,
		newID:  uuid.NewString,
		locks:  make(map[domain.Identity]*identityLock),
	}
}

// lock holds the per-identity mutex and returns its unlock func.
func (s *IngestService) lock(id domain.Identity) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &identityLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

// Ingest persists the draft unless a place with the same identity already
// exists. Errors never escape: they are logged and reported as IngestFailed.
func (s *IngestService) Ingest(ctx context.Context, draft domain.PlaceDraft) domain.IngestOutcome {
	outcome := s.ingest(ctx, draft)
	metrics.PlacesIngested.WithLabelValues(string(outcome)).Inc()
	return outcome
}

func (s *IngestService) ingest(ctx context.Context, draft domain.PlaceDraft) domain.IngestOutcome {
	log := slog.With("name", draft.Name, "category", draft.Category)

	if err := draft.Coordinates.Validate(); err != nil {
		log.Warn("draft rejected", "error", err)
		return domain.IngestFailed
	}

	defer s.lock(draft.Identity())()

	_, err := s.places.FindByIdentity(ctx, draft.Identity())
	switch {
	case err == nil:
		log.Debug("draft skipped, identity exists")
		return domain.IngestSkipped
	case !errors.Is(err, domain.ErrNotFound):
		log.Error("identity lookup failed", "error", err)
		return domain.IngestFailed
	}

	place := &domain.Place{
		ID:              s.newID(),
		Name:            draft.Name,
		Category:        draft.Category,
		Coordinates:     draft.Coordinates,
		Address:         draft.Address,
		Rating:          clampRating(draft.Rating),
		Source:          draft.Source,
		ProviderPlaceID: draft.ProviderPlaceID,
		OfficialImages:  []string{},
	}
	if !place.Source.Valid() {
		place.Source = domain.SourceGooglePlaces
	}

	if draft.PhotoReference != "" && s.assets != nil {
		if path := s.assets.Process(ctx, draft.PhotoReference, place.ID); path != "" {
			place.OfficialImages = append(place.OfficialImages, path)
		}
	}

	if err := s.places.Insert(ctx, place); err != nil {
		log.Error("insert place failed", "error", err)
		for _, path := range place.OfficialImages {
			s.assets.Discard(ctx, path)
		}
		return domain.IngestFailed
	}
	log.Info("place inserted", "place", place.ID, "images", len(place.OfficialImages))

	if s.events != nil {
		if err := s.events.PublishPlaceCreated(ctx, place); err != nil {
			log.Warn("publish place created", "place", place.ID, "error", err)
		}
	}
	return domain.IngestInserted
}

func clampRating(r float64) float64 {
	switch {
	case r < 0:
		return 0
	case r > 5:
		return 5
	}
	return r
}
