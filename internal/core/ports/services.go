package ports

import (
	"context"
	"time"

	"github.com/samirrijal/placekeeper/internal/core/domain"
)

// PlacesProvider is the external map provider.
type PlacesProvider interface {
	NearbySearch(ctx context.Context, q domain.NearbyQuery) (*domain.NearbyPage, error)
	FindPlace(ctx context.Context, q domain.FindPlaceQuery) (*domain.FindPlaceCandidate, error)
	Details(ctx context.Context, placeID string) (*domain.PlaceDetails, error)
	// Photo returns raw image bytes and the response content type.
	Photo(ctx context.Context, reference string) ([]byte, string, error)
}

// ReverseGeocoder turns coordinates into an address breakdown.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (*domain.ReverseAddress, error)
}

// Watermarker composites the watermark onto an encoded image and re-encodes it.
// It returns the encoded bytes and the file extension to use.
type Watermarker interface {
	Apply(data []byte) ([]byte, string, error)
}

// AssetPipeline turns a provider photo reference into a stored, watermarked asset.
// It returns the relative asset path, or "" when any step failed.
type AssetPipeline interface {
	Process(ctx context.Context, photoReference, ownerID string) string
	// Discard removes an asset returned by Process whose owner was never stored.
	Discard(ctx context.Context, path string)
}

// DraftSink receives candidates emitted by discovery.
type DraftSink interface {
	Ingest(ctx context.Context, draft domain.PlaceDraft) domain.IngestOutcome
}

// EventPublisher publishes pipeline events to a message broker.
type EventPublisher interface {
	PublishPlaceCreated(ctx context.Context, place *domain.Place) error
	PublishJobCompleted(ctx context.Context, run *domain.JobRun) error
}

// EventSubscriber receives manual job triggers.
type EventSubscriber interface {
	SubscribeJobTriggers(ctx context.Context, handler func(ctx context.Context, job string) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// JobLock is a cross-process mutual exclusion lock keyed by job name.
type JobLock interface {
	// Acquire returns a release func, or domain.ErrJobRunning when another holder exists.
	Acquire(ctx context.Context, job string, ttl time.Duration) (func(context.Context) error, error)
}
