package ports

import (
	"context"
	"time"

	"github.com/samirrijal/placekeeper/internal/core/domain"
)

// PlaceRepository persists places.
type PlaceRepository interface {
	// Insert stores a new place. CreatedAt/UpdatedAt are set by the store.
	Insert(ctx context.Context, place *domain.Place) error
	// FindByIdentity returns the earliest live record with the identity, or domain.ErrNotFound.
	FindByIdentity(ctx context.Context, id domain.Identity) (*domain.Place, error)
	GetByID(ctx context.Context, id string) (*domain.Place, error)
	Count(ctx context.Context) (int, error)

	// ListEnrichmentCandidates returns verified places lacking a provider id or an enrichment
	// timestamp, ordered by concurrence desc then rating desc.
	ListEnrichmentCandidates(ctx context.Context, limit int) ([]domain.Place, error)
	// ApplyEnrichment persists detail fields. last_enriched_at never moves backwards.
	ApplyEnrichment(ctx context.Context, placeID string, e domain.Enrichment) error

	// ListMissingCity returns places whose city is empty and which sort after
	// the cursor in (created_at, id) order.
	ListMissingCity(ctx context.Context, after domain.PlaceCursor, limit int) ([]domain.Place, error)
	SetGeography(ctx context.Context, placeID string, g domain.Geography) error

	// StreamIdentities calls fn for every place ordered by created_at asc, id asc.
	StreamIdentities(ctx context.Context, fn func(domain.PlaceIdentity) error) error
	DeleteByIDs(ctx context.Context, ids []string) (int, error)
	RebuildSpatialIndex(ctx context.Context) error
	Stats(ctx context.Context) (domain.PlaceStats, error)
}

// AssetStore writes and prunes derived image files under a fixed root.
type AssetStore interface {
	// Write stores data under name and returns the path relative to the asset root.
	Write(ctx context.Context, name string, data []byte) (string, error)
	// PurgeOlderThan removes files whose modification time is before cutoff.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	// Remove deletes the file at a path returned by Write. A missing file is not an error.
	Remove(ctx context.Context, rel string) error
}

// ReportWriter persists maintenance reports.
type ReportWriter interface {
	WriteReport(ctx context.Context, report *domain.CleanupReport) (string, error)
}
