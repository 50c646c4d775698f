package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/placekeeper/internal/core/domain"
)

const placeColumns = `
	id, name, category, lon, lat, description, address, rating, source,
	verified, admin_created, concurrence, department, city, sector,
	total_ratings, phone, website, opening_hours, price_level, provider_place_id,
	photo_descriptors, last_enriched_at, official_images, created_at, updated_at`

// PlaceRepo implements ports.PlaceRepository with pgx and PostGIS.
type PlaceRepo struct {
	db *DB
}

// NewPlaceRepo creates a new PlaceRepo.
func NewPlaceRepo(db *DB) *PlaceRepo {
	return &PlaceRepo{db: db}
}

// Insert stores a new place. An empty ID is replaced by a random UUID.
func (r *PlaceRepo) Insert(ctx context.Context, p *domain.Place) error {
	if err := p.Coordinates.Validate(); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	photos, err := json.Marshal(nonNilPhotos(p.PhotoDescriptors))
	if err != nil {
		return fmt.Errorf("encode photo descriptors: %w", err)
	}

	return r.db.Pool.QueryRow(ctx, `
		INSERT INTO places (
			id, name, category, lon, lat, description, address, rating, source,
			verified, admin_created, concurrence, department, city, sector,
			total_ratings, phone, website, opening_hours, price_level, provider_place_id,
			photo_descriptors, last_enriched_at, official_images
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22, $23, $24)
		RETURNING created_at, updated_at
	`, p.ID, p.Name, p.Category, p.Coordinates.Lon, p.Coordinates.Lat, p.Description, p.Address,
		p.Rating, string(p.Source), p.Verified, p.AdminCreated, p.Concurrence,
		p.Department, p.City, p.Sector, p.TotalRatings, p.Phone, p.Website,
		nonNil(p.OpeningHours), p.PriceLevel, p.ProviderPlaceID, photos, p.LastEnrichedAt,
		nonNil(p.OfficialImages),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

// FindByIdentity returns the earliest record matching the identity triple.
func (r *PlaceRepo) FindByIdentity(ctx context.Context, id domain.Identity) (*domain.Place, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT `+placeColumns+`
		FROM places
		WHERE name = $1 AND category = $2 AND lon = $3 AND lat = $4
		ORDER BY created_at, id
		LIMIT 1
	`, id.Name, id.Category, id.Lon, id.Lat)
	return scanOne(row)
}

// GetByID returns a place by UUID.
func (r *PlaceRepo) GetByID(ctx context.Context, id string) (*domain.Place, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+placeColumns+` FROM places WHERE id = $1`, id)
	return scanOne(row)
}

// Count returns the number of stored places.
func (r *PlaceRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM places`).Scan(&n)
	return n, err
}

// ListEnrichmentCandidates returns verified places missing a provider id or an
// enrichment timestamp, most popular first. limit <= 0 means no limit.
func (r *PlaceRepo) ListEnrichmentCandidates(ctx context.Context, limit int) ([]domain.Place, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+placeColumns+`
		FROM places
		WHERE verified AND (provider_place_id = '' OR last_enriched_at IS NULL)
		ORDER BY concurrence DESC, rating DESC, id
		LIMIT $1
	`, limitArg(limit))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, collectPlace)
}

// ApplyEnrichment persists detail fields. last_enriched_at only moves forward.
func (r *PlaceRepo) ApplyEnrichment(ctx context.Context, placeID string, e domain.Enrichment) error {
	photos := e.PhotoDescriptors
	if len(photos) > domain.MaxPhotoDescriptors {
		photos = photos[:domain.MaxPhotoDescriptors]
	}
	encoded, err := json.Marshal(nonNilPhotos(photos))
	if err != nil {
		return fmt.Errorf("encode photo descriptors: %w", err)
	}

	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE places SET
			provider_place_id = $2,
			rating = COALESCE($3, rating),
			total_ratings = $4,
			phone = $5,
			website = $6,
			opening_hours = $7,
			price_level = $8,
			photo_descriptors = $9,
			last_enriched_at = GREATEST(COALESCE(last_enriched_at, $10), $10)
		WHERE id = $1
	`, placeID, e.ProviderPlaceID, e.Rating, e.TotalRatings, e.Phone, e.Website,
		nonNil(e.OpeningHours), e.PriceLevel, encoded, e.EnrichedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListMissingCity returns places without a resolved city, oldest first,
// starting after the cursor.
func (r *PlaceRepo) ListMissingCity(ctx context.Context, after domain.PlaceCursor, limit int) ([]domain.Place, error) {
	var afterAt, afterID any
	if !after.IsZero() {
		afterAt, afterID = after.CreatedAt, after.ID
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+placeColumns+`
		FROM places
		WHERE city = ''
		  AND ($2::timestamptz IS NULL OR (created_at, id) > ($2::timestamptz, $3::uuid))
		ORDER BY created_at, id
		LIMIT $1
	`, limitArg(limit), afterAt, afterID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, collectPlace)
}

// SetGeography writes the non-empty taxonomy fields.
func (r *PlaceRepo) SetGeography(ctx context.Context, placeID string, g domain.Geography) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE places SET
			department = COALESCE(NULLIF($2, ''), department),
			city = COALESCE(NULLIF($3, ''), city),
			sector = COALESCE(NULLIF($4, ''), sector)
		WHERE id = $1
	`, placeID, g.Department, g.City, g.Sector)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// StreamIdentities iterates over all identities ordered by created_at then id
// without materialising the table.
func (r *PlaceRepo) StreamIdentities(ctx context.Context, fn func(domain.PlaceIdentity) error) error {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, category, lon, lat, created_at
		FROM places
		ORDER BY created_at, id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var pi domain.PlaceIdentity
		if err := rows.Scan(
			&pi.ID, &pi.Identity.Name, &pi.Identity.Category,
			&pi.Identity.Lon, &pi.Identity.Lat, &pi.CreatedAt,
		); err != nil {
			return err
		}
		if err := fn(pi); err != nil {
			return err
		}
	}
	return rows.Err()
}

// DeleteByIDs removes the given places and returns how many rows went away.
func (r *PlaceRepo) DeleteByIDs(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM places WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// RebuildSpatialIndex rebuilds the GIST index on location.
func (r *PlaceRepo) RebuildSpatialIndex(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx, `REINDEX INDEX places_location_gix`)
	return err
}

// Stats computes store-wide aggregates in a single round trip.
func (r *PlaceRepo) Stats(ctx context.Context) (domain.PlaceStats, error) {
	stats := domain.PlaceStats{ByCategory: map[string]int{}, BySource: map[string]int{}}

	batch := &pgx.Batch{}
	batch.Queue(`
		SELECT count(*), count(*) FILTER (WHERE cardinality(official_images) > 0)
		FROM places
	`).QueryRow(func(row pgx.Row) error {
		return row.Scan(&stats.Total, &stats.WithImages)
	})
	batch.Queue(`SELECT category, count(*) FROM places GROUP BY category`).Query(func(rows pgx.Rows) error {
		return collectCounts(rows, stats.ByCategory)
	})
	batch.Queue(`SELECT source, count(*) FROM places GROUP BY source`).Query(func(rows pgx.Rows) error {
		return collectCounts(rows, stats.BySource)
	})

	if err := r.db.Pool.SendBatch(ctx, batch).Close(); err != nil {
		return domain.PlaceStats{}, fmt.Errorf("stats batch: %w", err)
	}
	return stats, nil
}

func collectCounts(rows pgx.Rows, into map[string]int) error {
	var key string
	var n int
	_, err := pgx.ForEachRow(rows, []any{&key, &n}, func() error {
		into[key] = n
		return nil
	})
	return err
}

func scanOne(row pgx.Row) (*domain.Place, error) {
	p, err := scanPlace(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func collectPlace(row pgx.CollectableRow) (domain.Place, error) {
	return scanPlace(row)
}

func scanPlace(row rowScanner) (domain.Place, error) {
	var p domain.Place
	var source string
	var photos []byte
	err := row.Scan(
		&p.ID, &p.Name, &p.Category, &p.Coordinates.Lon, &p.Coordinates.Lat,
		&p.Description, &p.Address, &p.Rating, &source,
		&p.Verified, &p.AdminCreated, &p.Concurrence, &p.Department, &p.City, &p.Sector,
		&p.TotalRatings, &p.Phone, &p.Website, &p.OpeningHours, &p.PriceLevel, &p.ProviderPlaceID,
		&photos, &p.LastEnrichedAt, &p.OfficialImages, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return p, err
	}
	p.Source = domain.Source(source)
	if len(photos) > 0 {
		if err := json.Unmarshal(photos, &p.PhotoDescriptors); err != nil {
			return p, fmt.Errorf("decode photo descriptors of %s: %w", p.ID, err)
		}
	}
	return p, nil
}

func limitArg(limit int) any {
	if limit <= 0 {
		return nil // LIMIT NULL is LIMIT ALL
	}
	return limit
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilPhotos(p []domain.PhotoDescriptor) []domain.PhotoDescriptor {
	if p == nil {
		return []domain.PhotoDescriptor{}
	}
	return p
}
