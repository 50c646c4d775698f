package domain

import (
	"time"
)

// Source identifies where a Place record originated.
type Source string

const (
	SourceGooglePlaces Source = "google_places"
	SourceOSM          Source = "osm"
	SourceAdmin        Source = "admin"
	SourceUser         Source = "user"
)

// Valid reports whether s is one of the known origins.
func (s Source) Valid() bool {
	switch s {
	case SourceGooglePlaces, SourceOSM, SourceAdmin, SourceUser:
		return true
	}
	return false
}

// MaxPhotoDescriptors bounds Place.PhotoDescriptors.
const MaxPhotoDescriptors = 5

// Place is a point of interest in the canonical store.
type Place struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Category     string      `json:"category"`
	Coordinates  Coordinates `json:"coordinates"`
	Description  string      `json:"description,omitempty"`
	Address      string      `json:"address,omitempty"`
	Rating       float64     `json:"rating"`
	Source       Source      `json:"source"`
	Verified     bool        `json:"verified"`
	AdminCreated bool        `json:"admin_created"`
	Concurrence  int         `json:"concurrence"`

	Department string `json:"department,omitempty"`
	City       string `json:"city,omitempty"`
	Sector     string `json:"sector,omitempty"`

	TotalRatings     int               `json:"total_ratings,omitempty"`
	Phone            string            `json:"phone,omitempty"`
	Website          string            `json:"website,omitempty"`
	OpeningHours     []string          `json:"opening_hours,omitempty"`
	PriceLevel       *int              `json:"price_level,omitempty"`
	ProviderPlaceID  string            `json:"provider_place_id,omitempty"`
	PhotoDescriptors []PhotoDescriptor `json:"photo_descriptors,omitempty"`
	LastEnrichedAt   *time.Time        `json:"last_enriched_at,omitempty"`

	OfficialImages []string `json:"official_images"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Identity returns the dedup key of the place.
func (p *Place) Identity() Identity {
	return Identity{Name: p.Name, Category: p.Category, Lon: p.Coordinates.Lon, Lat: p.Coordinates.Lat}
}

// NeedsEnrichment reports whether the enrichment worker should pick the place up.
func (p *Place) NeedsEnrichment() bool {
	return p.Verified && (p.ProviderPlaceID == "" || p.LastEnrichedAt == nil)
}

// PhotoDescriptor is provider photo metadata kept after enrichment.
type PhotoDescriptor struct {
	Reference        string   `json:"reference"`
	Width            int      `json:"width"`
	Height           int      `json:"height"`
	HTMLAttributions []string `json:"html_attributions,omitempty"`
}

// Identity is the (name, category, coordinates) triple used for deduplication.
// It is comparable and can be used as a map key.
type Identity struct {
	Name     string
	Category string
	Lon      float64
	Lat      float64
}

// PlaceIdentity pairs a stored record with its identity, as streamed by the dedup pass.
type PlaceIdentity struct {
	ID        string
	Identity  Identity
	CreatedAt time.Time
}

// PlaceCursor is a keyset position in (created_at, id) order. The zero value
// starts from the beginning.
type PlaceCursor struct {
	CreatedAt time.Time
	ID        string
}

// IsZero reports whether c points at the start of the ordering.
func (c PlaceCursor) IsZero() bool {
	return c.ID == "" && c.CreatedAt.IsZero()
}

// CursorOf returns the cursor positioned just after p.
func CursorOf(p *Place) PlaceCursor {
	return PlaceCursor{CreatedAt: p.CreatedAt, ID: p.ID}
}

// PlaceDraft is a candidate emitted by discovery, before the ingest gate decides on it.
type PlaceDraft struct {
	Name            string      `json:"name"`
	Category        string      `json:"category"`
	Coordinates     Coordinates `json:"coordinates"`
	Address         string      `json:"address,omitempty"`
	Rating          float64     `json:"rating"`
	Source          Source      `json:"source"`
	PhotoReference  string      `json:"photo_reference,omitempty"`
	ProviderPlaceID string      `json:"provider_place_id,omitempty"`
}

// Identity returns the dedup key of the draft.
func (d *PlaceDraft) Identity() Identity {
	return Identity{Name: d.Name, Category: d.Category, Lon: d.Coordinates.Lon, Lat: d.Coordinates.Lat}
}

// Enrichment carries the detail fields persisted by the enrichment worker.
type Enrichment struct {
	ProviderPlaceID  string
	Rating           *float64
	TotalRatings     int
	Phone            string
	Website          string
	OpeningHours     []string
	PriceLevel       *int
	PhotoDescriptors []PhotoDescriptor
	EnrichedAt       time.Time
}

// Geography is the administrative taxonomy resolved for a place.
type Geography struct {
	Department string `json:"department,omitempty"`
	City       string `json:"city,omitempty"`
	Sector     string `json:"sector,omitempty"`
}

// Empty reports whether no field was resolved.
func (g Geography) Empty() bool {
	return g.City == "" && g.Department == "" && g.Sector == ""
}

// PlaceStats are aggregate counts over the whole store.
type PlaceStats struct {
	Total      int            `json:"total"`
	WithImages int            `json:"with_images"`
	ByCategory map[string]int `json:"by_category"`
	BySource   map[string]int `json:"by_source"`
}

// ImagePercentage is the share of places with at least one official image, 0-100.
func (s PlaceStats) ImagePercentage() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.WithImages) * 100 / float64(s.Total)
}
