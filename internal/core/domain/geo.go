package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCoordinates is returned for points outside WGS 84 bounds.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Coordinates is a WGS 84 point. It serialises as a [lon, lat] pair.
type Coordinates struct {
	Lon float64
	Lat float64
}

// Validate checks lon∈[-180,180] and lat∈[-90,90].
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Lon) || math.IsNaN(c.Lat) {
		return fmt.Errorf("%w: NaN component", ErrInvalidCoordinates)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: longitude %f out of range", ErrInvalidCoordinates, c.Lon)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range", ErrInvalidCoordinates, c.Lat)
	}
	return nil
}

// MarshalJSON encodes the point as [lon, lat].
func (c Coordinates) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{c.Lon, c.Lat})
}

// UnmarshalJSON decodes a [lon, lat] pair and rejects anything else.
func (c *Coordinates) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("%w: expected [lon, lat], got %d values", ErrInvalidCoordinates, len(pair))
	}
	c.Lon, c.Lat = pair[0], pair[1]
	return c.Validate()
}

// Centroid is the anchor of a discovery cell.
type Centroid struct {
	Name string  `json:"name" mapstructure:"name"`
	Lat  float64 `json:"lat" mapstructure:"lat"`
	Lon  float64 `json:"lon" mapstructure:"lon"`
}

// SearchCell is a (centroid, radius) pair scanned by discovery.
type SearchCell struct {
	Centroid     Centroid `json:"centroid" mapstructure:"centroid"`
	RadiusMeters int      `json:"radius_m" mapstructure:"radius_m"`
}

// Category maps an internal category to the provider's type/keyword filter.
type Category struct {
	Name    string `json:"name" mapstructure:"name"`
	Type    string `json:"type" mapstructure:"type"`
	Keyword string `json:"keyword,omitempty" mapstructure:"keyword"`
}
