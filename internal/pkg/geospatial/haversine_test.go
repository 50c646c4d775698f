package geospatial_test

import (
	"math"
	"testing"

	"github.com/samirrijal/placekeeper/internal/pkg/geospatial"
)

func TestHaversine(t *testing.T) {
	// Barranquilla to Cartagena is roughly 105 km in a straight line.
	d := geospatial.Haversine(10.9639, -74.7964, 10.3910, -75.4794)
	if d < 95_000 || d > 115_000 {
		t.Errorf("distance = %.0f m, want ~105 km", d)
	}

	if got := geospatial.Haversine(10.9, -74.5, 10.9, -74.5); got != 0 {
		t.Errorf("same point distance = %f, want 0", got)
	}
}

func TestWithin(t *testing.T) {
	// 0.001 deg of latitude is ~111 m.
	if !geospatial.Within(10.9, -74.5, 10.901, -74.5, 150) {
		t.Error("expected point ~111 m away to be within 150 m")
	}
	if geospatial.Within(10.9, -74.5, 10.91, -74.5, 150) {
		t.Error("expected point ~1.1 km away to be outside 150 m")
	}
}

func TestCellKey(t *testing.T) {
	a := geospatial.CellKey(10.963912, -74.796401, 4)
	b := geospatial.CellKey(10.963949, -74.796449, 4)
	if a != b {
		t.Errorf("nearby points should share a key: %s vs %s", a, b)
	}
	if a != "10.9639,-74.7964" {
		t.Errorf("unexpected key %s", a)
	}
	if math.IsNaN(geospatial.Haversine(0, 0, 0, 180)) {
		t.Error("antipodal distance must be finite")
	}
}
