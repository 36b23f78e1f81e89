package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/bannergress/recalc/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationFromString_Valid(t *testing.T) {
	loc, err := LocationFromString("52.5163, 13.3777")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.Latitude != 52.5163 {
		t.Errorf("expected latitude=52.5163, got %f", loc.Latitude)
	}
	if loc.Longitude != 13.3777 {
		t.Errorf("expected longitude=13.3777, got %f", loc.Longitude)
	}
}

func TestLocationFromString_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"single component", "52.5"},
		{"bad latitude", "abc,13.3"},
		{"bad longitude", "52.5,xyz"},
		{"latitude out of range", "91,13.3"},
		{"longitude out of range", "52.5,181"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LocationFromString(tt.input)
			if !errors.Is(err, ErrInvalidCoordinates) {
				t.Errorf("expected ErrInvalidCoordinates, got %v", err)
			}
		})
	}
}

func TestPoint3857FromLocation_Origin(t *testing.T) {
	point, err := Point3857FromLocation(&core.Location{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	coords, ok := point.Coordinates()
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	// At (0, 0) in 4326, the 3857 coordinates should also be (0, 0)
	if coords.X != 0 {
		t.Errorf("expected X=0 at origin, got %f", coords.X)
	}
	if coords.Y != 0 {
		t.Errorf("expected Y=0 at origin, got %f", coords.Y)
	}
}

func TestPoint3857FromLocation_Hemispheres(t *testing.T) {
	point, err := Point3857FromLocation(&core.Location{Latitude: -30, Longitude: -45})
	require.NoError(t, err)

	coords, ok := point.Coordinates()
	require.True(t, ok)
	assert.Negative(t, coords.X, "western hemisphere")
	assert.Negative(t, coords.Y, "southern hemisphere")
}

func TestPoint3857FromLocation_Nil(t *testing.T) {
	point, err := Point3857FromLocation(nil)
	require.NoError(t, err)
	assert.True(t, point.IsEmpty())
}

func TestPoint3857FromLocation_NotFinite(t *testing.T) {
	_, err := Point3857FromLocation(&core.Location{Latitude: math.NaN(), Longitude: 0})
	assert.ErrorIs(t, err, ErrInvalidCoordinates)
}

func TestDistance_SamePoint(t *testing.T) {
	loc := core.Location{Latitude: 48.8584, Longitude: 2.2945}
	assert.Equal(t, 0.0, Distance(loc, loc))
}

func TestDistance_OneDegreeOfLatitude(t *testing.T) {
	d := Distance(core.Location{Latitude: 0, Longitude: 0}, core.Location{Latitude: 1, Longitude: 0})
	// 2*pi*R/360
	assert.InDelta(t, 111195.08, d, 0.5)
}

func TestDistance_Symmetric(t *testing.T) {
	berlin := core.Location{Latitude: 52.5200, Longitude: 13.4050}
	paris := core.Location{Latitude: 48.8566, Longitude: 2.3522}

	assert.InDelta(t, Distance(berlin, paris), Distance(paris, berlin), 1e-6)
	// roughly 878 km
	assert.InDelta(t, 878000, Distance(berlin, paris), 2000)
}

func TestDistance_Antipodal(t *testing.T) {
	d := Distance(core.Location{Latitude: 0, Longitude: 0}, core.Location{Latitude: 0, Longitude: 180})
	assert.InDelta(t, 3.14159265*EarthRadiusMeters, d, 1)
}

func TestPathLength(t *testing.T) {
	a := core.Location{Latitude: 0, Longitude: 0}
	b := core.Location{Latitude: 1, Longitude: 0}
	c := core.Location{Latitude: 2, Longitude: 0}

	assert.Equal(t, 0.0, PathLength(nil))
	assert.Equal(t, 0.0, PathLength([]core.Location{a}))
	assert.InDelta(t, 2*Distance(a, b), PathLength([]core.Location{a, b, c}), 1e-6)
}

func TestPathLength_TriangleInequality(t *testing.T) {
	a := core.Location{Latitude: 52.0, Longitude: 13.0}
	hidden := core.Location{Latitude: 52.3, Longitude: 13.9}
	c := core.Location{Latitude: 52.1, Longitude: 13.2}

	skipped := PathLength([]core.Location{a, c})
	full := PathLength([]core.Location{a, hidden, c})
	assert.LessOrEqual(t, skipped, full)
}
