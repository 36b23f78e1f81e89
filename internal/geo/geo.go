package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bannergress/recalc/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// GEO POINTS
// Locations travel through the core as WGS84 degrees. The database additionally keeps
// a Web Mercator (3857) point so that SQLite and Postgres store the same WKB bytes.

// EarthRadiusMeters is the IUGG mean earth radius used for great-circle distances.
const EarthRadiusMeters = 6371008.8

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// LocationFromString parses a string in the format "lat,long" into a location
func LocationFromString(coords string) (core.Location, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) < 2 {
		return core.Location{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil || lat < -90 || lat > 90 {
		return core.Location{}, ErrInvalidCoordinates
	}
	long, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil || long < -180 || long > 180 {
		return core.Location{}, ErrInvalidCoordinates
	}
	return core.Location{Latitude: lat, Longitude: long}, nil
}

// Point3857FromLocation projects a WGS84 location to a Web Mercator point.
// A nil location yields an empty point. Coordinates that do not project to a
// finite point return ErrInvalidCoordinates.
func Point3857FromLocation(loc *core.Location) (geom.Point, error) {
	if loc == nil {
		return geom.Point{}, nil
	}
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(loc.Longitude, loc.Latitude, 0)
	point, err := geom.NewPoint(
		geom.Coordinates{
			XY: geom.XY{X: x, Y: y},
		},
	)
	if err != nil {
		return geom.Point{}, fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
	}
	return point, nil
}

// Distance returns the great-circle distance between a and b in meters (haversine).
func Distance(a, b core.Location) float64 {
	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := lat2 - lat1
	dLong := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLong/2)*math.Sin(dLong/2)
	// rounding can push h a hair above 1 for antipodal points
	h = math.Min(1, h)
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
