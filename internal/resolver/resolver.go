// Package resolver provides the place and time zone lookups used during recalculation.
package resolver

import (
	"context"
	"fmt"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/bannergress/recalc/internal/cache"
	"github.com/bannergress/recalc/internal/derive"
	"github.com/bannergress/recalc/pkg/core"
	"github.com/bradfitz/latlong"
)

var (
	_ derive.ZoneResolver  = FixedZone{}
	_ derive.ZoneResolver  = (*LocationZone)(nil)
	_ derive.PlaceResolver = NoPlaces{}
	_ derive.PlaceResolver = (*CachedPlaces)(nil)
)

// FixedZone answers every lookup with the same zone. A nil Zone means UTC.
type FixedZone struct {
	Zone *time.Location
}

func (f FixedZone) ZoneAt(ctx context.Context, loc core.Location) (*time.Location, error) {
	if f.Zone == nil {
		return time.UTC, nil
	}
	return f.Zone, nil
}

// LocationZone looks up the zone at a location in the embedded tz_world
// boundaries. Locations outside every boundary, such as open sea, and zone
// names the local tz database does not know are answered by the fallback.
type LocationZone struct {
	fallback derive.ZoneResolver
	lookup   func(lat, long float64) string

	mu    sync.Mutex
	zones map[string]*time.Location
}

// NewLocationZone creates a LocationZone answering unknown locations with fallback.
func NewLocationZone(fallback derive.ZoneResolver) *LocationZone {
	return &LocationZone{
		fallback: fallback,
		lookup:   latlong.LookupZoneName,
		zones:    make(map[string]*time.Location),
	}
}

func (z *LocationZone) ZoneAt(ctx context.Context, loc core.Location) (*time.Location, error) {
	name := z.lookup(loc.Latitude, loc.Longitude)
	if name == "" {
		return z.fallback.ZoneAt(ctx, loc)
	}

	z.mu.Lock()
	defer z.mu.Unlock()
	if zone, ok := z.zones[name]; ok {
		return zone, nil
	}
	zone, err := time.LoadLocation(name)
	if err != nil {
		return z.fallback.ZoneAt(ctx, loc)
	}
	z.zones[name] = zone
	return zone, nil
}

// NoPlaces never finds a place.
type NoPlaces struct{}

func (NoPlaces) Resolve(ctx context.Context, loc core.Location) ([]core.Place, error) {
	return nil, nil
}

// CachedPlaces memoizes a delegate per location rounded to about 100 m.
// Failed lookups are not cached.
type CachedPlaces struct {
	delegate derive.PlaceResolver
	cache    *cache.PlaceCache
}

// NewCachedPlaces wraps delegate with a place cache.
func NewCachedPlaces(delegate derive.PlaceResolver) *CachedPlaces {
	return &CachedPlaces{
		delegate: delegate,
		cache:    cache.NewPlaceCache(),
	}
}

func (c *CachedPlaces) Resolve(ctx context.Context, loc core.Location) ([]core.Place, error) {
	key := locationKey(loc)
	if places, ok := c.cache.Get(key); ok {
		return places, nil
	}
	places, err := c.delegate.Resolve(ctx, loc)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, places)
	return places, nil
}

func locationKey(loc core.Location) string {
	return fmt.Sprintf("%.3f,%.3f", loc.Latitude, loc.Longitude)
}
