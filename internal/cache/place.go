package cache

import (
	"sync"

	"github.com/bannergress/recalc/pkg/core"
)

// PlaceCache maps location keys to the places resolved for them
type PlaceCache struct {
	mu     sync.RWMutex
	places map[string][]core.Place
}

// NewPlaceCache creates a new PlaceCache
func NewPlaceCache() *PlaceCache {
	return &PlaceCache{
		places: make(map[string][]core.Place),
	}
}

// Get retrieves the places for key. A cached empty result is reported as found.
func (c *PlaceCache) Get(key string) ([]core.Place, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	places, ok := c.places[key]
	return places, ok
}

// Set stores the places for key
func (c *PlaceCache) Set(key string, places []core.Place) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.places[key] = places
}

// Reset clears all places from the cache
func (c *PlaceCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.places = make(map[string][]core.Place)
}
