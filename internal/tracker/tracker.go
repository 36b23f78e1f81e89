// Package tracker collects the missions, POIs and banners changed within one unit of work.
package tracker

import (
	"sort"
	"sync"

	"github.com/bannergress/recalc/pkg/core"
)

// ChangeTracker is a set of changed mission, POI and banner IDs.
// It is safe for concurrent use.
type ChangeTracker struct {
	mu       sync.Mutex
	missions map[string]struct{}
	pois     map[string]struct{}
	banners  map[string]struct{}
}

// New creates an empty ChangeTracker.
func New() *ChangeTracker {
	return &ChangeTracker{
		missions: make(map[string]struct{}),
		pois:     make(map[string]struct{}),
		banners:  make(map[string]struct{}),
	}
}

// RecordMission marks a mission as changed. Recording twice has no further effect.
func (t *ChangeTracker) RecordMission(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.missions[id] = struct{}{}
}

// RecordPOI marks a POI as changed.
func (t *ChangeTracker) RecordPOI(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pois[id] = struct{}{}
}

// RecordBanner marks a banner whose own attributes changed, such as its slots.
func (t *ChangeTracker) RecordBanner(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.banners[id] = struct{}{}
}

// RecordMissionChange normalizes the status of m and marks it as changed.
func (t *ChangeTracker) RecordMissionChange(m *core.Mission) {
	NormalizeStatus(m)
	t.RecordMission(m.ID)
}

// MissionIDs returns the changed mission IDs in ascending order.
func (t *ChangeTracker) MissionIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return sortedKeys(t.missions)
}

// POIIDs returns the changed POI IDs in ascending order.
func (t *ChangeTracker) POIIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return sortedKeys(t.pois)
}

// BannerIDs returns the directly changed banner IDs in ascending order.
func (t *ChangeTracker) BannerIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return sortedKeys(t.banners)
}

// Empty reports whether nothing was recorded.
func (t *ChangeTracker) Empty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.missions) == 0 && len(t.pois) == 0 && len(t.banners) == 0
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NormalizeStatus forces m to disabled when every visible step points at an
// unavailable POI. Hidden steps count as available. Reports whether m changed.
func NormalizeStatus(m *core.Mission) bool {
	if m == nil || len(m.Steps) == 0 || m.Status == core.StatusDisabled {
		return false
	}
	for _, s := range m.Steps {
		if s.Hidden {
			return false
		}
		if s.POI == nil || s.POI.Type != core.POIUnavailable {
			return false
		}
	}
	m.Status = core.StatusDisabled
	return true
}
