// pkg/core/mission.go
package core

// MissionStatus is the lifecycle state of an imported mission.
type MissionStatus string

const (
	StatusSubmitted MissionStatus = "submitted"
	StatusPublished MissionStatus = "published"
	StatusDisabled  MissionStatus = "disabled"
)

// POIType classifies what a step points at.
type POIType string

const (
	POIPortal            POIType = "portal"
	POIFieldTripWaypoint POIType = "fieldTripWaypoint"
	POIUnavailable       POIType = "unavailable"
)

// Location is a WGS84 coordinate in degrees.
type Location struct {
	Latitude  float64
	Longitude float64
}

// POI is a point of interest a mission step is bound to.
// Location is nil when the importer could not resolve coordinates.
type POI struct {
	ID       string
	Title    string
	Type     POIType
	Location *Location
}

// Step is one objective of a mission. Hidden steps never carry a POI.
type Step struct {
	Index     int
	Hidden    bool
	Objective string
	POI       *POI
}

// Mission is an externally sourced task. Steps are ordered by Index.
type Mission struct {
	ID      string
	Title   string
	Picture string // picture source URL, empty if none
	Status  MissionStatus
	Steps   []Step
}

// Published reports whether the mission is currently online.
func (m *Mission) Published() bool {
	return m != nil && m.Status == StatusPublished
}
