// pkg/core/banner.go
package core

import "time"

// Date is a calendar date without a time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// In returns local midnight of the date in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.In(time.UTC).Format(time.DateOnly)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, err
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// Comment carries one user's ratings of a banner. Nil fields were not rated.
type Comment struct {
	ID            string
	Overall       *int
	Accessibility *int
	Passphrases   *int
	Accessible247 *bool
}

// Ratings are the per-dimension averages over all comments.
type Ratings struct {
	Overall       *float64
	Accessibility *float64
	Passphrases   *float64
	Accessible247 *float64
}

// Banner is an ordered grid of mission slots.
//
// Missions and Placeholders are keyed by slot index and are disjoint. Indices in
// [0, NumberOfSlots) that are in neither map are treated as placeholders.
type Banner struct {
	ID            string
	Title         string
	Width         int
	NumberOfSlots int
	Missions      map[int]*Mission
	Placeholders  map[int]bool

	EventStartDate *Date
	EventEndDate   *Date
	Comments       []Comment

	// Derived attributes, owned by the calculator and composer.
	Online        bool
	LengthMeters  int
	StartLocation *Location
	Places        []Place
	EventStart    *time.Time
	EventEnd      *time.Time
	Ratings       Ratings
	Picture       string // fingerprint of the current RenderedImage, empty if none
}

// SlotStatus returns the status the slot at index contributes to the banner.
// Placeholders count as submitted.
func (b *Banner) SlotStatus(index int) MissionStatus {
	if m, ok := b.Missions[index]; ok && m != nil {
		return m.Status
	}
	return StatusSubmitted
}

// AllOffline reports whether no slot of the banner is published.
func (b *Banner) AllOffline() bool {
	for i := 0; i < b.NumberOfSlots; i++ {
		if b.SlotStatus(i) == StatusPublished {
			return false
		}
	}
	return true
}

// Rows returns the number of grid rows needed for all slots.
func (b *Banner) Rows() int {
	if b.Width <= 0 {
		return 0
	}
	return (b.NumberOfSlots + b.Width - 1) / b.Width
}
