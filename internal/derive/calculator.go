// Package derive recomputes the attributes of a banner that follow from its
// missions, event dates and comments.
package derive

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bannergress/recalc/internal/geo"
	"github.com/bannergress/recalc/pkg/core"
	"github.com/rs/zerolog"
)

// ErrInconsistentEventDates is returned when only one of the event dates is set
var ErrInconsistentEventDates = errors.New("event start and end date must be set together")

// PlaceResolver looks up the places containing a location.
type PlaceResolver interface {
	Resolve(ctx context.Context, loc core.Location) ([]core.Place, error)
}

// ZoneResolver looks up the time zone in effect at a location.
type ZoneResolver interface {
	ZoneAt(ctx context.Context, loc core.Location) (*time.Location, error)
}

// Calculator recomputes derived banner attributes.
type Calculator struct {
	places PlaceResolver
	zones  ZoneResolver
	log    zerolog.Logger
}

// NewCalculator creates a new Calculator.
func NewCalculator(places PlaceResolver, zones ZoneResolver, log zerolog.Logger) *Calculator {
	return &Calculator{
		places: places,
		zones:  zones,
		log:    log.With().Str("component", "calculator").Logger(),
	}
}

// derived holds one calculation before it is applied.
type derived struct {
	online        bool
	lengthMeters  int
	startLocation *core.Location
	places        []core.Place
	eventStart    *time.Time
	eventEnd      *time.Time
	ratings       core.Ratings
}

// Calculate recomputes online status, route length, start location, places,
// event window and ratings of b. On error b is left untouched.
func (c *Calculator) Calculate(ctx context.Context, b *core.Banner) error {
	var d derived

	tally := Tally(b)
	d.online = tally.Online()

	route := Route(b)
	if len(route) > 0 {
		start := route[0]
		d.startLocation = &start
	}
	d.lengthMeters = int(math.Round(geo.PathLength(route)))

	d.places = b.Places
	if d.startLocation != nil && len(b.Places) == 0 && c.places != nil {
		places, err := c.places.Resolve(ctx, *d.startLocation)
		if err != nil {
			return fmt.Errorf("resolve places: %w", err)
		}
		d.places = places
	}

	start, end, err := c.eventWindow(ctx, b, d.startLocation)
	if err != nil {
		return err
	}
	d.eventStart, d.eventEnd = start, end

	d.ratings = AverageRatings(b.Comments)

	b.Online = d.online
	b.LengthMeters = d.lengthMeters
	b.StartLocation = d.startLocation
	b.Places = d.places
	b.EventStart = d.eventStart
	b.EventEnd = d.eventEnd
	b.Ratings = d.ratings

	c.log.Debug().
		Str("banner", b.ID).
		Bool("online", b.Online).
		Int("lengthMeters", b.LengthMeters).
		Int("published", tally.Published).
		Int("submitted", tally.Submitted).
		Int("disabled", tally.Disabled).
		Msg("Calculated derived data")
	return nil
}

// eventWindow returns local midnight of the start date and local midnight of
// the day after the end date, in the zone of the start location.
func (c *Calculator) eventWindow(ctx context.Context, b *core.Banner, startLocation *core.Location) (*time.Time, *time.Time, error) {
	if b.EventStartDate == nil && b.EventEndDate == nil {
		return nil, nil, nil
	}
	if b.EventStartDate == nil || b.EventEndDate == nil {
		return nil, nil, ErrInconsistentEventDates
	}

	zone := time.UTC
	if startLocation != nil && c.zones != nil {
		z, err := c.zones.ZoneAt(ctx, *startLocation)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve time zone: %w", err)
		}
		if z != nil {
			zone = z
		}
	}

	start := b.EventStartDate.In(zone)
	end := b.EventEndDate.In(zone).AddDate(0, 0, 1)
	return &start, &end, nil
}

// StatusTally counts slots per status.
type StatusTally struct {
	Published int
	Submitted int
	Disabled  int
}

// Online reports whether every slot is published.
func (t StatusTally) Online() bool {
	return t.Submitted == 0 && t.Disabled == 0
}

// Tally counts the slots of b by status. Placeholders count as submitted.
func Tally(b *core.Banner) StatusTally {
	var t StatusTally
	for i := 0; i < b.NumberOfSlots; i++ {
		switch b.SlotStatus(i) {
		case core.StatusPublished:
			t.Published++
		case core.StatusDisabled:
			t.Disabled++
		default:
			t.Submitted++
		}
	}
	return t
}

// Route returns the known step locations of b's missions in slot order, then step order.
// Hidden steps and steps without a located POI are skipped.
func Route(b *core.Banner) []core.Location {
	var route []core.Location
	for i := 0; i < b.NumberOfSlots; i++ {
		m := b.Missions[i]
		if m == nil {
			continue
		}
		for _, s := range m.Steps {
			if s.Hidden || s.POI == nil || s.POI.Location == nil {
				continue
			}
			route = append(route, *s.POI.Location)
		}
	}
	return route
}
