// Package importer reads mission, POI and banner documents and writes them
// through a unit of work, recording every change for recalculation.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/bannergress/recalc/internal/storage"
	"github.com/bannergress/recalc/internal/tracker"
	"github.com/bannergress/recalc/pkg/core"
	"github.com/goccy/go-json"
)

// ErrInvalidDocument is returned when a document fails validation
var ErrInvalidDocument = errors.New("invalid import document")

// Document is the import file format.
type Document struct {
	POIs     []POI     `json:"pois"`
	Missions []Mission `json:"missions"`
	Banners  []Banner  `json:"banners"`
}

type POI struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Type      string   `json:"type"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type Step struct {
	Hidden    bool   `json:"hidden,omitempty"`
	Objective string `json:"objective,omitempty"`
	POI       string `json:"poi,omitempty"` // ID of a POI in the same document
}

type Mission struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Picture string `json:"picture,omitempty"`
	Status  string `json:"status,omitempty"`
	Steps   []Step `json:"steps"`
}

type Comment struct {
	Overall       *int  `json:"overall,omitempty"`
	Accessibility *int  `json:"accessibility,omitempty"`
	Passphrases   *int  `json:"passphrases,omitempty"`
	Accessible247 *bool `json:"accessible247,omitempty"`
}

// Banner lists its missions by slot. Slots without a mission are placeholders.
type Banner struct {
	ID             string         `json:"id,omitempty"`
	Title          string         `json:"title"`
	Width          int            `json:"width"`
	NumberOfSlots  int            `json:"numberOfSlots"`
	Missions       map[int]string `json:"missions"`
	EventStartDate string         `json:"eventStartDate,omitempty"`
	EventEndDate   string         `json:"eventEndDate,omitempty"`
	Comments       []Comment      `json:"comments,omitempty"`
}

// Summary counts what Apply wrote.
type Summary struct {
	POIs     int
	Missions int
	Banners  []string
}

// Decode reads a document from r. Unknown fields are rejected.
func Decode(r io.Reader) (*Document, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("error decoding import document: %w", err)
	}
	return &doc, nil
}

// Apply converts doc and saves it through uow. Every saved POI, mission and
// banner is recorded in t, so that all touched banners are recalculated with
// the unit of work.
func Apply(ctx context.Context, uow storage.UnitOfWork, t *tracker.ChangeTracker, doc *Document) (Summary, error) {
	var summary Summary

	pois := make(map[string]core.POI, len(doc.POIs))
	for _, p := range doc.POIs {
		poi, err := p.toCore()
		if err != nil {
			return summary, err
		}
		if err := uow.Missions().SavePOI(ctx, poi); err != nil {
			return summary, err
		}
		pois[poi.ID] = poi
		t.RecordPOI(poi.ID)
		summary.POIs++
	}

	for _, m := range doc.Missions {
		mission, err := m.toCore(pois)
		if err != nil {
			return summary, err
		}
		t.RecordMissionChange(&mission)
		if err := uow.Missions().SaveMission(ctx, mission); err != nil {
			return summary, err
		}
		summary.Missions++
	}

	for _, b := range doc.Banners {
		banner, err := b.toCore()
		if err != nil {
			return summary, err
		}
		if err := uow.Banners().SaveBanner(ctx, banner); err != nil {
			return summary, err
		}
		t.RecordBanner(banner.ID)
		summary.Banners = append(summary.Banners, banner.ID)
	}

	return summary, nil
}

func (p POI) toCore() (core.POI, error) {
	if p.ID == "" {
		return core.POI{}, fmt.Errorf("%w: poi without id", ErrInvalidDocument)
	}
	poi := core.POI{ID: p.ID, Title: p.Title, Type: core.POIType(p.Type)}
	switch poi.Type {
	case core.POIPortal, core.POIFieldTripWaypoint, core.POIUnavailable:
	case "":
		poi.Type = core.POIPortal
	default:
		return core.POI{}, fmt.Errorf("%w: poi %s has unknown type %q", ErrInvalidDocument, p.ID, p.Type)
	}

	if (p.Latitude == nil) != (p.Longitude == nil) {
		return core.POI{}, fmt.Errorf("%w: poi %s has only one coordinate", ErrInvalidDocument, p.ID)
	}
	if p.Latitude != nil {
		if *p.Latitude < -90 || *p.Latitude > 90 || *p.Longitude < -180 || *p.Longitude > 180 {
			return core.POI{}, fmt.Errorf("%w: poi %s has coordinates out of range", ErrInvalidDocument, p.ID)
		}
		poi.Location = &core.Location{Latitude: *p.Latitude, Longitude: *p.Longitude}
	}
	return poi, nil
}

func (m Mission) toCore(pois map[string]core.POI) (core.Mission, error) {
	if m.ID == "" {
		return core.Mission{}, fmt.Errorf("%w: mission without id", ErrInvalidDocument)
	}
	mission := core.Mission{ID: m.ID, Title: m.Title, Picture: m.Picture, Status: core.MissionStatus(m.Status)}
	switch mission.Status {
	case core.StatusSubmitted, core.StatusPublished, core.StatusDisabled:
	case "":
		mission.Status = core.StatusSubmitted
	default:
		return core.Mission{}, fmt.Errorf("%w: mission %s has unknown status %q", ErrInvalidDocument, m.ID, m.Status)
	}

	for i, s := range m.Steps {
		step := core.Step{Index: i, Hidden: s.Hidden, Objective: s.Objective}
		if s.POI != "" && !s.Hidden {
			poi, ok := pois[s.POI]
			if !ok {
				return core.Mission{}, fmt.Errorf("%w: mission %s step %d references unknown poi %s", ErrInvalidDocument, m.ID, i, s.POI)
			}
			step.POI = &poi
		}
		mission.Steps = append(mission.Steps, step)
	}
	return mission, nil
}

func (b Banner) toCore() (*core.Banner, error) {
	if b.Width < 1 || b.NumberOfSlots < 1 {
		return nil, fmt.Errorf("%w: banner %q needs a positive width and slot count", ErrInvalidDocument, b.ID)
	}
	banner := &core.Banner{
		ID:            b.ID,
		Title:         b.Title,
		Width:         b.Width,
		NumberOfSlots: b.NumberOfSlots,
		Missions:      make(map[int]*core.Mission, len(b.Missions)),
		Placeholders:  make(map[int]bool),
	}
	for index, missionID := range b.Missions {
		if index < 0 || index >= b.NumberOfSlots {
			return nil, fmt.Errorf("%w: banner %q slot %d out of range", ErrInvalidDocument, b.ID, index)
		}
		banner.Missions[index] = &core.Mission{ID: missionID}
	}
	for i := 0; i < b.NumberOfSlots; i++ {
		if _, ok := banner.Missions[i]; !ok {
			banner.Placeholders[i] = true
		}
	}

	var err error
	if banner.EventStartDate, err = parseDate(b.EventStartDate); err != nil {
		return nil, fmt.Errorf("%w: banner %q event start: %v", ErrInvalidDocument, b.ID, err)
	}
	if banner.EventEndDate, err = parseDate(b.EventEndDate); err != nil {
		return nil, fmt.Errorf("%w: banner %q event end: %v", ErrInvalidDocument, b.ID, err)
	}

	for _, c := range b.Comments {
		banner.Comments = append(banner.Comments, core.Comment{
			Overall:       c.Overall,
			Accessibility: c.Accessibility,
			Passphrases:   c.Passphrases,
			Accessible247: c.Accessible247,
		})
	}
	return banner, nil
}

func parseDate(s string) (*core.Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
