// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"sort"

	"github.com/bannergress/recalc/internal/geo"
	"github.com/bannergress/recalc/internal/model"
	"github.com/bannergress/recalc/pkg/core"
	"gorm.io/datatypes"
)

// placesToJSON converts places to datatypes.JSON for DB storage.
func placesToJSON(places []core.Place) datatypes.JSON {
	if len(places) == 0 {
		return datatypes.JSON("[]")
	}
	data, err := json.Marshal(places)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(data)
}

func dateToColumn(d *core.Date) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

// CoreToPOI converts a core.POI to a GORM model.POI
func CoreToPOI(p core.POI) model.POI {
	out := model.POI{
		ID:    p.ID,
		Title: p.Title,
		Type:  string(p.Type),
	}
	if p.Location != nil {
		lat, long := p.Location.Latitude, p.Location.Longitude
		out.Latitude = &lat
		out.Longitude = &long
	}
	return out
}

// CoreToMission converts a core.Mission to a GORM model.Mission.
// Steps reference their POI by ID only; the POI rows are written separately.
func CoreToMission(m core.Mission) model.Mission {
	out := model.Mission{
		ID:      m.ID,
		Title:   m.Title,
		Picture: m.Picture,
		Status:  string(m.Status),
	}
	if out.Status == "" {
		out.Status = string(core.StatusSubmitted)
	}
	for _, s := range m.Steps {
		step := model.Step{
			MissionID: m.ID,
			Position:  s.Index,
			Hidden:    s.Hidden,
			Objective: s.Objective,
		}
		if s.POI != nil && !s.Hidden {
			id := s.POI.ID
			step.POIID = &id
		}
		out.Steps = append(out.Steps, step)
	}
	return out
}

// CoreToComment converts a core.Comment to a GORM model.Comment
func CoreToComment(bannerID string, c core.Comment) model.Comment {
	return model.Comment{
		ID:                  c.ID,
		BannerID:            bannerID,
		OverallRating:       c.Overall,
		AccessibilityRating: c.Accessibility,
		PassphrasesRating:   c.Passphrases,
		Accessible247:       c.Accessible247,
	}
}

// CoreToBanner converts a core.Banner to a GORM model.Banner.
// Slot rows are emitted in index order and carry only the mission ID.
func CoreToBanner(b core.Banner) model.Banner {
	out := model.Banner{
		ID:             b.ID,
		Title:          b.Title,
		Width:          b.Width,
		NumberOfSlots:  b.NumberOfSlots,
		EventStartDate: dateToColumn(b.EventStartDate),
		EventEndDate:   dateToColumn(b.EventEndDate),
	}
	applyDerived(&out, b)

	positions := make([]int, 0, len(b.Missions))
	for pos, m := range b.Missions {
		if m != nil {
			positions = append(positions, pos)
		}
	}
	sort.Ints(positions)
	for _, pos := range positions {
		out.Missions = append(out.Missions, model.BannerMission{
			BannerID:  b.ID,
			Position:  pos,
			MissionID: b.Missions[pos].ID,
		})
	}

	placeholders := make([]int, 0, len(b.Placeholders))
	for pos, ok := range b.Placeholders {
		if ok {
			placeholders = append(placeholders, pos)
		}
	}
	sort.Ints(placeholders)
	for _, pos := range placeholders {
		out.Placeholders = append(out.Placeholders, model.BannerPlaceholder{BannerID: b.ID, Position: pos})
	}

	for _, c := range b.Comments {
		out.Comments = append(out.Comments, CoreToComment(b.ID, c))
	}
	return out
}

// DerivedColumns lists the banner columns owned by recalculation
var DerivedColumns = []string{
	"online",
	"length_meters",
	"start_latitude",
	"start_longitude",
	"start_point",
	"places",
	"event_start",
	"event_end",
	"average_overall_rating",
	"average_accessibility_rating",
	"average_passphrases_rating",
	"average_accessible247_rating",
	"picture_fingerprint",
}

// CoreToBannerDerived converts only the derived attributes of b.
// Use together with DerivedColumns to update an existing row.
func CoreToBannerDerived(b core.Banner) model.Banner {
	out := model.Banner{ID: b.ID}
	applyDerived(&out, b)
	return out
}

func applyDerived(out *model.Banner, b core.Banner) {
	out.Online = b.Online
	out.LengthMeters = b.LengthMeters
	if b.StartLocation != nil {
		lat, long := b.StartLocation.Latitude, b.StartLocation.Longitude
		out.StartLatitude = &lat
		out.StartLongitude = &long
	}
	// the lat/long columns stay authoritative when the point cannot be projected
	if point, err := geo.Point3857FromLocation(b.StartLocation); err == nil {
		out.StartPoint = point
	}
	out.Places = placesToJSON(b.Places)
	out.EventStart = b.EventStart
	out.EventEnd = b.EventEnd
	out.AverageOverallRating = b.Ratings.Overall
	out.AverageAccessibilityRating = b.Ratings.Accessibility
	out.AveragePassphrasesRating = b.Ratings.Passphrases
	out.AverageAccessible247Rating = b.Ratings.Accessible247
	if b.Picture != "" {
		fp := b.Picture
		out.PictureFingerprint = &fp
	}
}
