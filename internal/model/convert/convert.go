// Package convert provides functions to convert GORM models to core models
package convert

import (
	"encoding/json"
	"sort"

	"github.com/bannergress/recalc/internal/model"
	"github.com/bannergress/recalc/pkg/core"
)

// locationFromColumns returns nil unless both coordinates are set
func locationFromColumns(lat, long *float64) *core.Location {
	if lat == nil || long == nil {
		return nil
	}
	return &core.Location{Latitude: *lat, Longitude: *long}
}

// placesFromJSON decodes the places column. Broken or empty JSON yields no places.
func placesFromJSON(data []byte) []core.Place {
	if len(data) == 0 {
		return nil
	}
	var places []core.Place
	if err := json.Unmarshal(data, &places); err != nil {
		return nil
	}
	if len(places) == 0 {
		return nil
	}
	return places
}

// POIToCore converts a GORM POI to a core.POI
func POIToCore(p model.POI) core.POI {
	return core.POI{
		ID:       p.ID,
		Title:    p.Title,
		Type:     core.POIType(p.Type),
		Location: locationFromColumns(p.Latitude, p.Longitude),
	}
}

// MissionToCore converts a GORM Mission to a core.Mission.
// Steps are returned in position order. A step's POI is only set when it was preloaded.
func MissionToCore(m model.Mission) core.Mission {
	steps := make([]model.Step, len(m.Steps))
	copy(steps, m.Steps)
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Position < steps[j].Position
	})

	out := core.Mission{
		ID:      m.ID,
		Title:   m.Title,
		Picture: m.Picture,
		Status:  core.MissionStatus(m.Status),
	}
	if len(steps) > 0 {
		out.Steps = make([]core.Step, len(steps))
	}
	for i, s := range steps {
		step := core.Step{
			Index:     s.Position,
			Hidden:    s.Hidden,
			Objective: s.Objective,
		}
		if s.POI != nil {
			poi := POIToCore(*s.POI)
			step.POI = &poi
		}
		out.Steps[i] = step
	}
	return out
}

// CommentToCore converts a GORM Comment to a core.Comment
func CommentToCore(c model.Comment) core.Comment {
	return core.Comment{
		ID:            c.ID,
		Overall:       c.OverallRating,
		Accessibility: c.AccessibilityRating,
		Passphrases:   c.PassphrasesRating,
		Accessible247: c.Accessible247,
	}
}

// BannerToCore converts a GORM Banner with preloaded slots and comments to a core.Banner.
// Malformed event dates are dropped.
func BannerToCore(b model.Banner) core.Banner {
	out := core.Banner{
		ID:            b.ID,
		Title:         b.Title,
		Width:         b.Width,
		NumberOfSlots: b.NumberOfSlots,
		Missions:      make(map[int]*core.Mission, len(b.Missions)),
		Placeholders:  make(map[int]bool, len(b.Placeholders)),

		Online:        b.Online,
		LengthMeters:  b.LengthMeters,
		StartLocation: locationFromColumns(b.StartLatitude, b.StartLongitude),
		Places:        placesFromJSON(b.Places),
		EventStart:    b.EventStart,
		EventEnd:      b.EventEnd,
		Ratings: core.Ratings{
			Overall:       b.AverageOverallRating,
			Accessibility: b.AverageAccessibilityRating,
			Passphrases:   b.AveragePassphrasesRating,
			Accessible247: b.AverageAccessible247Rating,
		},
	}

	for _, bm := range b.Missions {
		m := MissionToCore(bm.Mission)
		if m.ID == "" {
			m.ID = bm.MissionID
		}
		out.Missions[bm.Position] = &m
	}
	for _, p := range b.Placeholders {
		out.Placeholders[p.Position] = true
	}
	for _, c := range b.Comments {
		out.Comments = append(out.Comments, CommentToCore(c))
	}

	if b.EventStartDate != nil {
		if d, err := core.ParseDate(*b.EventStartDate); err == nil {
			out.EventStartDate = &d
		}
	}
	if b.EventEndDate != nil {
		if d, err := core.ParseDate(*b.EventEndDate); err == nil {
			out.EventEndDate = &d
		}
	}
	if b.PictureFingerprint != nil {
		out.Picture = *b.PictureFingerprint
	}
	return out
}

// RenderedImageToCore converts a GORM RenderedImage to a core.RenderedImage
func RenderedImageToCore(r model.RenderedImage) core.RenderedImage {
	return core.RenderedImage{
		Fingerprint: r.Fingerprint,
		Data:        r.Data,
		ExpiresAt:   r.Expiration,
	}
}
