package core

import "time"

// RenderedImage is a composed banner picture addressed by its fingerprint.
type RenderedImage struct {
	Fingerprint string
	Data        []byte
	ExpiresAt   *time.Time
}

// PlaceType orders places from most to least specific.
type PlaceType string

const (
	PlaceLocality           PlaceType = "locality"
	PlaceAdministrativeArea PlaceType = "administrative_area"
	PlaceCountry            PlaceType = "country"
)

// Place is a named area a banner starts in.
type Place struct {
	ID   string    `json:"id"`
	Type PlaceType `json:"type"`
	Name string    `json:"name"`
}
