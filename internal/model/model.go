package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&POI{},
	&Mission{},
	&Step{},
	&RenderedImage{},
	&Banner{},
	&BannerMission{},
	&BannerPlaceholder{},
	&Comment{},
}

////////////////////////
// IMPORTED MODELS
////////////////////////

// POI is a point of interest referenced by mission steps
type POI struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	Title     string    `json:"title" gorm:"size:255"`
	Type      string    `json:"type" gorm:"size:32;index:idx_poi_type"`
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (*POI) TableName() string {
	return "pois"
}

// Mission is an imported mission
type Mission struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	Title     string    `json:"title" gorm:"size:255"`
	Picture   string    `json:"picture" gorm:"size:512"`
	Status    string    `json:"status" gorm:"size:16;default:submitted"`
	Steps     []Step    `json:"steps" gorm:"foreignKey:MissionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (*Mission) TableName() string {
	return "missions"
}

// Step is one objective of a mission. Position orders steps within the mission.
type Step struct {
	ID        uint    `json:"-" gorm:"primaryKey"`
	MissionID string  `json:"missionId" gorm:"size:64;index:idx_step_mission_position,priority:1"`
	Position  int     `json:"position" gorm:"index:idx_step_mission_position,priority:2"`
	Hidden    bool    `json:"hidden" gorm:"default:false"`
	Objective string  `json:"objective" gorm:"size:64"`
	POIID     *string `json:"poiId" gorm:"column:poi_id;size:64;index:idx_step_poi"`
	POI       *POI    `json:"poi" gorm:"foreignKey:POIID"`
}

func (*Step) TableName() string {
	return "steps"
}

////////////////////////
// BANNER MODELS
////////////////////////

// Banner is an ordered grid of mission slots with its derived attributes
type Banner struct {
	ID            string `json:"id" gorm:"primaryKey;size:64"`
	Title         string `json:"title" gorm:"size:255"`
	Width         int    `json:"width" gorm:"default:6"`
	NumberOfSlots int    `json:"numberOfSlots"`

	// calendar dates as YYYY-MM-DD
	EventStartDate *string `json:"eventStartDate" gorm:"size:10"`
	EventEndDate   *string `json:"eventEndDate" gorm:"size:10"`

	Online                     bool           `json:"online"`
	LengthMeters               int            `json:"lengthMeters"`
	StartLatitude              *float64       `json:"startLatitude"`
	StartLongitude             *float64       `json:"startLongitude"`
	StartPoint                 geom.Point     `json:"-"` // EPSG:3857
	Places                     datatypes.JSON `json:"places" gorm:"default:'[]'"`
	EventStart                 *time.Time     `json:"eventStartTimestamp"`
	EventEnd                   *time.Time     `json:"eventEndTimestamp"`
	AverageOverallRating       *float64       `json:"averageOverallRating"`
	AverageAccessibilityRating *float64       `json:"averageAccessibilityRating"`
	AveragePassphrasesRating   *float64       `json:"averagePassphrasesRating"`
	AverageAccessible247Rating *float64       `json:"averageAccessible247Rating" gorm:"column:average_accessible247_rating"`
	PictureFingerprint         *string        `json:"picture" gorm:"size:32;index:idx_banner_picture"`

	Missions     []BannerMission     `json:"missions" gorm:"foreignKey:BannerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Placeholders []BannerPlaceholder `json:"placeholders" gorm:"foreignKey:BannerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Comments     []Comment           `json:"comments" gorm:"foreignKey:BannerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (*Banner) TableName() string {
	return "banners"
}

// BannerMission assigns a mission to a banner slot
type BannerMission struct {
	BannerID  string  `json:"bannerId" gorm:"primaryKey;size:64"`
	Position  int     `json:"position" gorm:"primaryKey;autoIncrement:false"`
	MissionID string  `json:"missionId" gorm:"size:64;index:idx_banner_mission_mission"`
	Mission   Mission `json:"mission" gorm:"foreignKey:MissionID"`
}

func (*BannerMission) TableName() string {
	return "banner_missions"
}

// BannerPlaceholder reserves a banner slot that has no mission yet
type BannerPlaceholder struct {
	BannerID string `json:"bannerId" gorm:"primaryKey;size:64"`
	Position int    `json:"position" gorm:"primaryKey;autoIncrement:false"`
}

func (*BannerPlaceholder) TableName() string {
	return "banner_placeholders"
}

// Comment is a user comment with optional ratings
type Comment struct {
	ID                  string    `json:"id" gorm:"primaryKey;size:64"`
	BannerID            string    `json:"bannerId" gorm:"size:64;index:idx_comment_banner"`
	OverallRating       *int      `json:"overallRating"`
	AccessibilityRating *int      `json:"accessibilityRating"`
	PassphrasesRating   *int      `json:"passphrasesRating"`
	Accessible247       *bool     `json:"accessible24_7"`
	CreatedAt           time.Time `json:"createdAt"`
}

func (*Comment) TableName() string {
	return "comments"
}

////////////////////////
// PICTURE MODELS
////////////////////////

// RenderedImage is a composed banner picture keyed by its fingerprint.
// Expiration is set once no banner should reference it any more.
type RenderedImage struct {
	Fingerprint string     `json:"fingerprint" gorm:"primaryKey;size:32"`
	Data        []byte     `json:"-"`
	Expiration  *time.Time `json:"expiration" gorm:"index:idx_rendered_image_expiration"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func (*RenderedImage) TableName() string {
	return "rendered_images"
}
