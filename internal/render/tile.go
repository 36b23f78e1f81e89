package render

import (
	"context"
	"image"
	"image/color"

	"github.com/bannergress/recalc/internal/thumbnail"
	"github.com/bannergress/recalc/pkg/core"
	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
)

// BadgeSize is the edge length of the status badge in the top left corner of a tile
const BadgeSize = 20

// pictureInset keeps the mission picture clear of the tile border
const pictureInset = 4

// Overlay is the status badge drawn onto a tile.
type Overlay int

const (
	OverlaySubmitted Overlay = iota
	OverlayOnline
	OverlayOffline
)

var overlayColors = map[Overlay]color.RGBA{
	OverlayOnline:    {R: 0x2e, G: 0xcc, B: 0x71, A: 0xff},
	OverlayOffline:   {R: 0xe7, G: 0x4c, B: 0x3c, A: 0xff},
	OverlaySubmitted: {R: 0xf3, G: 0x9c, B: 0x12, A: 0xff},
}

// Color returns the badge color of o.
func (o Overlay) Color() color.RGBA {
	return overlayColors[o]
}

func (o Overlay) String() string {
	switch o {
	case OverlayOnline:
		return "online"
	case OverlayOffline:
		return "offline"
	default:
		return "submitted"
	}
}

// OverlayFor picks the badge for a slot status. When no slot of the banner is
// published, disabled slots are shown as online so the picture stays readable.
func OverlayFor(status core.MissionStatus, allOffline bool) Overlay {
	switch status {
	case core.StatusPublished:
		return OverlayOnline
	case core.StatusDisabled:
		if allOffline {
			return OverlayOnline
		}
		return OverlayOffline
	default:
		return OverlaySubmitted
	}
}

// Slot is what a single tile shows.
type Slot struct {
	Index      int
	Mission    *core.Mission // nil for placeholders
	Status     core.MissionStatus
	AllOffline bool
}

// Slots returns one Slot per index of b in index order.
func Slots(b *core.Banner) []Slot {
	allOffline := b.AllOffline()
	slots := make([]Slot, b.NumberOfSlots)
	for i := range slots {
		slots[i] = Slot{
			Index:      i,
			Mission:    b.Missions[i],
			Status:     b.SlotStatus(i),
			AllOffline: allOffline,
		}
	}
	return slots
}

// TileRenderer draws single slots onto a canvas.
type TileRenderer struct {
	fetcher thumbnail.Fetcher
	log     zerolog.Logger
}

// NewTileRenderer creates a TileRenderer. fetcher may be nil, then no pictures are drawn.
func NewTileRenderer(fetcher thumbnail.Fetcher, log zerolog.Logger) *TileRenderer {
	return &TileRenderer{
		fetcher: fetcher,
		log:     log.With().Str("component", "tile").Logger(),
	}
}

// RenderTile draws slot into rect of canvas. Picture failures only drop the picture.
func (r *TileRenderer) RenderTile(ctx context.Context, canvas *Canvas, rect image.Rectangle, slot Slot) {
	tile := image.NewRGBA(image.Rectangle{Max: rect.Size()})
	draw.Draw(tile, tile.Bounds(), image.NewUniform(Background), image.Point{}, draw.Src)

	if slot.Mission != nil && slot.Mission.Picture != "" && r.fetcher != nil {
		pic, err := r.fetcher.Fetch(ctx, slot.Mission.Picture)
		if err != nil {
			r.log.Debug().Err(err).Int("slot", slot.Index).Msg("Drawing tile without picture")
		} else {
			drawPicture(tile, pic)
		}
	}

	badge := image.Rect(0, 0, BadgeSize, BadgeSize)
	draw.Draw(tile, badge, image.NewUniform(OverlayFor(slot.Status, slot.AllOffline).Color()), image.Point{}, draw.Src)

	canvas.Draw(rect, tile)
}

// drawPicture scales pic into the tile and clips it to a circle.
func drawPicture(tile *image.RGBA, pic image.Image) {
	area := tile.Bounds().Inset(pictureInset)
	scaled := image.NewRGBA(area)
	draw.CatmullRom.Scale(scaled, area, pic, pic.Bounds(), draw.Src, nil)

	mask := &circle{
		center: image.Pt(area.Min.X+area.Dx()/2, area.Min.Y+area.Dy()/2),
		radius: area.Dx() / 2,
	}
	draw.DrawMask(tile, area, scaled, area.Min, mask, area.Min, draw.Over)
}

// circle is an alpha mask that is opaque inside the disc.
type circle struct {
	center image.Point
	radius int
}

func (c *circle) ColorModel() color.Model {
	return color.AlphaModel
}

func (c *circle) Bounds() image.Rectangle {
	return image.Rect(c.center.X-c.radius, c.center.Y-c.radius, c.center.X+c.radius, c.center.Y+c.radius)
}

func (c *circle) At(x, y int) color.Color {
	dx := float64(x-c.center.X) + 0.5
	dy := float64(y-c.center.Y) + 0.5
	r := float64(c.radius)
	if dx*dx+dy*dy < r*r {
		return color.Alpha{A: 255}
	}
	return color.Alpha{}
}
