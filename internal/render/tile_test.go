package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/bannergress/recalc/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/draw"
)

// fakeFetcher serves solid color pictures by URL.
type fakeFetcher struct {
	mu     sync.Mutex
	colors map[string]color.RGBA
	calls  int
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	c, ok := f.colors[url]
	if !ok {
		return nil, errors.New("not found")
	}
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img, nil
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var blue = color.RGBA{B: 0xff, A: 0xff}

func rgbaAt(img *image.RGBA, p image.Point) color.RGBA {
	return img.RGBAAt(p.X, p.Y)
}

// assertNear compares colors allowing for resampling rounding.
func assertNear(t *testing.T, want, got color.RGBA) {
	t.Helper()
	near := func(a, b uint8) bool {
		d := int(a) - int(b)
		return d >= -2 && d <= 2
	}
	ok := near(want.R, got.R) && near(want.G, got.G) && near(want.B, got.B) && near(want.A, got.A)
	assert.True(t, ok, "want %v, got %v", want, got)
}

func badgePoint(r image.Rectangle) image.Point {
	return r.Min.Add(image.Pt(BadgeSize/2, BadgeSize/2))
}

func centerPoint(r image.Rectangle) image.Point {
	return r.Min.Add(image.Pt(TileSize/2, TileSize/2))
}

func TestOverlayFor(t *testing.T) {
	tests := []struct {
		status     core.MissionStatus
		allOffline bool
		want       Overlay
	}{
		{core.StatusPublished, false, OverlayOnline},
		{core.StatusDisabled, false, OverlayOffline},
		{core.StatusDisabled, true, OverlayOnline},
		{core.StatusSubmitted, false, OverlaySubmitted},
		{core.StatusSubmitted, true, OverlaySubmitted},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, OverlayFor(tt.status, tt.allOffline))
		})
	}
}

func TestOverlay_DistinctColors(t *testing.T) {
	assert.NotEqual(t, OverlayOnline.Color(), OverlayOffline.Color())
	assert.NotEqual(t, OverlayOnline.Color(), OverlaySubmitted.Color())
	assert.NotEqual(t, OverlayOffline.Color(), OverlaySubmitted.Color())
	assert.Equal(t, "offline", OverlayOffline.String())
}

func TestLayout(t *testing.T) {
	l := NewLayout(6, 7)
	assert.Equal(t, 6, l.Columns)
	assert.Equal(t, 2, l.Rows)
	assert.Equal(t, image.Pt(6*TileSize+2*Padding, 2*TileSize+2*Padding), l.Size())

	assert.Equal(t, image.Rect(Padding, Padding, Padding+TileSize, Padding+TileSize), l.TileRect(0))
	assert.Equal(t, image.Pt(Padding, Padding+TileSize), l.TileRect(6).Min)
	assert.Equal(t, image.Pt(Padding+5*TileSize, Padding), l.TileRect(5).Min)
}

func TestLayout_ZeroWidth(t *testing.T) {
	l := NewLayout(0, 3)
	assert.Equal(t, 1, l.Columns)
	assert.Equal(t, 3, l.Rows)
}

func TestSlots(t *testing.T) {
	b := &core.Banner{
		Width:         3,
		NumberOfSlots: 3,
		Missions: map[int]*core.Mission{
			0: {ID: "a", Status: core.StatusDisabled},
			2: {ID: "c", Status: core.StatusSubmitted},
		},
		Placeholders: map[int]bool{1: true},
	}

	slots := Slots(b)
	require.Len(t, slots, 3)
	assert.Equal(t, core.StatusDisabled, slots[0].Status)
	assert.Nil(t, slots[1].Mission)
	assert.Equal(t, core.StatusSubmitted, slots[1].Status)
	for _, s := range slots {
		assert.True(t, s.AllOffline)
	}
}

func TestRenderTile_PictureAndBadge(t *testing.T) {
	fetcher := &fakeFetcher{colors: map[string]color.RGBA{"http://img/a": blue}}
	r := NewTileRenderer(fetcher, zerolog.Nop())
	layout := NewLayout(1, 1)
	canvas := NewCanvas(layout.Size())
	rect := layout.TileRect(0)

	r.RenderTile(context.Background(), canvas, rect, Slot{
		Mission: &core.Mission{Picture: "http://img/a", Status: core.StatusPublished},
		Status:  core.StatusPublished,
	})

	img := canvas.Image()
	assert.Equal(t, OverlayOnline.Color(), rgbaAt(img, badgePoint(rect)))
	assertNear(t, blue, rgbaAt(img, centerPoint(rect)))
	// outside the circle in the bottom right corner
	assert.Equal(t, Background, rgbaAt(img, rect.Max.Sub(image.Pt(2, 2))))
	// padding untouched
	assert.Equal(t, Background, rgbaAt(img, image.Pt(1, 1)))
}

func TestRenderTile_FetchFailureStillDrawsOverlay(t *testing.T) {
	r := NewTileRenderer(&fakeFetcher{}, zerolog.Nop())
	layout := NewLayout(1, 1)
	canvas := NewCanvas(layout.Size())
	rect := layout.TileRect(0)

	r.RenderTile(context.Background(), canvas, rect, Slot{
		Mission: &core.Mission{Picture: "http://img/missing", Status: core.StatusDisabled},
		Status:  core.StatusDisabled,
	})

	img := canvas.Image()
	assert.Equal(t, OverlayOffline.Color(), rgbaAt(img, badgePoint(rect)))
	assert.Equal(t, Background, rgbaAt(img, centerPoint(rect)))
}

func TestRenderTile_PlaceholderSkipsFetch(t *testing.T) {
	fetcher := &fakeFetcher{}
	r := NewTileRenderer(fetcher, zerolog.Nop())
	layout := NewLayout(1, 1)
	canvas := NewCanvas(layout.Size())
	rect := layout.TileRect(0)

	r.RenderTile(context.Background(), canvas, rect, Slot{Status: core.StatusSubmitted})

	assert.Equal(t, 0, fetcher.Calls())
	assert.Equal(t, OverlaySubmitted.Color(), rgbaAt(canvas.Image(), badgePoint(rect)))
}

func TestRenderTile_NilFetcher(t *testing.T) {
	r := NewTileRenderer(nil, zerolog.Nop())
	layout := NewLayout(1, 1)
	canvas := NewCanvas(layout.Size())
	rect := layout.TileRect(0)

	r.RenderTile(context.Background(), canvas, rect, Slot{
		Mission: &core.Mission{Picture: "http://img/a", Status: core.StatusPublished},
		Status:  core.StatusPublished,
	})

	assert.Equal(t, OverlayOnline.Color(), rgbaAt(canvas.Image(), badgePoint(rect)))
}
