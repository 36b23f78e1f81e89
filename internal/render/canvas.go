package render

import (
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"sync"

	"golang.org/x/image/draw"
)

const (
	// TileSize is the edge length of one slot in pixels
	TileSize = 96
	// Padding surrounds the tile grid
	Padding = 8
)

// Background fills everything not covered by a picture
var Background = color.RGBA{R: 0x21, G: 0x21, B: 0x21, A: 0xff}

// Layout places the tiles of a banner on the canvas.
type Layout struct {
	Columns int
	Rows    int
}

// NewLayout returns the grid for slots laid out width tiles per row.
func NewLayout(width, slots int) Layout {
	if width < 1 {
		width = 1
	}
	return Layout{
		Columns: width,
		Rows:    (slots + width - 1) / width,
	}
}

// Size returns the canvas size in pixels.
func (l Layout) Size() image.Point {
	return image.Pt(l.Columns*TileSize+2*Padding, l.Rows*TileSize+2*Padding)
}

// TileRect returns the canvas area of the slot at index. Slots fill rows left to right.
func (l Layout) TileRect(index int) image.Rectangle {
	col := index % l.Columns
	row := index / l.Columns
	min := image.Pt(Padding+col*TileSize, Padding+row*TileSize)
	return image.Rectangle{Min: min, Max: min.Add(image.Pt(TileSize, TileSize))}
}

// Canvas is the composed picture. Draw may be called from several goroutines.
type Canvas struct {
	mu  sync.Mutex
	img *image.RGBA
}

// NewCanvas creates a canvas of the given size filled with Background.
func NewCanvas(size image.Point) *Canvas {
	img := image.NewRGBA(image.Rectangle{Max: size})
	draw.Draw(img, img.Bounds(), image.NewUniform(Background), image.Point{}, draw.Src)
	return &Canvas{img: img}
}

// Draw copies src onto the canvas area r.
func (c *Canvas) Draw(r image.Rectangle, src image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	draw.Draw(c.img, r, src, src.Bounds().Min, draw.Src)
}

// Image returns the canvas pixels. Do not call while tiles are still drawing.
func (c *Canvas) Image() *image.RGBA {
	return c.img
}

// EncodeJPEG writes img as JPEG at quality (1-100).
func EncodeJPEG(w io.Writer, img image.Image, quality int) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}
