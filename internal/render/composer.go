package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/bannergress/recalc/internal/fingerprint"
	"github.com/bannergress/recalc/pkg/core"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

const instrumentationName = "github.com/bannergress/recalc/internal/render"

// ErrEncode is returned when the composed picture cannot be encoded
var ErrEncode = errors.New("picture encode failed")

// PictureStore is the part of the picture store the composer writes through.
type PictureStore interface {
	Lookup(ctx context.Context, fp string) (*core.RenderedImage, error)
	Put(ctx context.Context, fp string, data []byte) (*core.RenderedImage, error)
	Reuse(ctx context.Context, fp string) error
	MarkExpired(ctx context.Context, fp string, ttl time.Duration) error
}

// Config holds composer settings.
type Config struct {
	Quality int
	Workers int
	Expiry  time.Duration // grace period of a picture no banner uses any more
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		Quality: 90,
		Workers: 16,
		Expiry:  7 * 24 * time.Hour,
	}
}

type encodeFunc func(w io.Writer, img image.Image, quality int) error

// Composer produces the picture of a banner, reusing stored pictures with the
// same fingerprint.
type Composer struct {
	tiles  *TileRenderer
	cfg    Config
	log    zerolog.Logger
	encode encodeFunc

	hits     metric.Int64Counter
	misses   metric.Int64Counter
	duration metric.Float64Histogram
}

// NewComposer creates a new Composer.
// Uses the global OTel meter for metrics (no-op if not configured).
func NewComposer(tiles *TileRenderer, cfg Config, log zerolog.Logger) (*Composer, error) {
	if cfg.Workers < 1 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.Quality < 1 || cfg.Quality > 100 {
		cfg.Quality = DefaultConfig().Quality
	}

	c := &Composer{
		tiles:  tiles,
		cfg:    cfg,
		log:    log.With().Str("component", "composer").Logger(),
		encode: EncodeJPEG,
	}

	m := otel.Meter(instrumentationName)
	var err error

	c.hits, err = m.Int64Counter(
		"composer.cache.hits",
		metric.WithDescription("Pictures reused from the store"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating hits counter: %w", err)
	}

	c.misses, err = m.Int64Counter(
		"composer.cache.misses",
		metric.WithDescription("Pictures rendered because none was stored"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating misses counter: %w", err)
	}

	c.duration, err = m.Float64Histogram(
		"composer.render.duration",
		metric.WithDescription("Time spent rendering and encoding a picture"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return c, nil
}

// Params returns the fingerprint parameters matching the composer's output.
func (c *Composer) Params() fingerprint.Params {
	return fingerprint.Params{Quality: c.cfg.Quality}
}

// Compose makes b.Picture point at a stored picture of b's current state.
// The picture b referenced before is scheduled for expiry when it changes.
// On error b is left unchanged; writes already made are undone by the
// surrounding transaction.
func (c *Composer) Compose(ctx context.Context, store PictureStore, b *core.Banner) error {
	fp := fingerprint.Compute(b, c.Params())
	previous := b.Picture

	existing, err := store.Lookup(ctx, fp)
	if err != nil {
		return err
	}

	if existing != nil {
		c.hits.Add(ctx, 1)
		if err := store.Reuse(ctx, fp); err != nil {
			return err
		}
	} else {
		c.misses.Add(ctx, 1)
		start := time.Now()

		img, err := c.Render(ctx, b)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := c.encode(&buf, img, c.cfg.Quality); err != nil {
			return fmt.Errorf("%w: %v", ErrEncode, err)
		}
		if _, err := store.Put(ctx, fp, buf.Bytes()); err != nil {
			return err
		}

		c.duration.Record(ctx, time.Since(start).Seconds())
		c.log.Debug().Str("banner", b.ID).Str("fingerprint", fp).Int("bytes", buf.Len()).Dur("duration", time.Since(start)).Msg("Rendered picture")
	}

	if previous != "" && previous != fp {
		if err := store.MarkExpired(ctx, previous, c.cfg.Expiry); err != nil {
			return err
		}
	}
	b.Picture = fp
	return nil
}

// Render draws every slot of b onto a new canvas. Tiles are drawn concurrently.
func (c *Composer) Render(ctx context.Context, b *core.Banner) (*image.RGBA, error) {
	layout := NewLayout(b.Width, b.NumberOfSlots)
	canvas := NewCanvas(layout.Size())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for _, slot := range Slots(b) {
		g.Go(func() error {
			c.tiles.RenderTile(gctx, canvas, layout.TileRect(slot.Index), slot)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return canvas.Image(), nil
}
