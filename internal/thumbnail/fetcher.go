// Package thumbnail fetches and decodes mission pictures.
package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/bannergress/recalc/internal/cache"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"
)

// ErrFetch is returned when a picture could not be retrieved or decoded
var ErrFetch = errors.New("thumbnail fetch failed")

// Fetcher retrieves a decoded picture by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (image.Image, error)
}

// Config holds fetcher settings.
type Config struct {
	Timeout   time.Duration // per fetch
	CacheSize int
	MaxBytes  int64
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		Timeout:   5 * time.Second,
		CacheSize: 1024,
		MaxBytes:  4 << 20,
	}
}

// HTTPFetcher downloads pictures over HTTP behind a circuit breaker and keeps
// decoded results in memory. Concurrent fetches of one URL share a download.
type HTTPFetcher struct {
	httpClient *http.Client
	cfg        Config
	cache      *cache.ImageCache
	cb         *gobreaker.CircuitBreaker[image.Image]
	group      singleflight.Group
	log        zerolog.Logger
}

// NewHTTPFetcher creates a new HTTPFetcher.
func NewHTTPFetcher(cfg Config, log zerolog.Logger) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultConfig().MaxBytes
	}
	log = log.With().Str("component", "thumbnail").Logger()

	cb := gobreaker.NewCircuitBreaker[image.Image](gobreaker.Settings{
		Name:        "thumbnail-fetch",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state transition")
		},
	})

	return &HTTPFetcher{
		httpClient: &http.Client{},
		cfg:        cfg,
		cache:      cache.NewImageCache(cfg.CacheSize),
		cb:         cb,
		log:        log,
	}
}

// Fetch returns the decoded picture at url. Every failure wraps ErrFetch.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (image.Image, error) {
	if img, ok := f.cache.Get(url); ok {
		return img, nil
	}

	// the shared download outlives any single caller
	fetchCtx := context.WithoutCancel(ctx)
	ch := f.group.DoChan(url, func() (interface{}, error) {
		img, err := f.cb.Execute(func() (image.Image, error) {
			return f.download(fetchCtx, url)
		})
		if err != nil {
			return nil, err
		}
		f.cache.Set(url, img)
		return img, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, url, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrFetch, url, res.Err)
		}
		return res.Val.(image.Image), nil
	}
}

// State reports the circuit breaker state.
func (f *HTTPFetcher) State() gobreaker.State {
	return f.cb.State()
}

func (f *HTTPFetcher) download(ctx context.Context, url string) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("returned status %d", resp.StatusCode)
	}

	img, format, err := image.Decode(io.LimitReader(resp.Body, f.cfg.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode: %w", err)
	}
	f.log.Debug().Str("url", url).Str("format", format).Dur("duration", time.Since(start)).Msg("Fetched thumbnail")
	return img, nil
}
