package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/bannergress/recalc/internal/config"
	"github.com/bannergress/recalc/internal/database"
	"github.com/bannergress/recalc/internal/derive"
	"github.com/bannergress/recalc/internal/dispatcher"
	"github.com/bannergress/recalc/internal/influx"
	"github.com/bannergress/recalc/internal/logging"
	"github.com/bannergress/recalc/internal/picture"
	"github.com/bannergress/recalc/internal/recalc"
	"github.com/bannergress/recalc/internal/render"
	"github.com/bannergress/recalc/internal/resolver"
	gormstorage "github.com/bannergress/recalc/internal/storage/gorm"
	"github.com/bannergress/recalc/internal/thumbnail"
	"github.com/bannergress/recalc/internal/worker"
	"github.com/rs/zerolog"
)

// app holds the wired services of one process run.
type app struct {
	Logger     zerolog.Logger
	DB         *database.Manager
	Influx     *influx.Manager
	Pictures   *picture.Store
	Dispatcher *dispatcher.Dispatcher
	Picture    config.PictureConfig

	closers []io.Closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// newApp loads configuration from configDir and wires every service.
func newApp(configDir string) (*app, error) {
	sessionStart := time.Now()
	a := &app{}

	if err := config.Load(configDir); err != nil {
		return nil, err
	}

	logFile, err := logging.OpenLogFile(config.GetString("logsDir"), ExtensionName, sessionStart)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, logFile)

	logOpts := logging.Options{
		Level:   config.GetString("logLevel"),
		Console: os.Stdout,
		File:    logFile,
	}
	if config.GetBool("graylog.enabled") {
		logOpts.GraylogAddress = config.GetString("graylog.address")
	}
	logOut, err := logging.Setup(logOpts)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, logOut)
	a.Logger = logOut.Logger.With().Str("version", CurrentVersion).Logger()
	a.Logger.Info().Str("loglevel", a.Logger.GetLevel().String()).Msg("Logging set up")

	a.DB = database.NewManager(config.GetStorageConfig(), a.Logger)
	if err := a.DB.Connect(); err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.DB)
	if err := a.DB.Setup(); err != nil {
		a.Close()
		return nil, err
	}

	var sink recalc.MetricsSink
	var gcMetrics worker.GCRecorder
	influxCfg := config.GetInfluxConfig()
	if influxCfg.Enabled {
		backupPath := filepath.Join(config.GetString("logsDir"), "influx_backup.log.gzip")
		a.Influx = influx.NewManager(influxCfg, a.Logger, backupPath)
		if err := a.Influx.Connect(); err != nil {
			a.Logger.Warn().Err(err).Msg("InfluxDB unavailable, metrics disabled")
		} else {
			a.closers = append(a.closers, a.Influx)
			sink, gcMetrics = a.Influx, a.Influx
		}
	}

	zone, err := config.GetDefaultZone()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Picture = config.GetPictureConfig()
	fetchCfg := thumbnail.DefaultConfig()
	fetchCfg.Timeout = a.Picture.ThumbnailTimeout
	fetcher := thumbnail.NewHTTPFetcher(fetchCfg, a.Logger)

	composer, err := render.NewComposer(render.NewTileRenderer(fetcher, a.Logger), render.Config{
		Quality: a.Picture.Quality,
		Workers: a.Picture.Workers,
		Expiry:  a.Picture.Expiry,
	}, a.Logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	coordinator := recalc.New(recalc.Dependencies{
		Calculator: derive.NewCalculator(resolver.NewCachedPlaces(resolver.NoPlaces{}), resolver.NewLocationZone(resolver.FixedZone{Zone: zone}), a.Logger),
		Composer:   composer,
		Transactor: gormstorage.NewTransactor(a.DB.DB),
		Metrics:    sink,
	}, a.Logger)

	a.Pictures = picture.NewStore(a.DB.DB)

	a.Dispatcher, err = dispatcher.New(logging.NewDispatcherLogger(a.Logger))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	// the dispatcher drains before the database closes
	a.closers = append(a.closers, closerFunc(func() error {
		a.Dispatcher.Close()
		return nil
	}))

	workerManager := worker.NewManager(worker.Dependencies{
		Coordinator:   coordinator,
		Pictures:      a.Pictures,
		GCMetrics:     gcMetrics,
		PictureExpiry: a.Picture.Expiry,
		Logger:        a.Logger,
	})
	workerManager.RegisterHandlers(a.Dispatcher)
	a.Logger.Debug().Msg("Worker handlers registered with dispatcher")

	return a, nil
}

// Run dispatches one job and waits for its result.
func (a *app) Run(ctx context.Context, command string, args []string) (any, error) {
	return a.Dispatcher.Dispatch(ctx, dispatcher.Event{Command: command, Args: args})
}

// Close releases everything newApp opened, in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error during shutdown")
		}
	}
	a.closers = nil
}
