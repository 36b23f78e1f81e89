package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bannergress/recalc/internal/picture"
	"github.com/bannergress/recalc/internal/worker"
)

const (
	ExtensionName  = "bannerrecalc"
	CurrentVersion = "0.1.0"
)

const usage = `usage: bannerrecalc <command> [args]

commands:
  serve                          run picture garbage collection on an interval
  import <file.json>...          import missions, POIs and banners and recalculate them
  recalc <bannerID>...           recalculate derived data and pictures of banners
  delete <bannerID>...           delete banners and expire their pictures
  gc                             run one picture garbage collection pass
  picture <fingerprint> <file>   write a stored picture to a file

The config file bannerrecalc.cfg.json is read from $BANNERRECALC_CONFIG_DIR or the
working directory.`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Println(usage)
		return errors.New("no command provided")
	}

	configDir := os.Getenv("BANNERRECALC_CONFIG_DIR")
	if configDir == "" {
		configDir = "."
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(configDir)
	if err != nil {
		return err
	}
	defer a.Close()

	command, rest := strings.ToLower(args[0]), args[1:]
	switch command {
	case "serve":
		return serve(ctx, a)
	case "import":
		_, err = a.Run(ctx, worker.CommandImport, rest)
	case "recalc":
		_, err = a.Run(ctx, worker.CommandRecalc, rest)
	case "delete":
		_, err = a.Run(ctx, worker.CommandDeleteBanners, rest)
	case "gc":
		var res picture.GCResult
		res, err = a.Pictures.GarbageCollect(ctx, time.Now())
		if err == nil {
			fmt.Printf("deleted %d, revived %d\n", res.Deleted, res.Revived)
		}
	case "picture":
		err = writePicture(ctx, a, rest)
	default:
		fmt.Println(usage)
		return fmt.Errorf("unknown command: %s", command)
	}
	return err
}

// serve queues a garbage collection pass every gcInterval until interrupted.
func serve(ctx context.Context, a *app) error {
	interval := a.Picture.GCInterval
	a.Logger.Info().Dur("interval", interval).Msg("Serving")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := a.Run(ctx, worker.CommandGC, nil); err != nil {
			// a pass is already queued
			a.Logger.Debug().Err(err).Msg("Garbage collection not queued")
		}

		select {
		case <-ctx.Done():
			a.Logger.Info().Msg("Shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

func writePicture(ctx context.Context, a *app, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("picture needs a fingerprint and an output file")
	}
	data, err := a.Pictures.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to read picture %s: %w", args[0], err)
	}
	if err := os.WriteFile(args[1], data, 0644); err != nil {
		return fmt.Errorf("failed to write picture: %w", err)
	}
	a.Logger.Info().Str("fingerprint", args[0]).Str("file", args[1]).Int("bytes", len(data)).Msg("Wrote picture")
	return nil
}
