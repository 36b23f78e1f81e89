package worker

import (
	"context"
	"errors"
	"time"

	"github.com/bannergress/recalc/internal/picture"
	"github.com/bannergress/recalc/internal/recalc"
	"github.com/rs/zerolog"
)

// ErrNoArguments is returned when a command that needs IDs or paths got none
var ErrNoArguments = errors.New("command needs at least one argument")

// GCRecorder receives the result of every picture garbage collection pass.
type GCRecorder interface {
	RecordGarbageCollection(ctx context.Context, res picture.GCResult)
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Coordinator   *recalc.Coordinator
	Pictures      *picture.Store
	GCMetrics     GCRecorder // may be nil
	PictureExpiry time.Duration
	Logger        zerolog.Logger
}

// Manager runs jobs on behalf of the dispatcher
type Manager struct {
	deps Dependencies
	log  zerolog.Logger
	now  func() time.Time
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) *Manager {
	return &Manager{
		deps: deps,
		log:  deps.Logger.With().Str("component", "worker").Logger(),
		now:  time.Now,
	}
}
