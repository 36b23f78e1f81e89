package worker

import (
	"context"
	"fmt"
	"os"

	"github.com/bannergress/recalc/internal/dispatcher"
	"github.com/bannergress/recalc/internal/importer"
	"github.com/bannergress/recalc/internal/storage"
	"github.com/bannergress/recalc/internal/tracker"
)

const (
	CommandRecalc        = "recalc"
	CommandImport        = "import"
	CommandDeleteBanners = "banners.delete"
	CommandGC            = "pictures.gc"
)

// RegisterHandlers registers all job handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Unit of work jobs - sync, the caller waits for the commit
	d.Register(CommandRecalc, m.handleRecalc, dispatcher.Logged())
	d.Register(CommandImport, m.handleImport, dispatcher.Logged())
	d.Register(CommandDeleteBanners, m.handleDeleteBanners, dispatcher.Logged())

	// Garbage collection - buffered, one pass waiting is enough
	d.Register(CommandGC, m.handleGC, dispatcher.Buffered(1), dispatcher.Logged())
}

// handleRecalc recalculates the banners listed in the arguments.
func (m *Manager) handleRecalc(ctx context.Context, e dispatcher.Event) (any, error) {
	if len(e.Args) == 0 {
		return nil, fmt.Errorf("%s: %w", e.Command, ErrNoArguments)
	}
	err := m.deps.Coordinator.RunUnitOfWork(ctx, func(uow storage.UnitOfWork, _ *tracker.ChangeTracker) error {
		return m.deps.Coordinator.RecalculateBanners(ctx, uow, e.Args)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to recalculate banners: %w", err)
	}
	return len(e.Args), nil
}

// handleImport applies each import file listed in the arguments in its own unit of work.
func (m *Manager) handleImport(ctx context.Context, e dispatcher.Event) (any, error) {
	if len(e.Args) == 0 {
		return nil, fmt.Errorf("%s: %w", e.Command, ErrNoArguments)
	}

	summaries := make([]importer.Summary, 0, len(e.Args))
	for _, path := range e.Args {
		summary, err := m.importFile(ctx, path)
		if err != nil {
			return summaries, fmt.Errorf("failed to import %s: %w", path, err)
		}
		m.log.Info().Str("file", path).Int("pois", summary.POIs).Int("missions", summary.Missions).
			Int("banners", len(summary.Banners)).Msg("Imported file")
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (m *Manager) importFile(ctx context.Context, path string) (importer.Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return importer.Summary{}, err
	}
	defer f.Close()

	doc, err := importer.Decode(f)
	if err != nil {
		return importer.Summary{}, err
	}

	var summary importer.Summary
	err = m.deps.Coordinator.RunUnitOfWork(ctx, func(uow storage.UnitOfWork, t *tracker.ChangeTracker) error {
		var err error
		summary, err = importer.Apply(ctx, uow, t, doc)
		return err
	})
	return summary, err
}

// handleDeleteBanners deletes the banners listed in the arguments and
// schedules their pictures for expiry.
func (m *Manager) handleDeleteBanners(ctx context.Context, e dispatcher.Event) (any, error) {
	if len(e.Args) == 0 {
		return nil, fmt.Errorf("%s: %w", e.Command, ErrNoArguments)
	}
	err := m.deps.Coordinator.RunUnitOfWork(ctx, func(uow storage.UnitOfWork, _ *tracker.ChangeTracker) error {
		for _, id := range e.Args {
			if err := uow.Banners().DeleteBanner(ctx, id, m.deps.PictureExpiry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete banners: %w", err)
	}
	return len(e.Args), nil
}

// handleGC deletes expired pictures no banner references.
func (m *Manager) handleGC(ctx context.Context, e dispatcher.Event) (any, error) {
	res, err := m.deps.Pictures.GarbageCollect(ctx, m.now())
	if err != nil {
		return nil, err
	}
	if m.deps.GCMetrics != nil {
		m.deps.GCMetrics.RecordGarbageCollection(ctx, res)
	}
	m.log.Info().Int64("deleted", res.Deleted).Int64("revived", res.Revived).Msg("Garbage collected pictures")
	return res, nil
}
