// Package recalc keeps derived banner data consistent with the missions and
// POIs changed in a unit of work.
package recalc

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bannergress/recalc/internal/render"
	"github.com/bannergress/recalc/internal/storage"
	"github.com/bannergress/recalc/internal/tracker"
	"github.com/bannergress/recalc/pkg/core"
	"github.com/rs/zerolog"
)

// Calculator recomputes the derived attributes of a banner.
type Calculator interface {
	Calculate(ctx context.Context, b *core.Banner) error
}

// Composer attaches an up to date picture to a banner.
type Composer interface {
	Compose(ctx context.Context, store render.PictureStore, b *core.Banner) error
}

// Trigger names what started a recalculation
type Trigger string

const (
	TriggerChange   Trigger = "change"
	TriggerBackfill Trigger = "backfill"
)

// Report describes one recalculation run.
type Report struct {
	Trigger  Trigger
	Missions int
	POIs     int
	Banners  int
	Duration time.Duration
	Err      error
}

// MetricsSink receives a report after every recalculation run.
type MetricsSink interface {
	RecordRecalculation(ctx context.Context, r Report)
}

// Coordinator recalculates the banners affected by a change set.
type Coordinator struct {
	calc       Calculator
	composer   Composer
	transactor storage.Transactor
	metrics    MetricsSink
	log        zerolog.Logger
}

// Dependencies holds the collaborators of a Coordinator. Metrics may be nil.
type Dependencies struct {
	Calculator Calculator
	Composer   Composer
	Transactor storage.Transactor
	Metrics    MetricsSink
}

// New creates a new Coordinator.
func New(deps Dependencies, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		calc:       deps.Calculator,
		composer:   deps.Composer,
		transactor: deps.Transactor,
		metrics:    deps.Metrics,
		log:        log.With().Str("component", "recalc").Logger(),
	}
}

// RunUnitOfWork runs fn in a serializable transaction with a fresh change
// tracker, then recalculates everything fn recorded before committing. Any
// error rolls the whole unit of work back.
func (c *Coordinator) RunUnitOfWork(ctx context.Context, fn func(uow storage.UnitOfWork, t *tracker.ChangeTracker) error) error {
	return c.transactor.Transaction(ctx, func(uow storage.UnitOfWork) error {
		t := tracker.New()
		if err := fn(uow, t); err != nil {
			return err
		}
		return c.OnMissionsOrPoisChanged(ctx, uow, t)
	})
}

// OnMissionsOrPoisChanged recalculates every banner that was changed itself,
// references a changed mission, or a mission with a step at a changed POI.
// Each banner is processed once. The first failure aborts and is returned.
func (c *Coordinator) OnMissionsOrPoisChanged(ctx context.Context, uow storage.UnitOfWork, t *tracker.ChangeTracker) (err error) {
	if t.Empty() {
		return nil
	}
	missionIDs, poiIDs, bannerIDs := t.MissionIDs(), t.POIIDs(), t.BannerIDs()
	report := Report{Trigger: TriggerChange, Missions: len(missionIDs), POIs: len(poiIDs)}
	start := time.Now()
	defer func() {
		report.Duration = time.Since(start)
		report.Err = err
		c.report(ctx, report)
	}()

	byPOI, err := uow.Banners().BannersByPOIs(ctx, poiIDs)
	if err != nil {
		return err
	}
	byMission, err := uow.Banners().BannersByMissions(ctx, missionIDs)
	if err != nil {
		return err
	}

	byID, err := uow.Banners().BannersByID(ctx, bannerIDs)
	if err != nil {
		return err
	}

	banners := union(byPOI, byMission, byID)
	report.Banners = len(banners)
	return c.recalculate(ctx, uow, banners)
}

// RecalculateBanners recalculates the given banners regardless of recorded changes.
func (c *Coordinator) RecalculateBanners(ctx context.Context, uow storage.UnitOfWork, ids []string) (err error) {
	report := Report{Trigger: TriggerBackfill}
	start := time.Now()
	defer func() {
		report.Duration = time.Since(start)
		report.Err = err
		c.report(ctx, report)
	}()

	banners, err := uow.Banners().BannersByID(ctx, ids)
	if err != nil {
		return err
	}
	if len(banners) != len(unique(ids)) {
		found := make(map[string]bool, len(banners))
		for _, b := range banners {
			found[b.ID] = true
		}
		for _, id := range ids {
			if !found[id] {
				return fmt.Errorf("banner %s: %w", id, storage.ErrNotFound)
			}
		}
	}
	report.Banners = len(banners)
	return c.recalculate(ctx, uow, banners)
}

func (c *Coordinator) recalculate(ctx context.Context, uow storage.UnitOfWork, banners []*core.Banner) error {
	disabled := make(map[string]bool)
	for _, b := range banners {
		if err := c.normalizeMissions(ctx, uow, b, disabled); err != nil {
			return fmt.Errorf("banner %s: %w", b.ID, err)
		}
		if err := c.recalculateBanner(ctx, uow, b); err != nil {
			return fmt.Errorf("banner %s: %w", b.ID, err)
		}
	}
	return nil
}

// normalizeMissions disables the slot missions of b whose visible steps all
// point at unavailable POIs. Each forced status is stored once per run.
func (c *Coordinator) normalizeMissions(ctx context.Context, uow storage.UnitOfWork, b *core.Banner, disabled map[string]bool) error {
	for _, idx := range sortedSlots(b.Missions) {
		m := b.Missions[idx]
		if !tracker.NormalizeStatus(m) || disabled[m.ID] {
			continue
		}
		if err := uow.Missions().SaveMissionStatus(ctx, m.ID, m.Status); err != nil {
			return err
		}
		disabled[m.ID] = true
		c.log.Info().Str("mission", m.ID).Msg("Disabled mission without available POIs")
	}
	return nil
}

func (c *Coordinator) recalculateBanner(ctx context.Context, uow storage.UnitOfWork, b *core.Banner) error {
	if err := c.calc.Calculate(ctx, b); err != nil {
		return err
	}
	if err := c.composer.Compose(ctx, uow.Pictures(), b); err != nil {
		return err
	}
	if err := uow.Banners().SaveDerived(ctx, b); err != nil {
		return err
	}
	c.log.Debug().Str("banner", b.ID).Bool("online", b.Online).Str("picture", b.Picture).Msg("Recalculated banner")
	return nil
}

func (c *Coordinator) report(ctx context.Context, r Report) {
	if r.Err != nil {
		c.log.Error().Err(r.Err).Str("trigger", string(r.Trigger)).Int("banners", r.Banners).Msg("Recalculation failed")
	} else {
		c.log.Info().Str("trigger", string(r.Trigger)).Int("missions", r.Missions).Int("pois", r.POIs).
			Int("banners", r.Banners).Dur("duration", r.Duration).Msg("Recalculation complete")
	}
	if c.metrics != nil {
		c.metrics.RecordRecalculation(ctx, r)
	}
}

// union merges banner lists by ID and orders the result by ID.
func union(lists ...[]*core.Banner) []*core.Banner {
	byID := make(map[string]*core.Banner)
	for _, list := range lists {
		for _, b := range list {
			if _, ok := byID[b.ID]; !ok {
				byID[b.ID] = b
			}
		}
	}
	out := make([]*core.Banner, 0, len(byID))
	for _, b := range byID {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func unique(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func sortedSlots(missions map[int]*core.Mission) []int {
	slots := make([]int, 0, len(missions))
	for idx, m := range missions {
		if m != nil {
			slots = append(slots, idx)
		}
	}
	sort.Ints(slots)
	return slots
}
