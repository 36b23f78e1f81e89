// Package storage defines the persistence boundary of a recalculation.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/bannergress/recalc/internal/picture"
	"github.com/bannergress/recalc/pkg/core"
)

// ErrNotFound is returned when a requested banner does not exist
var ErrNotFound = errors.New("banner not found")

// BannerRepository loads and stores banners with their slots resolved.
type BannerRepository interface {
	// Lookup
	BannersByMissions(ctx context.Context, missionIDs []string) ([]*core.Banner, error)
	BannersByPOIs(ctx context.Context, poiIDs []string) ([]*core.Banner, error)
	BannersByID(ctx context.Context, ids []string) ([]*core.Banner, error)

	// Writes
	SaveDerived(ctx context.Context, b *core.Banner) error
	SaveBanner(ctx context.Context, b *core.Banner) error
	DeleteBanner(ctx context.Context, id string, pictureTTL time.Duration) error
}

// MissionRepository stores imported missions and POIs.
type MissionRepository interface {
	SavePOI(ctx context.Context, p core.POI) error
	SaveMission(ctx context.Context, m core.Mission) error
	SaveMissionStatus(ctx context.Context, id string, status core.MissionStatus) error
}

// UnitOfWork groups the repositories of one transaction.
type UnitOfWork interface {
	Banners() BannerRepository
	Missions() MissionRepository
	Pictures() *picture.Store
}

// Transactor runs fn in a serializable transaction. The transaction commits
// when fn returns nil and rolls back otherwise.
type Transactor interface {
	Transaction(ctx context.Context, fn func(uow UnitOfWork) error) error
}
