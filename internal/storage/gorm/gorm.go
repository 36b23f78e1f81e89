// Package gormstorage implements the storage interfaces on top of gorm.
package gormstorage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bannergress/recalc/internal/model"
	"github.com/bannergress/recalc/internal/model/convert"
	"github.com/bannergress/recalc/internal/picture"
	"github.com/bannergress/recalc/internal/storage"
	"github.com/bannergress/recalc/pkg/core"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Compile-time interface checks
var (
	_ storage.UnitOfWork        = (*Session)(nil)
	_ storage.BannerRepository  = (*Session)(nil)
	_ storage.MissionRepository = (*Session)(nil)
	_ storage.Transactor        = (*Transactor)(nil)
)

// authoringColumns are the banner columns written by SaveBanner on update
var authoringColumns = []string{"title", "width", "number_of_slots", "event_start_date", "event_end_date", "updated_at"}

// Session is a unit of work bound to one gorm handle, usually a transaction.
type Session struct {
	db       *gorm.DB
	pictures *picture.Store
}

// NewSession creates a Session bound to db.
func NewSession(db *gorm.DB) *Session {
	return &Session{
		db:       db,
		pictures: picture.NewStore(db),
	}
}

func (s *Session) Banners() storage.BannerRepository   { return s }
func (s *Session) Missions() storage.MissionRepository { return s }
func (s *Session) Pictures() *picture.Store            { return s.pictures }

// Transactor opens sessions inside database transactions.
type Transactor struct {
	db *gorm.DB
}

// NewTransactor creates a new Transactor.
func NewTransactor(db *gorm.DB) *Transactor {
	return &Transactor{db: db}
}

// Transaction runs fn in a transaction. Postgres runs it at serializable
// isolation; SQLite transactions are serializable already.
func (t *Transactor) Transaction(ctx context.Context, fn func(uow storage.UnitOfWork) error) error {
	var opts []*sql.TxOptions
	if t.db.Dialector.Name() == "postgres" {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelSerializable})
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewSession(tx))
	}, opts...)
}

////////////////////////
// BANNERS
////////////////////////

// BannersByMissions returns the banners that have any of the missions in a slot.
func (s *Session) BannersByMissions(ctx context.Context, missionIDs []string) ([]*core.Banner, error) {
	if len(missionIDs) == 0 {
		return nil, nil
	}
	var ids []string
	err := s.db.WithContext(ctx).Model(&model.BannerMission{}).
		Distinct("banner_id").
		Where("mission_id IN ?", missionIDs).
		Pluck("banner_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("find banners by missions: %w", err)
	}
	return s.BannersByID(ctx, ids)
}

// BannersByPOIs returns the banners with a mission that has a step at any of the POIs.
func (s *Session) BannersByPOIs(ctx context.Context, poiIDs []string) ([]*core.Banner, error) {
	if len(poiIDs) == 0 {
		return nil, nil
	}
	var ids []string
	err := s.db.WithContext(ctx).Model(&model.BannerMission{}).
		Distinct("banner_missions.banner_id").
		Joins("JOIN steps ON steps.mission_id = banner_missions.mission_id").
		Where("steps.poi_id IN ?", poiIDs).
		Pluck("banner_missions.banner_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("find banners by pois: %w", err)
	}
	return s.BannersByID(ctx, ids)
}

// BannersByID loads the banners with the given IDs, ordered by ID.
// Unknown IDs are skipped.
func (s *Session) BannersByID(ctx context.Context, ids []string) ([]*core.Banner, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var recs []model.Banner
	err := s.db.WithContext(ctx).
		Preload("Missions.Mission.Steps.POI").
		Preload("Placeholders").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at, id")
		}).
		Where("id IN ?", ids).
		Order("id").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("load banners: %w", err)
	}

	banners := make([]*core.Banner, 0, len(recs))
	for _, rec := range recs {
		b := convert.BannerToCore(rec)
		banners = append(banners, &b)
	}
	return banners, nil
}

// SaveDerived writes the derived attributes of b.
func (s *Session) SaveDerived(ctx context.Context, b *core.Banner) error {
	rec := convert.CoreToBannerDerived(*b)
	res := s.db.WithContext(ctx).Model(&rec).Select(convert.DerivedColumns).Updates(&rec)
	if res.Error != nil {
		return fmt.Errorf("save derived data of banner %s: %w", b.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("save derived data of banner %s: %w", b.ID, storage.ErrNotFound)
	}
	return nil
}

// SaveBanner creates or updates b with its slots and comments. A banner without
// an ID gets a new one. Derived attributes are only written on creation.
func (s *Session) SaveBanner(ctx context.Context, b *core.Banner) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	for i := range b.Comments {
		if b.Comments[i].ID == "" {
			b.Comments[i].ID = uuid.NewString()
		}
	}
	rec := convert.CoreToBanner(*b)
	db := s.db.WithContext(ctx)

	err := db.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(authoringColumns),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save banner %s: %w", b.ID, err)
	}

	if err := s.deleteBannerChildren(db, b.ID); err != nil {
		return err
	}
	if len(rec.Missions) > 0 {
		if err := db.Omit(clause.Associations).Create(&rec.Missions).Error; err != nil {
			return fmt.Errorf("save slots of banner %s: %w", b.ID, err)
		}
	}
	if len(rec.Placeholders) > 0 {
		if err := db.Create(&rec.Placeholders).Error; err != nil {
			return fmt.Errorf("save placeholders of banner %s: %w", b.ID, err)
		}
	}
	if len(rec.Comments) > 0 {
		if err := db.Create(&rec.Comments).Error; err != nil {
			return fmt.Errorf("save comments of banner %s: %w", b.ID, err)
		}
	}
	return nil
}

// DeleteBanner removes the banner and schedules its picture for expiry after pictureTTL.
func (s *Session) DeleteBanner(ctx context.Context, id string, pictureTTL time.Duration) error {
	db := s.db.WithContext(ctx)

	var rec model.Banner
	err := db.Select("id", "picture_fingerprint").Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("delete banner %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete banner %s: %w", id, err)
	}

	if err := s.deleteBannerChildren(db, id); err != nil {
		return err
	}
	if err := db.Where("id = ?", id).Delete(&model.Banner{}).Error; err != nil {
		return fmt.Errorf("delete banner %s: %w", id, err)
	}

	if rec.PictureFingerprint != nil {
		return s.pictures.MarkExpired(ctx, *rec.PictureFingerprint, pictureTTL)
	}
	return nil
}

func (s *Session) deleteBannerChildren(db *gorm.DB, id string) error {
	children := []interface{}{&model.BannerMission{}, &model.BannerPlaceholder{}, &model.Comment{}}
	for _, child := range children {
		if err := db.Where("banner_id = ?", id).Delete(child).Error; err != nil {
			return fmt.Errorf("clear %T of banner %s: %w", child, id, err)
		}
	}
	return nil
}

////////////////////////
// MISSIONS
////////////////////////

// SavePOI creates or replaces p.
func (s *Session) SavePOI(ctx context.Context, p core.POI) error {
	rec := convert.CoreToPOI(p)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save poi %s: %w", p.ID, err)
	}
	return nil
}

// SaveMission creates or replaces m and its steps. POIs attached to steps are saved first.
func (s *Session) SaveMission(ctx context.Context, m core.Mission) error {
	pois := make(map[string]core.POI)
	for _, step := range m.Steps {
		if step.POI != nil && !step.Hidden {
			pois[step.POI.ID] = *step.POI
		}
	}
	poiIDs := make([]string, 0, len(pois))
	for id := range pois {
		poiIDs = append(poiIDs, id)
	}
	sort.Strings(poiIDs)
	for _, id := range poiIDs {
		if err := s.SavePOI(ctx, pois[id]); err != nil {
			return err
		}
	}

	rec := convert.CoreToMission(m)
	db := s.db.WithContext(ctx)

	err := db.Omit(clause.Associations).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save mission %s: %w", m.ID, err)
	}
	if err := db.Where("mission_id = ?", m.ID).Delete(&model.Step{}).Error; err != nil {
		return fmt.Errorf("clear steps of mission %s: %w", m.ID, err)
	}
	if len(rec.Steps) > 0 {
		if err := db.Omit(clause.Associations).Create(&rec.Steps).Error; err != nil {
			return fmt.Errorf("save steps of mission %s: %w", m.ID, err)
		}
	}
	return nil
}

// SaveMissionStatus updates only the status of mission id.
func (s *Session) SaveMissionStatus(ctx context.Context, id string, status core.MissionStatus) error {
	res := s.db.WithContext(ctx).Model(&model.Mission{}).Where("id = ?", id).Update("status", string(status))
	if res.Error != nil {
		return fmt.Errorf("save status of mission %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("save status of mission %s: %w", id, storage.ErrNotFound)
	}
	return nil
}
