// Package picture persists composed banner pictures keyed by fingerprint.
package picture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bannergress/recalc/internal/model"
	"github.com/bannergress/recalc/internal/model/convert"
	"github.com/bannergress/recalc/pkg/core"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when no picture exists for a fingerprint
var ErrNotFound = errors.New("rendered image not found")

const referencedByBanner = "EXISTS (SELECT 1 FROM banners WHERE banners.picture_fingerprint = rendered_images.fingerprint)"

// GCResult reports what a garbage collection pass did.
type GCResult struct {
	Deleted int64
	Revived int64
}

// Store reads and writes rendered images through a gorm handle.
// Inside a unit of work the handle is the open transaction.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore creates a Store bound to db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// WithDB returns a copy of the store bound to tx.
func (s *Store) WithDB(tx *gorm.DB) *Store {
	return &Store{db: tx, now: s.now}
}

// WithClock returns a copy of the store that reads the current time from now.
func (s *Store) WithClock(now func() time.Time) *Store {
	return &Store{db: s.db, now: now}
}

// Lookup returns the image stored under fp, or nil if there is none.
func (s *Store) Lookup(ctx context.Context, fp string) (*core.RenderedImage, error) {
	var rec model.RenderedImage
	err := s.db.WithContext(ctx).Where("fingerprint = ?", fp).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup rendered image %s: %w", fp, err)
	}
	img := convert.RenderedImageToCore(rec)
	return &img, nil
}

// Put stores data under fp. When a record already exists its bytes are kept,
// its expiry is cleared and the stored record is returned.
func (s *Store) Put(ctx context.Context, fp string, data []byte) (*core.RenderedImage, error) {
	rec := model.RenderedImage{Fingerprint: fp, Data: data}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fingerprint"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"expiration": nil}),
	}).Create(&rec).Error
	if err != nil {
		return nil, fmt.Errorf("store rendered image %s: %w", fp, err)
	}

	stored, err := s.Lookup(ctx, fp)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("store rendered image %s: %w", fp, ErrNotFound)
	}
	return stored, nil
}

// Reuse clears the expiry of the image stored under fp.
func (s *Store) Reuse(ctx context.Context, fp string) error {
	res := s.db.WithContext(ctx).Model(&model.RenderedImage{}).
		Where("fingerprint = ?", fp).
		Update("expiration", nil)
	if res.Error != nil {
		return fmt.Errorf("reuse rendered image %s: %w", fp, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("reuse rendered image %s: %w", fp, ErrNotFound)
	}
	return nil
}

// MarkExpired schedules the image stored under fp for deletion after ttl.
// Missing images are ignored.
func (s *Store) MarkExpired(ctx context.Context, fp string, ttl time.Duration) error {
	if fp == "" {
		return nil
	}
	expiration := s.now().Add(ttl).UTC()
	err := s.db.WithContext(ctx).Model(&model.RenderedImage{}).
		Where("fingerprint = ?", fp).
		Update("expiration", expiration).Error
	if err != nil {
		return fmt.Errorf("expire rendered image %s: %w", fp, err)
	}
	return nil
}

// GarbageCollect deletes every image whose expiry has passed and that no banner
// references. Expired images that are referenced again get their expiry cleared.
func (s *Store) GarbageCollect(ctx context.Context, now time.Time) (GCResult, error) {
	var result GCResult
	now = now.UTC()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.RenderedImage{}).
			Where("expiration IS NOT NULL AND expiration <= ?", now).
			Where(referencedByBanner).
			Update("expiration", nil)
		if res.Error != nil {
			return res.Error
		}
		result.Revived = res.RowsAffected

		res = tx.Where("expiration IS NOT NULL AND expiration <= ?", now).
			Where("NOT " + referencedByBanner).
			Delete(&model.RenderedImage{})
		if res.Error != nil {
			return res.Error
		}
		result.Deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return GCResult{}, fmt.Errorf("garbage collect rendered images: %w", err)
	}
	return result, nil
}

// Get returns the bytes of the image stored under fp.
func (s *Store) Get(ctx context.Context, fp string) ([]byte, error) {
	img, err := s.Lookup(ctx, fp)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, ErrNotFound
	}
	return img.Data, nil
}
