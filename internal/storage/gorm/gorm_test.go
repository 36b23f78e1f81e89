package gormstorage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bannergress/recalc/internal/model"
	"github.com/bannergress/recalc/internal/storage"
	"github.com/bannergress/recalc/pkg/core"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.DatabaseModels...))
	return db
}

func poi(id string, typ core.POIType, lat, long float64) *core.POI {
	return &core.POI{ID: id, Title: id, Type: typ, Location: &core.Location{Latitude: lat, Longitude: long}}
}

func seed(t *testing.T, s *Session) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.SaveMission(ctx, core.Mission{
		ID: "m1", Title: "One", Picture: "http://img/1", Status: core.StatusPublished,
		Steps: []core.Step{
			{Index: 0, POI: poi("p1", core.POIPortal, 1, 1)},
			{Index: 1, Hidden: true},
			{Index: 2, POI: poi("p2", core.POIPortal, 1.01, 1)},
		},
	}))
	require.NoError(t, s.SaveMission(ctx, core.Mission{
		ID: "m2", Title: "Two", Picture: "http://img/2", Status: core.StatusDisabled,
		Steps: []core.Step{{Index: 0, POI: poi("p3", core.POIUnavailable, 2, 2)}},
	}))
	require.NoError(t, s.SaveMission(ctx, core.Mission{ID: "m3", Status: core.StatusPublished}))

	four := 4
	require.NoError(t, s.SaveBanner(ctx, &core.Banner{
		ID: "b1", Title: "First", Width: 6, NumberOfSlots: 3,
		Missions:     map[int]*core.Mission{0: {ID: "m1"}, 1: {ID: "m2"}},
		Placeholders: map[int]bool{2: true},
		Comments:     []core.Comment{{Overall: &four}},
	}))
	require.NoError(t, s.SaveBanner(ctx, &core.Banner{
		ID: "b2", Title: "Second", Width: 1, NumberOfSlots: 1,
		Missions: map[int]*core.Mission{0: {ID: "m2"}},
	}))
	require.NoError(t, s.SaveBanner(ctx, &core.Banner{
		ID: "b3", Title: "Third", Width: 1, NumberOfSlots: 1,
		Missions: map[int]*core.Mission{0: {ID: "m3"}},
	}))
}

func TestBannersByID_LoadsSlots(t *testing.T) {
	s := NewSession(setupTestDB(t))
	seed(t, s)

	banners, err := s.BannersByID(context.Background(), []string{"b1", "missing"})
	require.NoError(t, err)
	require.Len(t, banners, 1)

	b := banners[0]
	assert.Equal(t, "First", b.Title)
	assert.Equal(t, 3, b.NumberOfSlots)
	require.Len(t, b.Missions, 2)
	assert.True(t, b.Placeholders[2])

	m1 := b.Missions[0]
	assert.Equal(t, core.StatusPublished, m1.Status)
	assert.Equal(t, "http://img/1", m1.Picture)
	require.Len(t, m1.Steps, 3)
	require.NotNil(t, m1.Steps[0].POI)
	assert.Equal(t, "p1", m1.Steps[0].POI.ID)
	assert.Equal(t, 1.0, m1.Steps[0].POI.Location.Latitude)
	assert.True(t, m1.Steps[1].Hidden)
	assert.Nil(t, m1.Steps[1].POI)
	assert.Equal(t, "p2", m1.Steps[2].POI.ID)

	assert.Equal(t, core.POIUnavailable, b.Missions[1].Steps[0].POI.Type)

	require.Len(t, b.Comments, 1)
	assert.NotEmpty(t, b.Comments[0].ID, "comment IDs are generated")
	assert.Equal(t, 4, *b.Comments[0].Overall)
}

func TestSaveBanner_GeneratesID(t *testing.T) {
	s := NewSession(setupTestDB(t))
	b := &core.Banner{Title: "new", Width: 6}

	require.NoError(t, s.SaveBanner(context.Background(), b))
	assert.Len(t, b.ID, 36)

	banners, err := s.BannersByID(context.Background(), []string{b.ID})
	require.NoError(t, err)
	assert.Len(t, banners, 1)
}

func TestSaveBanner_UpdateReplacesSlotsKeepsDerived(t *testing.T) {
	s := NewSession(setupTestDB(t))
	seed(t, s)
	ctx := context.Background()

	banners, err := s.BannersByID(ctx, []string{"b3"})
	require.NoError(t, err)
	b := banners[0]
	b.Online = true
	b.LengthMeters = 123
	require.NoError(t, s.SaveDerived(ctx, b))

	require.NoError(t, s.SaveBanner(ctx, &core.Banner{
		ID: "b3", Title: "Renamed", Width: 2, NumberOfSlots: 2,
		Missions:     map[int]*core.Mission{1: {ID: "m1"}},
		Placeholders: map[int]bool{0: true},
	}))

	banners, err = s.BannersByID(ctx, []string{"b3"})
	require.NoError(t, err)
	b = banners[0]
	assert.Equal(t, "Renamed", b.Title)
	assert.Equal(t, 2, b.Width)
	assert.Equal(t, "m1", b.Missions[1].ID)
	assert.NotContains(t, b.Missions, 0)
	assert.True(t, b.Placeholders[0])
	assert.True(t, b.Online, "derived attributes survive an update")
	assert.Equal(t, 123, b.LengthMeters)
}

func TestBannersByMissions(t *testing.T) {
	s := NewSession(setupTestDB(t))
	seed(t, s)
	ctx := context.Background()

	banners, err := s.BannersByMissions(ctx, []string{"m2"})
	require.NoError(t, err)
	require.Len(t, banners, 2)
	assert.Equal(t, "b1", banners[0].ID)
	assert.Equal(t, "b2", banners[1].ID)

	banners, err = s.BannersByMissions(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, banners)

	banners, err = s.BannersByMissions(ctx, []string{"unknown"})
	require.NoError(t, err)
	assert.Empty(t, banners)
}

func TestBannersByPOIs(t *testing.T) {
	s := NewSession(setupTestDB(t))
	seed(t, s)
	ctx := context.Background()

	banners, err := s.BannersByPOIs(ctx, []string{"p2"})
	require.NoError(t, err)
	require.Len(t, banners, 1)
	assert.Equal(t, "b1", banners[0].ID)

	banners, err = s.BannersByPOIs(ctx, []string{"p1", "p3"})
	require.NoError(t, err)
	require.Len(t, banners, 2, "each banner once")
}

func TestSaveMission_ReplacesSteps(t *testing.T) {
	s := NewSession(setupTestDB(t))
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.SaveMission(ctx, core.Mission{
		ID: "m1", Status: core.StatusDisabled,
		Steps: []core.Step{{Index: 0, POI: poi("p9", core.POIPortal, 9, 9)}},
	}))

	banners, err := s.BannersByPOIs(ctx, []string{"p2"})
	require.NoError(t, err)
	assert.Empty(t, banners, "old steps are gone")

	banners, err = s.BannersByPOIs(ctx, []string{"p9"})
	require.NoError(t, err)
	require.Len(t, banners, 1)
	assert.Equal(t, core.StatusDisabled, banners[0].Missions[0].Status)
}

func TestSaveMissionStatus(t *testing.T) {
	db := setupTestDB(t)
	s := NewSession(db)
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.SaveMissionStatus(ctx, "m1", core.StatusDisabled))

	var rec model.Mission
	require.NoError(t, db.Preload("Steps").Where("id = ?", "m1").Take(&rec).Error)
	assert.Equal(t, "disabled", rec.Status)
	assert.Len(t, rec.Steps, 3, "steps untouched")

	err := s.SaveMissionStatus(ctx, "missing", core.StatusDisabled)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSavePOI_Upsert(t *testing.T) {
	db := setupTestDB(t)
	s := NewSession(db)
	ctx := context.Background()

	require.NoError(t, s.SavePOI(ctx, *poi("p1", core.POIPortal, 1, 1)))
	require.NoError(t, s.SavePOI(ctx, core.POI{ID: "p1", Type: core.POIUnavailable}))

	var rec model.POI
	require.NoError(t, db.Where("id = ?", "p1").Take(&rec).Error)
	assert.Equal(t, "unavailable", rec.Type)
	assert.Nil(t, rec.Latitude)
}

func TestSaveDerived(t *testing.T) {
	s := NewSession(setupTestDB(t))
	seed(t, s)
	ctx := context.Background()

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 2)
	overall := 4.5
	banners, err := s.BannersByID(ctx, []string{"b2"})
	require.NoError(t, err)
	b := banners[0]
	b.Online = true
	b.LengthMeters = 1500
	b.StartLocation = &core.Location{Latitude: 2, Longitude: 2}
	b.Places = []core.Place{{ID: "x", Type: core.PlaceCountry, Name: "X"}}
	b.EventStart, b.EventEnd = &start, &end
	b.Ratings.Overall = &overall
	b.Picture = "0123456789abcdef0123456789abcdef"

	require.NoError(t, s.SaveDerived(ctx, b))

	banners, err = s.BannersByID(ctx, []string{"b2"})
	require.NoError(t, err)
	got := banners[0]
	assert.True(t, got.Online)
	assert.Equal(t, 1500, got.LengthMeters)
	assert.Equal(t, b.StartLocation, got.StartLocation)
	assert.Equal(t, b.Places, got.Places)
	require.NotNil(t, got.EventStart)
	assert.True(t, got.EventStart.Equal(start))
	assert.True(t, got.EventEnd.Equal(end))
	assert.Equal(t, 4.5, *got.Ratings.Overall)
	assert.Nil(t, got.Ratings.Accessibility)
	assert.Equal(t, b.Picture, got.Picture)
	assert.Equal(t, "Second", got.Title, "authoring fields untouched")

	// clearing works as well
	got.StartLocation = nil
	got.EventStart, got.EventEnd = nil, nil
	got.Online = false
	require.NoError(t, s.SaveDerived(ctx, got))
	banners, err = s.BannersByID(ctx, []string{"b2"})
	require.NoError(t, err)
	assert.Nil(t, banners[0].StartLocation)
	assert.Nil(t, banners[0].EventStart)
	assert.False(t, banners[0].Online)
}

func TestSaveDerived_UnknownBanner(t *testing.T) {
	s := NewSession(setupTestDB(t))
	err := s.SaveDerived(context.Background(), &core.Banner{ID: "missing"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteBanner_ExpiresPicture(t *testing.T) {
	s := NewSession(setupTestDB(t))
	seed(t, s)
	ctx := context.Background()

	_, err := s.Pictures().Put(ctx, "fp", []byte("x"))
	require.NoError(t, err)
	banners, err := s.BannersByID(ctx, []string{"b2"})
	require.NoError(t, err)
	banners[0].Picture = "fp"
	require.NoError(t, s.SaveDerived(ctx, banners[0]))

	require.NoError(t, s.DeleteBanner(ctx, "b2", time.Hour))

	banners, err = s.BannersByID(ctx, []string{"b2"})
	require.NoError(t, err)
	assert.Empty(t, banners)

	img, err := s.Pictures().Lookup(ctx, "fp")
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.NotNil(t, img.ExpiresAt)

	banners, err = s.BannersByMissions(ctx, []string{"m2"})
	require.NoError(t, err)
	require.Len(t, banners, 1, "slot rows of the deleted banner are gone")
	assert.Equal(t, "b1", banners[0].ID)
}

func TestDeleteBanner_Unknown(t *testing.T) {
	s := NewSession(setupTestDB(t))
	err := s.DeleteBanner(context.Background(), "missing", time.Hour)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTransactor_CommitAndRollback(t *testing.T) {
	db := setupTestDB(t)
	tr := NewTransactor(db)
	ctx := context.Background()

	err := tr.Transaction(ctx, func(uow storage.UnitOfWork) error {
		return uow.Missions().SavePOI(ctx, *poi("kept", core.POIPortal, 0, 0))
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = tr.Transaction(ctx, func(uow storage.UnitOfWork) error {
		require.NoError(t, uow.Missions().SavePOI(ctx, *poi("dropped", core.POIPortal, 0, 0)))
		_, err := uow.Pictures().Put(ctx, "fp", []byte("x"))
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, db.Model(&model.POI{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, db.Model(&model.RenderedImage{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}
