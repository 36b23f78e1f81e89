package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bannergress/recalc/internal/config"
	"github.com/bannergress/recalc/internal/picture"
	"github.com/bannergress/recalc/internal/recalc"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreachable() config.InfluxConfig {
	return config.InfluxConfig{
		Enabled:  true,
		Host:     "127.0.0.1",
		Port:     "1",
		Protocol: "http",
		Org:      "bannergress",
		Bucket:   "recalc",
	}
}

func readBackup(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	return string(data)
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop(), filepath.Join(t.TempDir(), "backup.gz"))
	err := m.Connect()
	require.Error(t, err)
	assert.False(t, m.IsValid)
}

func TestConnect_UnreachableUsesBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.gz")
	m := NewManager(unreachable(), zerolog.Nop(), path)

	require.NoError(t, m.Connect())
	assert.False(t, m.IsValid)
	require.NotNil(t, m.BackupWriter)

	m.RecordRecalculation(context.Background(), recalc.Report{
		Trigger: recalc.TriggerChange, Missions: 2, POIs: 1, Banners: 3, Duration: 1500 * time.Microsecond,
	})
	m.RecordGarbageCollection(context.Background(), picture.GCResult{Deleted: 4, Revived: 1})
	require.NoError(t, m.Close())

	content := readBackup(t, path)
	assert.Contains(t, content, "recalculation,")
	assert.Contains(t, content, "trigger=change")
	assert.Contains(t, content, "status=ok")
	assert.Contains(t, content, "banners=3i")
	assert.Contains(t, content, "duration_ms=1.5")
	assert.Contains(t, content, "picture_gc ")
	assert.Contains(t, content, "deleted=4i")
}

func TestWritePoint_NoBackend(t *testing.T) {
	m := NewManager(unreachable(), zerolog.Nop(), "")
	err := m.WritePoint(influxdb2_write.NewPointWithMeasurement("x"))
	assert.Error(t, err)
}

func TestRecalculationPoint(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := RecalculationPoint(recalc.Report{Trigger: recalc.TriggerBackfill, Banners: 1, Err: errors.New("boom")}, ts)

	assert.Equal(t, MeasurementRecalculation, p.Name())
	assert.Equal(t, ts, p.Time())

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, map[string]string{"trigger": "backfill", "status": "error"}, tags)

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, int64(1), fields["banners"])
	assert.Equal(t, int64(0), fields["missions"])
}
