package recorder

import (
	"context"
	"math"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/scansim/internal/lidar/scan"
	"github.com/banshee-data/scansim/internal/testutil"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "scans.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_MigratesToLatest(t *testing.T) {
	s := openTestStore(t)
	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Re-running is a no-op.
	require.NoError(t, s.MigrateUp())
}

func TestStore_RunsAndScans(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.LatestRun(ctx)
	assert.ErrorIs(t, err, ErrNoScans)

	cfg := scan.DefaultConfig()
	first, err := s.StartRun(ctx, "front", cfg, time.Unix(100, 0))
	require.NoError(t, err)
	second, err := s.StartRun(ctx, "rear", cfg, time.Unix(200, 0))
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.RunID, latest.RunID)
	assert.Equal(t, "rear", latest.SensorName)
	assert.Equal(t, cfg, latest.Config)

	_, err = s.Scans(ctx, first.RunID)
	assert.ErrorIs(t, err, ErrNoScans)

	inf := math.Inf(1)
	records := []ScanRecord{
		{RunID: first.RunID, Seq: 1, SimTime: 142 * time.Millisecond, Ranges: []float64{1.5, inf, 3.25}, Intensity: 47},
		{RunID: first.RunID, Seq: 2, SimTime: 285 * time.Millisecond, Ranges: []float64{inf, inf, inf}, Intensity: 47, Failed: true},
	}
	require.NoError(t, s.InsertScans(ctx, records))

	got, err := s.Scans(ctx, first.RunID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, records[0], got[0])
	assert.True(t, got[1].Failed)
	testutil.AssertAllInf(t, got[1].Ranges)

	run, err := s.Run(ctx, first.RunID)
	require.NoError(t, err)
	assert.Equal(t, "front", run.SensorName)
	assert.True(t, run.Started.Equal(time.Unix(100, 0)))
	_, err = s.Run(ctx, "missing")
	assert.ErrorIs(t, err, ErrNoScans)
}

func TestStore_Messages(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	cfg := scan.DefaultConfig()
	cfg.AngularEnd = 2
	run, err := s.StartRun(ctx, "front", cfg, time.Unix(0, 0))
	require.NoError(t, err)
	require.NoError(t, s.InsertScans(ctx, []ScanRecord{
		{RunID: run.RunID, Seq: 7, SimTime: time.Second, Ranges: []float64{1, math.Inf(1), 2}, Intensity: 47, Stale: true},
	}))

	msgs, err := s.Messages(ctx, run.RunID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	m := msgs[0]
	assert.Equal(t, uint64(7), m.Seq)
	assert.Equal(t, time.Second, m.Stamp)
	assert.Equal(t, "front", m.FrameID)
	assert.True(t, m.Stale)
	assert.Equal(t, []float32{47, 47, 47}, m.Intensities)
	assert.InDelta(t, 2*math.Pi/180, m.AngleMax, 1e-12)
	assert.Equal(t, 2, m.Valid())

	_, err = s.Messages(ctx, "missing")
	assert.ErrorIs(t, err, ErrNoScans)
}

// fakeSource publishes a new scan every time bump is called.
type fakeSource struct {
	scan scan.Scan
}

func (f *fakeSource) bump(r float64) {
	f.scan.Seq++
	f.scan.SimTime += 100 * time.Millisecond
	f.scan.Ranges = []float64{r, r}
	f.scan.Intensities = []float64{47, 47}
}

func (f *fakeSource) ReadInto(dst *scan.Scan) {
	dst.Seq = f.scan.Seq
	dst.SimTime = f.scan.SimTime
	dst.Ranges = append(dst.Ranges[:0], f.scan.Ranges...)
	dst.Intensities = append(dst.Intensities[:0], f.scan.Intensities...)
}

func TestRecorder_SamplesAtRateAndSkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	run, err := s.StartRun(ctx, "front", scan.DefaultConfig(), time.Now())
	require.NoError(t, err)

	src := &fakeSource{}
	rec, err := New(s, run.RunID, src, 10)
	require.NoError(t, err)
	rec.SetFlushSize(2)

	// Nothing published yet.
	require.NoError(t, rec.Tick(ctx, 100*time.Millisecond))

	src.bump(1)
	require.NoError(t, rec.Tick(ctx, 100*time.Millisecond))
	// Same scan again: skipped.
	require.NoError(t, rec.Tick(ctx, 100*time.Millisecond))
	// Between samples: nothing happens.
	src.bump(2)
	require.NoError(t, rec.Tick(ctx, 50*time.Millisecond))
	assert.Equal(t, 0, rec.Written())
	require.NoError(t, rec.Tick(ctx, 50*time.Millisecond))
	assert.Equal(t, 2, rec.Written())

	src.bump(3)
	require.NoError(t, rec.Tick(ctx, 100*time.Millisecond))
	require.NoError(t, rec.Close(ctx))
	require.NoError(t, rec.Close(ctx))
	assert.Equal(t, 3, rec.Written())

	got, err := s.Scans(ctx, run.RunID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, want := range []float64{1, 2, 3} {
		assert.Equal(t, uint64(i+1), got[i].Seq)
		assert.Equal(t, []float64{want, want}, got[i].Ranges)
	}
}

func TestRecorder_DisabledAfterWriteFailure(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	src := &fakeSource{}
	// Unknown run id violates the foreign key.
	rec, err := New(s, "missing-run", src, 10)
	require.NoError(t, err)
	rec.SetFlushSize(1)

	src.bump(1)
	err = rec.Tick(ctx, 100*time.Millisecond)
	require.Error(t, err)

	src.bump(2)
	assert.NoError(t, rec.Tick(ctx, 100*time.Millisecond))
	assert.Error(t, rec.Flush(ctx))
	assert.Equal(t, 0, rec.Written())
}

func TestNew_RejectsBadRate(t *testing.T) {
	_, err := New(nil, "x", &fakeSource{}, 0)
	assert.Error(t, err)
}

func TestAttachAdminRoutes(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	_, err := s.StartRun(ctx, "front", scan.DefaultConfig(), time.Now())
	require.NoError(t, err)

	mux := http.NewServeMux()
	require.NoError(t, s.AttachAdminRoutes(mux))

	req := testutil.NewTestRequest(http.MethodGet, "/debug/lidar-runs")
	req.RemoteAddr = "127.0.0.1:1234"
	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Contains(t, rec.Body.String(), `"sensor_name":"front"`)
}
