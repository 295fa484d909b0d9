package main

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/scansim/internal/lidar/recorder"
	"github.com/banshee-data/scansim/internal/lidar/scan"
)

func seedStore(t *testing.T, n int) (*recorder.Store, recorder.Run) {
	t.Helper()
	ctx := context.Background()
	store, err := recorder.Open(filepath.Join(t.TempDir(), "scans.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := scan.DefaultConfig()
	cfg.AngularEnd = 3
	run, err := store.StartRun(ctx, "front", cfg, time.Unix(1700000000, 0))
	require.NoError(t, err)

	records := make([]recorder.ScanRecord, n)
	for i := range records {
		records[i] = recorder.ScanRecord{
			RunID:     run.RunID,
			Seq:       uint64(i + 1),
			SimTime:   time.Duration(i+1) * cfg.Period(),
			Ranges:    []float64{1, 2, math.Inf(1), 4},
			Intensity: 47,
		}
	}
	require.NoError(t, store.InsertScans(ctx, records))
	return store, run
}

func TestPlotRun(t *testing.T) {
	store, run := seedStore(t, 5)
	dir := filepath.Join(t.TempDir(), "plots")

	paths, err := plotRun(context.Background(), store, "latest", dir, 2, 0)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, filepath.Join(dir, "scan-"+run.RunID[:8]+"-000001.png"), paths[0])
	assert.Equal(t, filepath.Join(dir, "scan-"+run.RunID[:8]+"-000005.png"), paths[2])

	data, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestPlotRun_Limit(t *testing.T) {
	store, run := seedStore(t, 5)
	paths, err := plotRun(context.Background(), store, run.RunID, t.TempDir(), 1, 2)
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func TestPlotRun_Errors(t *testing.T) {
	store, _ := seedStore(t, 1)
	ctx := context.Background()

	_, err := plotRun(ctx, store, "latest", t.TempDir(), 0, 0)
	assert.Error(t, err)

	_, err = plotRun(ctx, store, "missing", t.TempDir(), 1, 0)
	assert.ErrorIs(t, err, recorder.ErrNoScans)

	empty, err := recorder.Open(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer empty.Close()
	_, err = plotRun(ctx, empty, "latest", t.TempDir(), 1, 0)
	assert.ErrorIs(t, err, recorder.ErrNoScans)
}

func TestListRuns(t *testing.T) {
	store, run := seedStore(t, 1)
	var buf bytes.Buffer
	require.NoError(t, listRuns(context.Background(), store, &buf))
	assert.Contains(t, buf.String(), "RUN")
	assert.Contains(t, buf.String(), run.RunID)
	assert.Contains(t, buf.String(), "front")
}
