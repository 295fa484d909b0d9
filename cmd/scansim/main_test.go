package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/scansim/internal/lidar/frame"
	"github.com/banshee-data/scansim/internal/lidar/recorder"
)

func fastOptions(t *testing.T) options {
	t.Helper()
	return options{
		dbFile:     filepath.Join(t.TempDir(), "scans.db"),
		steps:      50,
		realtime:   false,
		replayRate: 1,
	}
}

func TestRun_FlagErrors(t *testing.T) {
	ctx := context.Background()
	assert.ErrorContains(t, run(ctx, options{realtime: false}), "requires -steps")
	assert.ErrorContains(t, run(ctx, options{realtime: true, replayRun: "latest"}), "requires -db")
	assert.Error(t, run(ctx, options{realtime: true, configPath: "missing.json"}))
	assert.Error(t, run(ctx, options{steps: 1, scenePath: "missing.json"}))
}

func TestRun_RecordsThenReplays(t *testing.T) {
	ctx := context.Background()
	opts := fastOptions(t)
	require.NoError(t, run(ctx, opts))

	store, err := recorder.Open(opts.dbFile)
	require.NoError(t, err)
	latest, err := store.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "lidar", latest.SensorName)
	scans, err := store.Scans(ctx, latest.RunID)
	require.NoError(t, err)
	require.Len(t, scans, 7)
	// The north wall of the demo room is straight ahead.
	assert.InDelta(t, roomHalfSize, scans[0].Ranges[0], 1e-9)
	require.NoError(t, store.Close())

	opts.replayRun = "latest"
	opts.replayRate = 0
	opts.grpcListen = "127.0.0.1:0"
	assert.NoError(t, run(ctx, opts))

	opts.replayRun = "no-such-run"
	assert.ErrorIs(t, run(ctx, opts), recorder.ErrNoScans)
}

func TestRun_ConfigAndSceneFiles(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "scansim.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"sensor_name": "front", "speed": 1, "record_rate_hz": 14}`), 0644))

	opts := fastOptions(t)
	opts.configPath = cfgPath
	opts.scenePath = filepath.Join("..", "..", "config", "scene.example.json")
	require.NoError(t, run(context.Background(), opts))

	store, err := recorder.Open(opts.dbFile)
	require.NoError(t, err)
	defer store.Close()
	latest, err := store.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "front", latest.SensorName)
	scans, err := store.Scans(context.Background(), latest.RunID)
	require.NoError(t, err)
	// Sampling faster than the scan rate records each scan once.
	assert.Len(t, scans, 7)
	// The vehicle closes on the north wall at 1 m/s.
	assert.Less(t, scans[6].Ranges[0], scans[0].Ranges[0])
}

func TestRun_RealtimeStepLimit(t *testing.T) {
	opts := options{steps: 5, realtime: true}
	assert.NoError(t, run(context.Background(), opts))
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, run(ctx, options{realtime: true}))
}

func TestDefaultScene(t *testing.T) {
	s := defaultScene()
	assert.Equal(t, 7, s.Len())
}

func TestAnimateHead(t *testing.T) {
	head := frame.NewHeadAnimator(5)
	hook := animateHead(head)
	// Five 20 ms steps are half a turn at 5 Hz.
	for range 5 {
		require.NoError(t, hook.Tick(context.Background(), 20*time.Millisecond))
	}
	assert.InDelta(t, 180.0, head.Angle(), 1e-9)
}
