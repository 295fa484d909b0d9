package sim

import (
	"context"
	"time"

	"github.com/banshee-data/scansim/internal/lidar"
	"github.com/banshee-data/scansim/internal/timeutil"
)

// DefaultStatsInterval is how often a paced run logs sensor statistics.
const DefaultStatsInterval = 10 * time.Second

// Runner drives a World.
type Runner struct {
	world         *World
	clock         timeutil.Clock
	statsInterval time.Duration
}

// NewRunner returns a runner for w pacing against clock.
func NewRunner(w *World, clock timeutil.Clock) *Runner {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Runner{world: w, clock: clock, statsInterval: DefaultStatsInterval}
}

// SetStatsInterval changes how often Run logs statistics. Zero disables
// logging.
func (r *Runner) SetStatsInterval(d time.Duration) {
	r.statsInterval = d
}

// RunSteps runs n steps as fast as possible. It stops early, returning the
// context error, if ctx is cancelled.
func (r *Runner) RunSteps(ctx context.Context, n int) error {
	start := r.clock.Now()
	for i := 0; i < n; i++ {
		if err := r.world.Step(ctx); err != nil {
			return err
		}
	}
	st := r.world.Stats()
	lidar.Opsf("sim: ran %d steps (%v simulated) in %v, %d scans", n, st.SimTime, r.clock.Since(start), st.Scans)
	r.world.LogStats()
	return nil
}

// Run steps the world once per tick of wall-clock time until ctx is
// cancelled. A step that overruns its tick delays the next one; ticks are
// not queued, so the simulation slows rather than bursts.
func (r *Runner) Run(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.world.Tick())
	defer ticker.Stop()

	var statsC <-chan time.Time
	if r.statsInterval > 0 {
		stats := r.clock.NewTicker(r.statsInterval)
		defer stats.Stop()
		statsC = stats.C()
	}

	lidar.Opsf("sim: running in real time, tick %v", r.world.Tick())
	for {
		select {
		case <-ctx.Done():
			lidar.Opsf("sim: stopped at %v simulated", r.world.SimTime())
			r.world.LogStats()
			return nil
		case <-ticker.C():
			if err := r.world.Step(ctx); err != nil && ctx.Err() == nil {
				return err
			}
		case <-statsC:
			r.world.LogStats()
		}
	}
}
