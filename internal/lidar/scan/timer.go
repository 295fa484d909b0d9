package scan

import (
	"time"

	"github.com/banshee-data/scansim/internal/lidar"
)

// State is the timer's observable lifecycle state.
type State int

const (
	// StateIdle means no scan is in progress.
	StateIdle State = iota
	// StateScanning is held for the duration of a fire callback.
	StateScanning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	default:
		return "unknown"
	}
}

// Timer accumulates fixed simulation ticks and fires once per scan period.
// Time is kept as integer nanoseconds so long runs do not drift.
type Timer struct {
	period  time.Duration
	policy  TimingPolicy
	elapsed time.Duration
	state   State
	fired   uint64
	dropped uint64
}

// NewTimer returns an idle timer with zero accumulated time.
func NewTimer(period time.Duration, policy TimingPolicy) *Timer {
	return &Timer{period: period, policy: policy}
}

// Advance adds tick to the accumulator and calls fire for each whole
// period that has elapsed. A fire error ends the tick early; the failed
// period is still consumed. Non-positive ticks do nothing.
func (t *Timer) Advance(tick time.Duration, fire func() error) (int, error) {
	if tick <= 0 {
		return 0, nil
	}
	t.elapsed += tick

	fired := 0
	for t.elapsed >= t.period {
		if t.policy == TimingCapOnePerTick && fired == 1 {
			skipped := t.elapsed / t.period
			t.elapsed %= t.period
			t.dropped += uint64(skipped)
			lidar.Opsf("scan timer underrun: tick %v spans %d extra periods of %v, dropped", tick, skipped, t.period)
			break
		}

		t.elapsed -= t.period
		t.state = StateScanning
		err := fire()
		t.state = StateIdle
		t.fired++
		fired++
		if err != nil {
			return fired, err
		}
	}
	return fired, nil
}

// State returns StateScanning while a fire callback runs.
func (t *Timer) State() State { return t.state }

// Elapsed returns the time accumulated toward the next scan.
func (t *Timer) Elapsed() time.Duration { return t.elapsed }

// Period returns the scan period.
func (t *Timer) Period() time.Duration { return t.period }

// Fired returns the total number of fire callbacks.
func (t *Timer) Fired() uint64 { return t.fired }

// Dropped returns the number of periods skipped by TimingCapOnePerTick.
func (t *Timer) Dropped() uint64 { return t.dropped }
