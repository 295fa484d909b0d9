package scan

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/scansim/internal/lidar"
	"github.com/banshee-data/scansim/internal/lidar/frame"
	"github.com/banshee-data/scansim/internal/lidar/raycast"
)

// Stats is a point-in-time summary of a sensor's activity.
type Stats struct {
	Scans            uint64        `json:"scans"`
	Failures         uint64        `json:"failures"`
	Dropped          uint64        `json:"dropped"`
	Seq              uint64        `json:"seq"`
	LastBatchLatency time.Duration `json:"last_batch_latency"`
	SimTime          time.Duration `json:"sim_time"`
}

// Option configures a Sensor at construction.
type Option func(*Sensor)

// WithName labels the sensor in logs and recordings.
func WithName(name string) Option {
	return func(s *Sensor) { s.name = name }
}

// WithStats shares a ScanStats accumulator, typically so one logger can
// report several sensors.
func WithStats(stats *lidar.ScanStats) Option {
	return func(s *Sensor) { s.stats = stats }
}

// Sensor is a simulated planar range-finder. Tick must be called from the
// simulation's fixed-step goroutine; Output, Latest and Stats are safe
// from any goroutine.
type Sensor struct {
	name     string
	caster   raycast.Caster
	provider frame.Provider
	stats    *lidar.ScanStats

	// mu serialises Tick, Reconfigure and Close.
	mu       sync.Mutex
	sched    *BatchScheduler
	post     PostProcessor
	timer    *Timer
	out      *OutputBuffer
	simTime  time.Duration
	failing  bool
	closed   bool
	counters Stats
	scanning atomic.Bool

	// meta guards the fields readers need to interpret the output buffer.
	meta  sync.RWMutex
	cfg   Config
	table *DirectionTable
}

// New validates cfg and builds a sensor that casts against caster from the
// pose supplied by provider.
func New(cfg Config, caster raycast.Caster, provider frame.Provider, opts ...Option) (*Sensor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if caster == nil {
		return nil, fmt.Errorf("%w: nil ray caster", ErrInvalidConfig)
	}
	if provider == nil {
		return nil, fmt.Errorf("%w: nil frame provider", ErrInvalidConfig)
	}
	s := &Sensor{
		name:     "lidar",
		caster:   caster,
		provider: provider,
	}
	for _, o := range opts {
		o(s)
	}
	if s.stats == nil {
		s.stats = lidar.NewScanStats()
	}
	s.build(cfg)
	s.out = NewOutputBuffer(s.table.Len(), cfg.Intensity, cfg.ScanRateHz)
	lidar.Opsf("sensor %s: started, %d samples/scan at %.2f Hz, range %.2f-%.2f m", s.name, s.table.Len(), cfg.ScanRateHz, cfg.MinRange, cfg.MaxRange)
	return s, nil
}

func (s *Sensor) build(cfg Config) {
	table := NewDirectionTable(cfg)
	s.meta.Lock()
	s.cfg = cfg
	s.table = table
	s.meta.Unlock()
	s.sched = NewBatchScheduler(s.caster, table, cfg)
	s.post = NewPostProcessor(cfg)
	s.timer = NewTimer(cfg.Period(), cfg.Timing)
}

// Tick advances the sensor by one fixed simulation step of dt and performs
// every scan that falls due. It returns the number of scans attempted.
func (s *Sensor) Tick(ctx context.Context, dt time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	// An in-flight batch always runs to completion.
	scanCtx := context.WithoutCancel(ctx)

	droppedBefore := s.timer.Dropped()
	start := s.simTime
	fired, err := s.timer.Advance(dt, func() error {
		s.scanning.Store(true)
		defer s.scanning.Store(false)
		return s.scan(scanCtx, start+dt-s.timer.Elapsed())
	})
	s.simTime += dt
	if d := s.timer.Dropped() - droppedBefore; d > 0 {
		s.counters.Dropped += d
		s.stats.AddDropped(int(d))
	}
	if err != nil {
		return fired, fmt.Errorf("sensor %s: %w", s.name, err)
	}
	return fired, nil
}

// scan performs one complete measurement cycle stamped at simTime.
func (s *Sensor) scan(ctx context.Context, simTime time.Duration) error {
	pose := frame.Sample(s.provider)
	if err := pose.Validate(); err != nil {
		return s.fail(simTime, err)
	}
	distances, hitMask, err := s.sched.RunScan(ctx, pose.Position, pose.Orientation)
	s.counters.LastBatchLatency = s.sched.LastLatency()
	if err != nil {
		return s.fail(simTime, err)
	}

	ranges, intensities := s.out.Back()
	s.post.Process(distances, hitMask, ranges, intensities)
	seq := s.out.Publish(simTime, false)

	hits := 0
	for i, h := range hitMask {
		if h && ranges[i] == distances[i] {
			hits++
		}
	}
	s.counters.Scans++
	s.counters.Seq = seq
	s.stats.AddScan(len(ranges), hits, s.counters.LastBatchLatency)
	if s.failing {
		s.failing = false
		lidar.Opsf("sensor %s: intersection backend recovered at scan %d", s.name, seq)
	}
	if lidar.TraceEnabled() {
		lidar.Tracef("sensor %s: scan %d at %v pose %v: %d/%d returns in %v", s.name, seq, simTime, pose, hits, len(ranges), s.counters.LastBatchLatency)
	}
	return nil
}

func (s *Sensor) fail(simTime time.Duration, err error) error {
	s.counters.Failures++
	s.stats.AddFailure()
	if !s.failing {
		s.failing = true
		lidar.Opsf("sensor %s: scan failed, applying %s policy: %v", s.name, s.cfg.OnFailure, err)
	}
	switch s.cfg.OnFailure {
	case FailureBlank:
		ranges, intensities := s.out.Back()
		s.post.Blank(ranges, intensities)
		s.counters.Seq = s.out.Publish(simTime, true)
	default:
		s.out.MarkStale()
	}
	return fmt.Errorf("scan at %v: %w", simTime, err)
}

// Reconfigure validates cfg and rebuilds the direction table, batch
// buffers and output buffer for it. The scan timer restarts from zero. On
// error the sensor keeps its previous configuration.
func (s *Sensor) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	old := s.Config()

	table := NewDirectionTable(cfg)
	// Readers must never see a table and a buffer of different sizes.
	s.meta.Lock()
	s.cfg = cfg
	s.table = table
	s.out.Resize(table.Len(), cfg.Intensity, cfg.ScanRateHz)
	s.meta.Unlock()
	s.sched = NewBatchScheduler(s.caster, table, cfg)
	s.post = NewPostProcessor(cfg)
	s.timer = NewTimer(cfg.Period(), cfg.Timing)
	s.failing = false

	lidar.Opsf("sensor %s: reconfigured %d→%d samples/scan, %.2f→%.2f Hz", s.name, old.MeasurementsPerScan(), table.Len(), old.ScanRateHz, cfg.ScanRateHz)
	return nil
}

// Close releases the sensor's scratch buffers. The output buffer remains
// readable. Close is idempotent.
func (s *Sensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.sched.release()
	lidar.Opsf("sensor %s: closed after %d scans (%d failed)", s.name, s.counters.Scans, s.counters.Failures)
	return nil
}

// Latest returns a copy of the current scan together with the direction
// table and configuration that describe it.
func (s *Sensor) Latest() (Scan, *DirectionTable, Config) {
	s.meta.RLock()
	defer s.meta.RUnlock()
	return s.out.Snapshot(), s.table, s.cfg
}

// Output returns the sensor's output buffer.
func (s *Sensor) Output() *OutputBuffer { return s.out }

// Name returns the sensor label.
func (s *Sensor) Name() string { return s.name }

// Config returns the active configuration.
func (s *Sensor) Config() Config {
	s.meta.RLock()
	defer s.meta.RUnlock()
	return s.cfg
}

// Table returns the active direction table.
func (s *Sensor) Table() *DirectionTable {
	s.meta.RLock()
	defer s.meta.RUnlock()
	return s.table
}

// ScanRateHz returns the configured scan rate.
func (s *Sensor) ScanRateHz() float64 { return s.out.ScanRateHz() }

// ScanStats returns the shared statistics accumulator.
func (s *Sensor) ScanStats() *lidar.ScanStats { return s.stats }

// Stats returns the sensor's lifetime counters.
func (s *Sensor) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.counters
	st.SimTime = s.simTime
	return st
}

// State returns StateScanning while a scan is in progress.
func (s *Sensor) State() State {
	if s.scanning.Load() {
		return StateScanning
	}
	return StateIdle
}
