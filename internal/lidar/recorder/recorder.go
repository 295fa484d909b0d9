package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/scansim/internal/lidar"
	"github.com/banshee-data/scansim/internal/lidar/scan"
)

// DefaultFlushSize is the number of scans buffered before a write.
const DefaultFlushSize = 32

// Source is anything that can copy out its latest scan.
type Source interface {
	ReadInto(dst *scan.Scan)
}

// Recorder samples a Source at a fixed rate of simulation time and writes
// every new scan to a Store. Scans that have not changed since the last
// sample are skipped.
type Recorder struct {
	store     *Store
	runID     string
	src       Source
	timer     *scan.Timer
	flushSize int

	buf      scan.Scan
	lastSeq  uint64
	pending  []ScanRecord
	written  int
	skipped  int
	lastErr  error
	disabled bool
}

// New returns a recorder that samples src rateHz times per simulated
// second into run runID.
func New(store *Store, runID string, src Source, rateHz float64) (*Recorder, error) {
	if rateHz <= 0 {
		return nil, fmt.Errorf("record rate must be positive, got %v", rateHz)
	}
	period := time.Duration(float64(time.Second) / rateHz)
	if period <= 0 {
		return nil, fmt.Errorf("record rate %v Hz is too high", rateHz)
	}
	return &Recorder{
		store:     store,
		runID:     runID,
		src:       src,
		timer:     scan.NewTimer(period, scan.TimingCatchUp),
		flushSize: DefaultFlushSize,
	}, nil
}

// SetFlushSize changes how many scans are buffered between writes.
func (r *Recorder) SetFlushSize(n int) {
	if n < 1 {
		n = 1
	}
	r.flushSize = n
}

// RunID returns the run being recorded.
func (r *Recorder) RunID() string { return r.runID }

// Written returns the number of scans stored so far.
func (r *Recorder) Written() int { return r.written }

// Tick advances the recorder by dt of simulation time. Once the recorder
// is closed or has failed, Tick does nothing.
func (r *Recorder) Tick(ctx context.Context, dt time.Duration) error {
	if r.disabled {
		return nil
	}
	if _, err := r.timer.Advance(dt, r.sample); err != nil {
		return err
	}
	if len(r.pending) >= r.flushSize {
		return r.Flush(ctx)
	}
	return nil
}

func (r *Recorder) sample() error {
	r.src.ReadInto(&r.buf)
	if r.buf.Seq == 0 || r.buf.Seq == r.lastSeq {
		r.skipped++
		return nil
	}
	r.lastSeq = r.buf.Seq
	intensity := 0.0
	if len(r.buf.Intensities) > 0 {
		intensity = r.buf.Intensities[0]
	}
	r.pending = append(r.pending, ScanRecord{
		RunID:     r.runID,
		Seq:       r.buf.Seq,
		SimTime:   r.buf.SimTime,
		Ranges:    append([]float64(nil), r.buf.Ranges...),
		Intensity: intensity,
		Failed:    r.buf.Failed,
		Stale:     r.buf.Stale,
	})
	return nil
}

// Flush writes buffered scans. After a write failure the recorder stops
// recording and keeps returning the error.
func (r *Recorder) Flush(ctx context.Context) error {
	if r.disabled {
		return r.lastErr
	}
	if len(r.pending) == 0 {
		return nil
	}
	n := len(r.pending)
	if err := r.store.InsertScans(ctx, r.pending); err != nil {
		r.disabled = true
		r.lastErr = fmt.Errorf("recorder %s: %w", r.runID, err)
		lidar.Opsf("recorder %s: disabled after write failure: %v", r.runID, err)
		return r.lastErr
	}
	r.written += n
	r.pending = r.pending[:0]
	lidar.Diagf("recorder %s: flushed %d scans (%d total, %d unchanged samples skipped)", r.runID, n, r.written, r.skipped)
	return nil
}

// Close flushes any buffered scans and stops recording. Close is
// idempotent.
func (r *Recorder) Close(ctx context.Context) error {
	if r.disabled {
		return r.lastErr
	}
	err := r.Flush(ctx)
	r.disabled = true
	if err == nil {
		lidar.Opsf("recorder %s: closed after %d scans", r.runID, r.written)
	}
	return err
}
