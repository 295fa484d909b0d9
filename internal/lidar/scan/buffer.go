package scan

import (
	"math"
	"sync"
	"time"
)

// Scan is one published measurement set. Ranges[i] and Intensities[i]
// belong to the same scan and the same sample angle.
type Scan struct {
	Seq         uint64        `json:"seq"`
	SimTime     time.Duration `json:"sim_time"`
	Ranges      []float64     `json:"ranges"`
	Intensities []float64     `json:"intensities"`
	// Failed marks a blank scan published because the backend failed.
	Failed bool `json:"failed"`
	// Stale marks a scan that has outlived at least one failed period.
	Stale bool `json:"stale"`
}

type slot struct {
	ranges      []float64
	intensities []float64
	seq         uint64
	simTime     time.Duration
	failed      bool
}

func newSlot(n int, intensity float64) slot {
	s := slot{ranges: make([]float64, n), intensities: make([]float64, n)}
	inf := math.Inf(1)
	for i := range s.ranges {
		s.ranges[i] = inf
		s.intensities[i] = intensity
	}
	return s
}

// OutputBuffer is a double-buffered store of the latest scan. A single
// writer fills the back slot without locking and publishes by swapping;
// any number of readers copy the front slot.
type OutputBuffer struct {
	mu     sync.RWMutex
	slots  [2]slot
	front  int
	seq    uint64
	stale  bool
	rateHz float64
}

// NewOutputBuffer returns a buffer of n samples, initially all +Inf.
func NewOutputBuffer(n int, intensity, rateHz float64) *OutputBuffer {
	b := &OutputBuffer{rateHz: rateHz}
	b.slots[0] = newSlot(n, intensity)
	b.slots[1] = newSlot(n, intensity)
	return b
}

// back returns the slot the writer may fill. Only the publishing
// goroutine may call it.
func (b *OutputBuffer) back() *slot {
	return &b.slots[1-b.front]
}

// Back returns the writer's range and intensity arrays.
func (b *OutputBuffer) Back() (ranges, intensities []float64) {
	s := b.back()
	return s.ranges, s.intensities
}

// Publish makes the back slot current and returns its sequence number.
func (b *OutputBuffer) Publish(simTime time.Duration, failed bool) uint64 {
	bk := b.back()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	bk.seq = b.seq
	bk.simTime = simTime
	bk.failed = failed
	b.front = 1 - b.front
	b.stale = false
	return b.seq
}

// MarkStale flags the current scan as outdated without replacing it.
func (b *OutputBuffer) MarkStale() {
	b.mu.Lock()
	b.stale = true
	b.mu.Unlock()
}

// Resize replaces both slots with fresh n-sample arrays. The sequence
// number carries over so it never moves backwards. Only the publishing
// goroutine may call it.
func (b *OutputBuffer) Resize(n int, intensity, rateHz float64) {
	fresh := [2]slot{newSlot(n, intensity), newSlot(n, intensity)}
	b.mu.Lock()
	defer b.mu.Unlock()
	fresh[0].seq = b.seq
	fresh[0].simTime = b.slots[b.front].simTime
	b.slots = fresh
	b.front = 0
	b.stale = false
	b.rateHz = rateHz
}

// CurrentRangeArray returns a copy of the latest ranges.
func (b *OutputBuffer) CurrentRangeArray() []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]float64(nil), b.slots[b.front].ranges...)
}

// CurrentIntensityArray returns a copy of the latest intensities.
func (b *OutputBuffer) CurrentIntensityArray() []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]float64(nil), b.slots[b.front].intensities...)
}

// Snapshot returns a copy of the latest scan.
func (b *OutputBuffer) Snapshot() Scan {
	var s Scan
	b.ReadInto(&s)
	return s
}

// ReadInto copies the latest scan into dst, reusing dst's slices when they
// have enough capacity.
func (b *OutputBuffer) ReadInto(dst *Scan) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	f := &b.slots[b.front]
	dst.Seq = f.seq
	dst.SimTime = f.simTime
	dst.Failed = f.failed
	dst.Stale = b.stale
	dst.Ranges = append(dst.Ranges[:0], f.ranges...)
	dst.Intensities = append(dst.Intensities[:0], f.intensities...)
}

// Seq returns the sequence number of the latest published scan; zero
// before the first publish.
func (b *OutputBuffer) Seq() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.slots[b.front].seq
}

// Len returns the number of samples per scan.
func (b *OutputBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.slots[b.front].ranges)
}

// ScanRateHz returns the configured scan rate.
func (b *OutputBuffer) ScanRateHz() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rateHz
}
