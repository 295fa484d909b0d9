package scan

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/scansim/internal/lidar/raycast"
)

// BatchScheduler turns one scan into exactly one intersection batch. Its
// buffers are allocated once per configuration and reused by every scan.
type BatchScheduler struct {
	caster   raycast.Caster
	table    *DirectionTable
	maxRange float64

	batch     *raycast.Batch
	distances []float64
	hitMask   []bool

	lastLatency time.Duration
	now         func() time.Time
}

// NewBatchScheduler prepares the ray batch for table. cfg must be valid.
func NewBatchScheduler(caster raycast.Caster, table *DirectionTable, cfg Config) *BatchScheduler {
	n := table.Len()
	return &BatchScheduler{
		caster:    caster,
		table:     table,
		maxRange:  cfg.MaxRange,
		batch:     raycast.NewBatch(n, cfg.RaysPerBatchChunk, cfg.Mask),
		distances: make([]float64, n),
		hitMask:   make([]bool, n),
		now:       time.Now,
	}
}

// RunScan casts the full fan from origin, rotated by orientation, and
// blocks until every result is in. The returned slices belong to the
// scheduler and are overwritten by the next RunScan. On error they must
// not be used.
func (s *BatchScheduler) RunScan(ctx context.Context, origin r3.Vec, orientation r3.Rotation) ([]float64, []bool, error) {
	if s.batch == nil {
		return nil, nil, ErrClosed
	}
	for i := range s.batch.Rays {
		s.batch.Rays[i] = raycast.Ray{
			Origin:      origin,
			Direction:   orientation.Rotate(s.table.Direction(i)),
			MaxDistance: s.maxRange,
		}
		s.batch.Hits[i] = raycast.Hit{}
	}

	start := s.now()
	err := s.caster.CastBatch(ctx, s.batch)
	s.lastLatency = s.now().Sub(start)
	if err != nil {
		return nil, nil, fmt.Errorf("cast batch of %d rays: %w", len(s.batch.Rays), err)
	}

	for i, h := range s.batch.Hits {
		ok := h.Hit && !math.IsNaN(h.Distance) && h.Distance <= s.maxRange
		s.hitMask[i] = ok
		if ok {
			s.distances[i] = h.Distance
		} else {
			s.distances[i] = math.Inf(1)
		}
	}
	return s.distances, s.hitMask, nil
}

// LastLatency returns how long the most recent batch took to answer.
func (s *BatchScheduler) LastLatency() time.Duration {
	return s.lastLatency
}

// release drops the scratch buffers. Later RunScan calls fail with
// ErrClosed.
func (s *BatchScheduler) release() {
	s.batch = nil
	s.distances = nil
	s.hitMask = nil
}
