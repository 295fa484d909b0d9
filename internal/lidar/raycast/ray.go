package raycast

import (
	"context"
	"errors"

	"gonum.org/v1/gonum/spatial/r3"
)

// Layer is a category bitmask used to filter which geometry a query sees.
type Layer uint32

const (
	// LayerDefault holds physical geometry (walls, obstacles, vehicles).
	LayerDefault Layer = 1 << 0
	// LayerVisualization holds overlay geometry that must never be sampled.
	LayerVisualization Layer = 1 << 10
	// MaskAll matches every layer.
	MaskAll Layer = ^Layer(0)
)

var (
	// ErrBackendUnavailable reports that the intersection service could not
	// answer a batch at all.
	ErrBackendUnavailable = errors.New("ray intersection backend unavailable")

	// ErrBatchMismatch reports a batch whose Hits and Rays lengths differ.
	ErrBatchMismatch = errors.New("ray batch hits/rays length mismatch")
)

// Ray is a single bounded query. Direction must be unit length so that hit
// distances are in meters.
type Ray struct {
	Origin      r3.Vec
	Direction   r3.Vec
	MaxDistance float64
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float64) r3.Vec {
	return r3.Add(r.Origin, r3.Scale(t, r.Direction))
}

// Hit is the answer to one Ray.
type Hit struct {
	Hit      bool
	Distance float64
}

// Batch is one scan's worth of queries. Hits[i] answers Rays[i].
// ChunkSize is a tuning hint for backends that split work across workers;
// it never changes results.
type Batch struct {
	Rays      []Ray
	Hits      []Hit
	ChunkSize int
	Mask      Layer
}

// NewBatch allocates a batch with room for n rays.
func NewBatch(n, chunkSize int, mask Layer) *Batch {
	return &Batch{
		Rays:      make([]Ray, n),
		Hits:      make([]Hit, n),
		ChunkSize: chunkSize,
		Mask:      mask,
	}
}

// Len returns the number of rays in the batch.
func (b *Batch) Len() int {
	return len(b.Rays)
}

// Caster answers a whole batch in one call. Implementations return only
// after every Hits[i] has been written for Rays[i]; a non-nil error means
// the batch results must not be used.
type Caster interface {
	CastBatch(ctx context.Context, b *Batch) error
}
