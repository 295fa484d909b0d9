package raycast

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
)

// FuncCaster answers each ray with a user-supplied function. It is the
// simplest analytic backend for tests and tools.
type FuncCaster func(r Ray) Hit

// CastBatch implements Caster.
func (f FuncCaster) CastBatch(ctx context.Context, b *Batch) error {
	if len(b.Hits) != len(b.Rays) {
		return fmt.Errorf("%w: %d hits for %d rays", ErrBatchMismatch, len(b.Hits), len(b.Rays))
	}
	for i := range b.Rays {
		b.Hits[i] = f(b.Rays[i])
	}
	return nil
}

// Empty is a Caster over a world with no geometry.
var Empty Caster = FuncCaster(func(Ray) Hit { return Hit{Distance: math.Inf(1)} })

// Unavailable is a Caster whose backend is always down.
type Unavailable struct{}

// CastBatch implements Caster.
func (Unavailable) CastBatch(context.Context, *Batch) error {
	return ErrBackendUnavailable
}

// Switchable forwards to Inner unless it has been set failing, in which
// case every batch returns ErrBackendUnavailable.
type Switchable struct {
	Inner Caster
	fail  atomic.Bool
}

// SetFailing toggles the simulated outage.
func (s *Switchable) SetFailing(fail bool) { s.fail.Store(fail) }

// CastBatch implements Caster.
func (s *Switchable) CastBatch(ctx context.Context, b *Batch) error {
	if s.fail.Load() {
		return ErrBackendUnavailable
	}
	return s.Inner.CastBatch(ctx, b)
}

// Permuting submits rays to Inner in a shuffled order and restores the
// results to their original indices. Any correct consumer must produce
// identical output with or without it.
type Permuting struct {
	Inner Caster

	mu      sync.Mutex
	rng     *rand.Rand
	perm    []int
	scratch Batch
}

// NewPermuting wraps inner with a deterministic shuffle seeded by seed.
func NewPermuting(inner Caster, seed int64) *Permuting {
	return &Permuting{Inner: inner, rng: rand.New(rand.NewSource(seed))}
}

// CastBatch implements Caster.
func (p *Permuting) CastBatch(ctx context.Context, b *Batch) error {
	if len(b.Hits) != len(b.Rays) {
		return fmt.Errorf("%w: %d hits for %d rays", ErrBatchMismatch, len(b.Hits), len(b.Rays))
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(b.Rays)
	if cap(p.perm) < n {
		p.perm = make([]int, n)
		p.scratch.Rays = make([]Ray, n)
		p.scratch.Hits = make([]Hit, n)
	}
	p.perm = p.perm[:n]
	p.scratch.Rays = p.scratch.Rays[:n]
	p.scratch.Hits = p.scratch.Hits[:n]
	p.scratch.ChunkSize = b.ChunkSize
	p.scratch.Mask = b.Mask

	for i := range p.perm {
		p.perm[i] = i
	}
	p.rng.Shuffle(n, func(i, j int) { p.perm[i], p.perm[j] = p.perm[j], p.perm[i] })
	for k, src := range p.perm {
		p.scratch.Rays[k] = b.Rays[src]
	}
	if err := p.Inner.CastBatch(ctx, &p.scratch); err != nil {
		return err
	}
	for k, dst := range p.perm {
		b.Hits[dst] = p.scratch.Hits[k]
	}
	return nil
}

// Counting records how many batches and rays pass through to Inner.
type Counting struct {
	Inner   Caster
	Batches atomic.Int64
	Rays    atomic.Int64
}

// CastBatch implements Caster.
func (c *Counting) CastBatch(ctx context.Context, b *Batch) error {
	c.Batches.Add(1)
	c.Rays.Add(int64(len(b.Rays)))
	return c.Inner.CastBatch(ctx, b)
}
