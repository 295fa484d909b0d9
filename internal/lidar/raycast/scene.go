package raycast

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Object is a named shape placed on a layer.
type Object struct {
	Name  string
	Shape Shape
	Layer Layer
}

// Scene is an analytic Caster over a set of shapes. Objects may be added
// between batches; a batch in flight sees a consistent object list.
type Scene struct {
	mu      sync.RWMutex
	objects []Object
	workers int
}

// NewScene returns an empty scene that evaluates chunks on up to
// GOMAXPROCS goroutines.
func NewScene() *Scene {
	return &Scene{workers: runtime.GOMAXPROCS(0)}
}

// SetWorkers limits the number of concurrent chunk workers. n <= 0 restores
// the GOMAXPROCS default.
func (s *Scene) SetWorkers(n int) {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	s.mu.Lock()
	s.workers = n
	s.mu.Unlock()
}

// Add places a shape in the scene.
func (s *Scene) Add(name string, shape Shape, layer Layer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects = append(s.objects, Object{Name: name, Shape: shape, Layer: layer})
}

// Len returns the number of objects in the scene.
func (s *Scene) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Objects returns a copy of the scene's object list.
func (s *Scene) Objects() []Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Object, len(s.objects))
	copy(out, s.objects)
	return out
}

// Nearest returns the closest hit for a single ray among objects matching
// mask.
func (s *Scene) Nearest(ray Ray, mask Layer) Hit {
	s.mu.RLock()
	objs := s.objects
	s.mu.RUnlock()
	return nearest(objs, ray, mask)
}

func nearest(objs []Object, ray Ray, mask Layer) Hit {
	best := ray.MaxDistance
	hit := Hit{Distance: math.Inf(1)}
	for i := range objs {
		if objs[i].Layer&mask == 0 {
			continue
		}
		if t, ok := objs[i].Shape.Intersect(ray.Origin, ray.Direction, best); ok {
			best = t
			hit = Hit{Hit: true, Distance: t}
		}
	}
	return hit
}

// CastBatch implements Caster. Rays are split into chunks of b.ChunkSize
// and evaluated concurrently; each chunk writes only its own index range
// of b.Hits.
func (s *Scene) CastBatch(ctx context.Context, b *Batch) error {
	if len(b.Hits) != len(b.Rays) {
		return fmt.Errorf("%w: %d hits for %d rays", ErrBatchMismatch, len(b.Hits), len(b.Rays))
	}
	n := len(b.Rays)
	if n == 0 {
		return nil
	}

	s.mu.RLock()
	objs := s.objects
	workers := s.workers
	s.mu.RUnlock()

	chunk := b.ChunkSize
	if chunk <= 0 || chunk > n {
		chunk = n
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < n; start += chunk {
		lo, hi := start, min(start+chunk, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				b.Hits[i] = nearest(objs, b.Rays[i], b.Mask)
			}
			return nil
		})
	}
	return g.Wait()
}
