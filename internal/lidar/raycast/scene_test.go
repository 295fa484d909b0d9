package raycast

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func fanBatch(n int, chunk int, maxDist float64) *Batch {
	b := NewBatch(n, chunk, LayerDefault)
	for i := range b.Rays {
		a := 2 * math.Pi * float64(i) / float64(n)
		b.Rays[i] = Ray{
			Origin:      r3.Vec{Z: 0.5},
			Direction:   r3.Vec{X: math.Sin(a), Y: math.Cos(a)},
			MaxDistance: maxDist,
		}
	}
	return b
}

func boxRoom() *Scene {
	s := NewScene()
	s.Add("north", Wall(r3.Vec{X: -10, Y: 5}, r3.Vec{X: 10, Y: 5}, 2), LayerDefault)
	s.Add("south", Wall(r3.Vec{X: -10, Y: -3}, r3.Vec{X: 10, Y: -3}, 2), LayerDefault)
	s.Add("east", Wall(r3.Vec{X: 4, Y: -10}, r3.Vec{X: 4, Y: 10}, 2), LayerDefault)
	s.Add("west", Wall(r3.Vec{X: -6, Y: -10}, r3.Vec{X: -6, Y: 10}, 2), LayerDefault)
	return s
}

func TestScene_CastBatch_ChunkSizeDoesNotChangeResults(t *testing.T) {
	s := boxRoom()
	ref := fanBatch(360, 0, 12)
	require.NoError(t, s.CastBatch(context.Background(), ref))

	for _, chunk := range []int{1, 7, 64, 359, 360, 1000} {
		b := fanBatch(360, chunk, 12)
		require.NoError(t, s.CastBatch(context.Background(), b))
		assert.Equal(t, ref.Hits, b.Hits, "chunk=%d", chunk)
	}

	assert.True(t, ref.Hits[0].Hit)
	assert.InDelta(t, 5.0, ref.Hits[0].Distance, 1e-9)
	assert.InDelta(t, 4.0, ref.Hits[90].Distance, 1e-9)
	assert.InDelta(t, 3.0, ref.Hits[180].Distance, 1e-9)
	assert.InDelta(t, 6.0, ref.Hits[270].Distance, 1e-9)
}

func TestScene_LayerMask(t *testing.T) {
	s := NewScene()
	s.Add("overlay", Plane{Point: r3.Vec{Y: 2}, Normal: r3.Vec{Y: -1}}, LayerVisualization)
	s.Add("wall", Plane{Point: r3.Vec{Y: 6}, Normal: r3.Vec{Y: -1}}, LayerDefault)

	ray := Ray{Direction: forward, MaxDistance: 12}
	assert.InDelta(t, 6.0, s.Nearest(ray, LayerDefault).Distance, 1e-9)
	assert.InDelta(t, 2.0, s.Nearest(ray, MaskAll).Distance, 1e-9)
	assert.False(t, s.Nearest(ray, 1<<5).Hit)
}

func TestScene_MissIsInf(t *testing.T) {
	s := NewScene()
	b := fanBatch(8, 3, 12)
	require.NoError(t, s.CastBatch(context.Background(), b))
	for i, h := range b.Hits {
		assert.False(t, h.Hit, "index %d", i)
		assert.True(t, math.IsInf(h.Distance, 1), "index %d", i)
	}
}

func TestScene_CastBatch_Mismatch(t *testing.T) {
	b := fanBatch(4, 0, 12)
	b.Hits = b.Hits[:3]
	err := NewScene().CastBatch(context.Background(), b)
	assert.True(t, errors.Is(err, ErrBatchMismatch))
}

func TestScene_CastBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := boxRoom().CastBatch(ctx, fanBatch(64, 8, 12))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPermuting_PreservesIndexAlignment(t *testing.T) {
	s := boxRoom()
	want := fanBatch(360, 16, 12)
	require.NoError(t, s.CastBatch(context.Background(), want))

	p := NewPermuting(s, 42)
	for range 3 {
		got := fanBatch(360, 16, 12)
		require.NoError(t, p.CastBatch(context.Background(), got))
		assert.Equal(t, want.Hits, got.Hits)
	}
}

func TestFakes(t *testing.T) {
	b := fanBatch(4, 0, 12)
	assert.ErrorIs(t, Unavailable{}.CastBatch(context.Background(), b), ErrBackendUnavailable)

	require.NoError(t, Empty.CastBatch(context.Background(), b))
	for _, h := range b.Hits {
		assert.False(t, h.Hit)
	}

	sw := &Switchable{Inner: Empty}
	require.NoError(t, sw.CastBatch(context.Background(), b))
	sw.SetFailing(true)
	assert.ErrorIs(t, sw.CastBatch(context.Background(), b), ErrBackendUnavailable)

	c := &Counting{Inner: Empty}
	require.NoError(t, c.CastBatch(context.Background(), b))
	require.NoError(t, c.CastBatch(context.Background(), b))
	assert.EqualValues(t, 2, c.Batches.Load())
	assert.EqualValues(t, 8, c.Rays.Load())
}

func TestReadScene(t *testing.T) {
	const doc = `{
		"walls": [{"name": "front", "from": [-5, 5, 0], "to": [5, 5, 0], "height": 2}],
		"boxes": [{"min": [-1, -4, 0], "max": [1, -3, 1]}],
		"spheres": [{"center": [0, 0, 10], "radius": 1}],
		"cylinders": [{"base": [3, 0, 0], "radius": 0.2, "height": 1}],
		"planes": [{"name": "ghost", "point": [0, 1, 0], "normal": [0, -1, 0], "layer": "visualization"}]
	}`
	s, err := ReadScene(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 5, s.Len())

	objs := s.Objects()
	assert.Equal(t, "ghost", objs[0].Name)
	assert.Equal(t, LayerVisualization, objs[0].Layer)
	assert.Equal(t, "box-0", objs[1].Name)

	h := s.Nearest(Ray{Origin: r3.Vec{Z: 0.5}, Direction: forward, MaxDistance: 12}, LayerDefault)
	assert.True(t, h.Hit)
	assert.InDelta(t, 5.0, h.Distance, 1e-9)
}

func TestReadScene_Errors(t *testing.T) {
	tests := map[string]string{
		"unknown layer": `{"walls": [{"from": [0,0,0], "to": [1,0,0], "height": 1, "layer": "bogus"}]}`,
		"zero normal":   `{"planes": [{"point": [0,0,0], "normal": [0,0,0]}]}`,
		"bad radius":    `{"spheres": [{"center": [0,0,0], "radius": 0}]}`,
		"unknown field": `{"triangles": []}`,
		"flat wall":     `{"walls": [{"from": [0,0,0], "to": [1,0,0], "height": 0}]}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadScene(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadSceneFile_Extension(t *testing.T) {
	_, err := LoadSceneFile("scene.yaml")
	assert.ErrorContains(t, err, ".json")
}
