package scan

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestDirectionTable_Absolute(t *testing.T) {
	table := NewDirectionTable(DefaultConfig())
	assert.Equal(t, 360, table.Len())
	assert.Equal(t, 0.0, table.FirstAngle())
	assert.Equal(t, 359.0, table.LastAngle())
	assert.Equal(t, 0.0, table.Gap())

	for i := 0; i < table.Len(); i++ {
		d := table.Direction(i)
		assert.InDelta(t, 1.0, r3.Norm(d), 1e-12)
		assert.Equal(t, 0.0, d.Z)
	}

	want := map[int]r3.Vec{
		0:   {Y: 1},
		90:  {X: 1},
		180: {Y: -1},
		270: {X: -1},
	}
	for i, w := range want {
		got := table.Direction(i)
		assert.InDelta(t, w.X, got.X, 1e-12, "index %d", i)
		assert.InDelta(t, w.Y, got.Y, 1e-12, "index %d", i)
	}
}

func TestDirectionTable_Centered(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AngularStart, cfg.AngularEnd = 0, 90
	cfg.Convention = ConventionCentered
	table := NewDirectionTable(cfg)

	assert.Equal(t, 91, table.Len())
	assert.Equal(t, -45.0, table.FirstAngle())
	assert.Equal(t, 45.0, table.LastAngle())
	assert.Equal(t, 0.0, table.Angle(45))

	mid := table.Direction(45)
	assert.InDelta(t, 1.0, mid.Y, 1e-12)
	left := table.Direction(0)
	assert.InDelta(t, -math.Sqrt2/2, left.X, 1e-12)
}

func TestDirectionTable_UnevenSpan(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AngularStart, cfg.AngularEnd, cfg.Resolution = 0, 10, 3
	table := NewDirectionTable(cfg)

	assert.Equal(t, 4, table.Len())
	assert.Equal(t, 9.0, table.LastAngle())
	assert.InDelta(t, 1.0, table.Gap(), 1e-12)
}

func TestDirectionTable_DirectionsMatchAngles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AngularStart, cfg.AngularEnd, cfg.Resolution = -30, 30, 0.25
	table := NewDirectionTable(cfg)
	for i := 0; i < table.Len(); i++ {
		d := table.Direction(i)
		got := math.Atan2(d.X, d.Y) * 180 / math.Pi
		assert.InDelta(t, table.Angle(i), got, 1e-9, "index %d", i)
	}
}
