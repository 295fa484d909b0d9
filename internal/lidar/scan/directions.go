package scan

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/scansim/internal/lidar"
)

// DirectionTable holds one unit vector per angular sample in the sensor's
// local frame. It is immutable once built.
type DirectionTable struct {
	first      float64
	resolution float64
	span       float64
	dirs       []r3.Vec
}

// NewDirectionTable precomputes the ray fan for cfg. cfg must be valid.
func NewDirectionTable(cfg Config) *DirectionTable {
	n := cfg.MeasurementsPerScan()
	t := &DirectionTable{
		first:      cfg.AngularStart,
		resolution: cfg.Resolution,
		span:       cfg.Span(),
		dirs:       make([]r3.Vec, n),
	}
	if cfg.Convention == ConventionCentered {
		t.first = -t.span / 2
	}
	for i := range t.dirs {
		t.dirs[i] = lidar.AzimuthUnit(t.Angle(i))
	}
	return t
}

// Len returns the number of samples per scan.
func (t *DirectionTable) Len() int {
	return len(t.dirs)
}

// Angle returns the azimuth of sample i in degrees, measured clockwise
// from the sensor's forward axis. Every consumer that needs to label an
// index uses this function.
func (t *DirectionTable) Angle(i int) float64 {
	return t.first + float64(i)*t.resolution
}

// Direction returns the local unit vector of sample i.
func (t *DirectionTable) Direction(i int) r3.Vec {
	return t.dirs[i]
}

// FirstAngle returns the azimuth of sample 0.
func (t *DirectionTable) FirstAngle() float64 {
	return t.first
}

// LastAngle returns the azimuth of the final sample.
func (t *DirectionTable) LastAngle() float64 {
	return t.Angle(len(t.dirs) - 1)
}

// Resolution returns the angular step in degrees.
func (t *DirectionTable) Resolution() float64 {
	return t.resolution
}

// Gap returns the part of the configured span not covered by whole
// resolution steps. It is zero when the span is a multiple of the
// resolution.
func (t *DirectionTable) Gap() float64 {
	g := t.span - float64(len(t.dirs)-1)*t.resolution
	if g < spanEpsilon*t.resolution {
		return 0
	}
	return g
}
