// Package laserscan converts published scans into the planar laser scan
// message handed to consumers, and provides the compact text encodings
// used by recordings and the serial emitter.
//
// Angles follow the sensor convention (clockwise from forward) rather than
// the counter-clockwise robot convention; no frame conversion is applied.
package laserscan

import (
	"encoding/json"
	"math"
	"time"

	"github.com/banshee-data/scansim/internal/lidar/scan"
)

const degToRad = math.Pi / 180

// Ranges is a list of ranges in meters. No-return samples are +Inf in
// memory and null in JSON.
type Ranges []float32

// MarshalJSON implements json.Marshaler.
func (r Ranges) MarshalJSON() ([]byte, error) {
	out := make([]*float32, len(r))
	for i := range r {
		if v := r[i]; !math.IsInf(float64(v), 0) && !math.IsNaN(float64(v)) {
			out[i] = &r[i]
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Ranges) UnmarshalJSON(data []byte) error {
	var in []*float32
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	out := make(Ranges, len(in))
	for i, v := range in {
		if v == nil {
			out[i] = float32(math.Inf(1))
		} else {
			out[i] = *v
		}
	}
	*r = out
	return nil
}

// Message is one planar scan in the shape of a sensor_msgs/LaserScan.
type Message struct {
	Seq     uint64        `json:"seq"`
	Stamp   time.Duration `json:"stamp"`
	FrameID string        `json:"frame_id"`

	AngleMin       float64 `json:"angle_min"`       // rad
	AngleMax       float64 `json:"angle_max"`       // rad
	AngleIncrement float64 `json:"angle_increment"` // rad
	TimeIncrement  float64 `json:"time_increment"`  // s
	ScanTime       float64 `json:"scan_time"`       // s
	RangeMin       float64 `json:"range_min"`       // m
	RangeMax       float64 `json:"range_max"`       // m

	Ranges      Ranges    `json:"ranges"`
	Intensities []float32 `json:"intensities"`

	Failed bool `json:"failed,omitempty"`
	Stale  bool `json:"stale,omitempty"`
}

// FromScan builds a message from a scan and the table and configuration
// that produced it.
func FromScan(s scan.Scan, table *scan.DirectionTable, cfg scan.Config, frameID string) Message {
	n := len(s.Ranges)
	m := Message{
		Seq:            s.Seq,
		Stamp:          s.SimTime,
		FrameID:        frameID,
		AngleMin:       table.FirstAngle() * degToRad,
		AngleMax:       table.LastAngle() * degToRad,
		AngleIncrement: table.Resolution() * degToRad,
		ScanTime:       1 / cfg.ScanRateHz,
		RangeMin:       cfg.MinRange,
		RangeMax:       cfg.MaxRange,
		Ranges:         make(Ranges, n),
		Intensities:    make([]float32, len(s.Intensities)),
		Failed:         s.Failed,
		Stale:          s.Stale,
	}
	if n > 1 {
		m.TimeIncrement = m.ScanTime / float64(n)
	}
	for i, r := range s.Ranges {
		m.Ranges[i] = float32(r)
	}
	for i, v := range s.Intensities {
		m.Intensities[i] = float32(v)
	}
	return m
}

// Angle returns the angle of sample i in radians.
func (m Message) Angle(i int) float64 {
	return m.AngleMin + float64(i)*m.AngleIncrement
}

// Point is a return in the sensor plane, in meters.
type Point struct {
	X, Y float64
	// Index is the sample index the point came from.
	Index int
}

// Points returns the Cartesian positions of every valid return.
func Points(m Message) []Point {
	pts := make([]Point, 0, len(m.Ranges))
	for i, r := range m.Ranges {
		if math.IsInf(float64(r), 0) || math.IsNaN(float64(r)) {
			continue
		}
		sin, cos := math.Sincos(m.Angle(i))
		pts = append(pts, Point{X: float64(r) * sin, Y: float64(r) * cos, Index: i})
	}
	return pts
}

// Valid returns the number of samples with a return.
func (m Message) Valid() int {
	n := 0
	for _, r := range m.Ranges {
		if !math.IsInf(float64(r), 0) {
			n++
		}
	}
	return n
}
