package scan

import (
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/scansim/internal/lidar/raycast"
)

// maxMeasurements bounds the number of rays in one scan.
const maxMeasurements = 1 << 20

// spanEpsilon absorbs floating error when dividing the angular span by the
// resolution: 0.3/0.1 evaluates to 2.9999999999999996 but must count 4
// samples.
const spanEpsilon = 1e-9

// AngleConvention selects how sample indices map to azimuth angles.
type AngleConvention int

const (
	// ConventionAbsolute places sample i at AngularStart + i*Resolution.
	ConventionAbsolute AngleConvention = iota
	// ConventionCentered places sample i at -span/2 + i*Resolution so the fan
	// is symmetric about the forward axis.
	ConventionCentered
)

// TimingPolicy selects what the timer does when more than one period
// elapses in a single tick.
type TimingPolicy int

const (
	// TimingCatchUp fires once per whole elapsed period.
	TimingCatchUp TimingPolicy = iota
	// TimingCapOnePerTick fires at most once per tick and drops the rest.
	TimingCapOnePerTick
)

// FailurePolicy selects what consumers see when the intersection backend
// fails a scan.
type FailurePolicy int

const (
	// FailureKeepLast leaves the previous scan visible, flagged Stale.
	FailureKeepLast FailurePolicy = iota
	// FailureBlank publishes an all-+Inf scan flagged Failed.
	FailureBlank
)

var (
	conventionNames = map[AngleConvention]string{ConventionAbsolute: "absolute", ConventionCentered: "centered"}
	timingNames     = map[TimingPolicy]string{TimingCatchUp: "catch-up", TimingCapOnePerTick: "cap-one-per-tick"}
	failureNames    = map[FailurePolicy]string{FailureKeepLast: "keep-last", FailureBlank: "blank"}
)

func (c AngleConvention) String() string { return enumString(conventionNames, c) }
func (p TimingPolicy) String() string    { return enumString(timingNames, p) }
func (p FailurePolicy) String() string   { return enumString(failureNames, p) }

func (c AngleConvention) MarshalText() ([]byte, error) { return []byte(c.String()), nil }
func (p TimingPolicy) MarshalText() ([]byte, error)    { return []byte(p.String()), nil }
func (p FailurePolicy) MarshalText() ([]byte, error)   { return []byte(p.String()), nil }

func (c *AngleConvention) UnmarshalText(b []byte) error { return enumParse(conventionNames, string(b), c) }
func (p *TimingPolicy) UnmarshalText(b []byte) error    { return enumParse(timingNames, string(b), p) }
func (p *FailurePolicy) UnmarshalText(b []byte) error   { return enumParse(failureNames, string(b), p) }

// ParseAngleConvention parses "absolute" or "centered".
func ParseAngleConvention(s string) (AngleConvention, error) {
	var c AngleConvention
	err := c.UnmarshalText([]byte(s))
	return c, err
}

// ParseTimingPolicy parses "catch-up" or "cap-one-per-tick".
func ParseTimingPolicy(s string) (TimingPolicy, error) {
	var p TimingPolicy
	err := p.UnmarshalText([]byte(s))
	return p, err
}

// ParseFailurePolicy parses "keep-last" or "blank".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	var p FailurePolicy
	err := p.UnmarshalText([]byte(s))
	return p, err
}

func enumString[T comparable](names map[T]string, v T) string {
	if s, ok := names[v]; ok {
		return s
	}
	return fmt.Sprintf("unknown(%d)", any(v))
}

func enumParse[T comparable](names map[T]string, s string, dst *T) error {
	for v, name := range names {
		if name == s {
			*dst = v
			return nil
		}
	}
	return fmt.Errorf("%w: unknown value %q", ErrInvalidConfig, s)
}

// Config is the immutable description of one sensor. Angles are in
// degrees, ranges in meters.
type Config struct {
	ScanRateHz        float64         `json:"scan_rate_hz"`
	MinRange          float64         `json:"min_range"`
	MaxRange          float64         `json:"max_range"`
	AngularStart      float64         `json:"angular_start"`
	AngularEnd        float64         `json:"angular_end"`
	Resolution        float64         `json:"resolution"`
	Intensity         float64         `json:"intensity"`
	RaysPerBatchChunk int             `json:"rays_per_batch_chunk"`
	Convention        AngleConvention `json:"convention"`
	Timing            TimingPolicy    `json:"timing"`
	OnFailure         FailurePolicy   `json:"on_failure"`
	Mask              raycast.Layer   `json:"mask"`
}

// DefaultConfig returns the configuration of the stock 7 Hz planar
// scanner: 360 one-degree samples between 0.15 m and 12 m.
func DefaultConfig() Config {
	return Config{
		ScanRateHz:        7,
		MinRange:          0.15,
		MaxRange:          12,
		AngularStart:      0,
		AngularEnd:        359,
		Resolution:        1,
		Intensity:         47,
		RaysPerBatchChunk: 64,
		Convention:        ConventionAbsolute,
		Timing:            TimingCatchUp,
		OnFailure:         FailureKeepLast,
		Mask:              raycast.LayerDefault,
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Validate checks the configuration and returns an error wrapping
// ErrInvalidConfig describing the first problem found.
func (c Config) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"scan_rate_hz", c.ScanRateHz},
		{"min_range", c.MinRange},
		{"max_range", c.MaxRange},
		{"angular_start", c.AngularStart},
		{"angular_end", c.AngularEnd},
		{"resolution", c.Resolution},
		{"intensity", c.Intensity},
	} {
		if !finite(f.v) {
			return fmt.Errorf("%w: %s must be finite, got %v", ErrInvalidConfig, f.name, f.v)
		}
	}
	if c.ScanRateHz <= 0 {
		return fmt.Errorf("%w: scan_rate_hz must be positive, got %v", ErrInvalidConfig, c.ScanRateHz)
	}
	if c.Period() <= 0 {
		return fmt.Errorf("%w: scan_rate_hz %v is too high", ErrInvalidConfig, c.ScanRateHz)
	}
	if c.Resolution <= 0 {
		return fmt.Errorf("%w: resolution must be positive, got %v", ErrInvalidConfig, c.Resolution)
	}
	if c.MinRange < 0 {
		return fmt.Errorf("%w: min_range must be non-negative, got %v", ErrInvalidConfig, c.MinRange)
	}
	if c.MinRange >= c.MaxRange {
		return fmt.Errorf("%w: min_range (%v) must be less than max_range (%v)", ErrInvalidConfig, c.MinRange, c.MaxRange)
	}
	if c.RaysPerBatchChunk < 0 {
		return fmt.Errorf("%w: rays_per_batch_chunk must be non-negative, got %d", ErrInvalidConfig, c.RaysPerBatchChunk)
	}
	if c.Mask == 0 {
		return fmt.Errorf("%w: layer mask selects no geometry", ErrInvalidConfig)
	}
	if _, ok := conventionNames[c.Convention]; !ok {
		return fmt.Errorf("%w: unknown angle convention %d", ErrInvalidConfig, c.Convention)
	}
	if _, ok := timingNames[c.Timing]; !ok {
		return fmt.Errorf("%w: unknown timing policy %d", ErrInvalidConfig, c.Timing)
	}
	if _, ok := failureNames[c.OnFailure]; !ok {
		return fmt.Errorf("%w: unknown failure policy %d", ErrInvalidConfig, c.OnFailure)
	}
	n := c.measurements()
	if n < 1 {
		return fmt.Errorf("%w: angular range [%v, %v] yields no measurements", ErrInvalidConfig, c.AngularStart, c.AngularEnd)
	}
	if n > maxMeasurements {
		return fmt.Errorf("%w: %v measurements per scan exceeds the limit of %d", ErrInvalidConfig, n, maxMeasurements)
	}
	return nil
}

func (c Config) measurements() float64 {
	return math.Floor((c.AngularEnd-c.AngularStart)/c.Resolution+spanEpsilon) + 1
}

// MeasurementsPerScan returns floor((AngularEnd-AngularStart)/Resolution)+1.
// The result is only meaningful for a valid configuration.
func (c Config) MeasurementsPerScan() int {
	n := c.measurements()
	if n < 1 || math.IsNaN(n) {
		return 0
	}
	return int(n)
}

// Period returns the simulated time between scans.
func (c Config) Period() time.Duration {
	return time.Duration(float64(time.Second) / c.ScanRateHz)
}

// Span returns AngularEnd - AngularStart in degrees.
func (c Config) Span() float64 {
	return c.AngularEnd - c.AngularStart
}
