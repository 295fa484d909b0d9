// Package config loads the simulator's JSON configuration document.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/scansim/internal/lidar/frame"
	"github.com/banshee-data/scansim/internal/lidar/raycast"
	"github.com/banshee-data/scansim/internal/lidar/scan"
	"github.com/banshee-data/scansim/internal/lidar/serialout"
	"github.com/banshee-data/scansim/internal/lidar/visualiser"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/scansim.defaults.json"

// SimConfig is the root configuration document. Every field is optional;
// the Get* methods supply the default for anything left out, so partial
// configs are safe.
type SimConfig struct {
	// Sensor params
	SensorName        *string  `json:"sensor_name,omitempty"`
	ScanRateHz        *float64 `json:"scan_rate_hz,omitempty"`
	MinRange          *float64 `json:"min_range,omitempty"`
	MaxRange          *float64 `json:"max_range,omitempty"`
	AngularStart      *float64 `json:"angular_start,omitempty"`
	AngularEnd        *float64 `json:"angular_end,omitempty"`
	Resolution        *float64 `json:"resolution,omitempty"`
	Intensity         *float64 `json:"intensity,omitempty"`
	RaysPerBatchChunk *int     `json:"rays_per_batch_chunk,omitempty"`
	Convention        *string  `json:"convention,omitempty"` // "absolute" or "centered"
	Timing            *string  `json:"timing,omitempty"`     // "catch-up" or "cap-one-per-tick"
	OnFailure         *string  `json:"on_failure,omitempty"` // "keep-last" or "blank"
	Mask              *uint32  `json:"mask,omitempty"`

	// Sensor mount on the vehicle
	MountX   *float64 `json:"mount_x,omitempty"`
	MountY   *float64 `json:"mount_y,omitempty"`
	MountZ   *float64 `json:"mount_z,omitempty"`
	MountYaw *float64 `json:"mount_yaw,omitempty"`

	// Simulation params
	Tick             *string  `json:"tick,omitempty"` // duration string like "20ms"
	IntersectWorkers *int     `json:"intersect_workers,omitempty"`
	StartX           *float64 `json:"start_x,omitempty"`
	StartY           *float64 `json:"start_y,omitempty"`
	StartYaw         *float64 `json:"start_yaw,omitempty"`
	Speed            *float64 `json:"speed,omitempty"`    // m/s
	YawRate          *float64 `json:"yaw_rate,omitempty"` // deg/s

	// Output params
	RecordRateHz *float64               `json:"record_rate_hz,omitempty"`
	Serial       *serialout.PortOptions `json:"serial,omitempty"`
	MaxClients   *int                   `json:"max_clients,omitempty"`
	ClientBuffer *int                   `json:"client_buffer,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptySimConfig returns a SimConfig with every field unset.
func EmptySimConfig() *SimConfig {
	return &SimConfig{}
}

// LoadSimConfig loads a SimConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Unknown fields
// are rejected so that typos do not silently fall back to defaults.
func LoadSimConfig(path string) (*SimConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()

	cfg := EmptySimConfig()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents up to the repo root.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *SimConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/lidar/scan/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadSimConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *SimConfig) Validate() error {
	if _, err := c.ScanConfig(); err != nil {
		return err
	}

	if c.Tick != nil && *c.Tick != "" {
		d, err := time.ParseDuration(*c.Tick)
		if err != nil {
			return fmt.Errorf("invalid tick '%s': %w", *c.Tick, err)
		}
		if d <= 0 {
			return fmt.Errorf("tick must be positive, got %v", d)
		}
	}

	if c.IntersectWorkers != nil && *c.IntersectWorkers < 0 {
		return fmt.Errorf("intersect_workers must be non-negative, got %d", *c.IntersectWorkers)
	}

	if c.RecordRateHz != nil && *c.RecordRateHz <= 0 {
		return fmt.Errorf("record_rate_hz must be positive, got %f", *c.RecordRateHz)
	}

	if c.Serial != nil {
		if _, err := c.Serial.Normalize(); err != nil {
			return fmt.Errorf("serial: %w", err)
		}
	}

	if c.MaxClients != nil && *c.MaxClients < 0 {
		return fmt.Errorf("max_clients must be non-negative, got %d", *c.MaxClients)
	}
	if c.ClientBuffer != nil && *c.ClientBuffer <= 0 {
		return fmt.Errorf("client_buffer must be positive, got %d", *c.ClientBuffer)
	}
	return nil
}

// ScanConfig builds the sensor configuration, starting from
// scan.DefaultConfig and overriding every field that is set. The result
// is validated.
func (c *SimConfig) ScanConfig() (scan.Config, error) {
	cfg := scan.DefaultConfig()
	setFloat := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setFloat(&cfg.ScanRateHz, c.ScanRateHz)
	setFloat(&cfg.MinRange, c.MinRange)
	setFloat(&cfg.MaxRange, c.MaxRange)
	setFloat(&cfg.AngularStart, c.AngularStart)
	setFloat(&cfg.AngularEnd, c.AngularEnd)
	setFloat(&cfg.Resolution, c.Resolution)
	setFloat(&cfg.Intensity, c.Intensity)
	if c.RaysPerBatchChunk != nil {
		cfg.RaysPerBatchChunk = *c.RaysPerBatchChunk
	}
	if c.Mask != nil {
		cfg.Mask = raycast.Layer(*c.Mask)
	}

	var err error
	if c.Convention != nil {
		if cfg.Convention, err = scan.ParseAngleConvention(*c.Convention); err != nil {
			return scan.Config{}, fmt.Errorf("convention: %w", err)
		}
	}
	if c.Timing != nil {
		if cfg.Timing, err = scan.ParseTimingPolicy(*c.Timing); err != nil {
			return scan.Config{}, fmt.Errorf("timing: %w", err)
		}
	}
	if c.OnFailure != nil {
		if cfg.OnFailure, err = scan.ParseFailurePolicy(*c.OnFailure); err != nil {
			return scan.Config{}, fmt.Errorf("on_failure: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return scan.Config{}, err
	}
	return cfg, nil
}

// GetSensorName returns the sensor_name value or the default.
func (c *SimConfig) GetSensorName() string {
	if c.SensorName == nil || *c.SensorName == "" {
		return "lidar"
	}
	return *c.SensorName
}

// GetMountOffset returns the sensor pose relative to the vehicle.
func (c *SimConfig) GetMountOffset() frame.Pose {
	return frame.PoseFromYaw(get(c.MountX, 0), get(c.MountY, 0), get(c.MountZ, 0.2), get(c.MountYaw, 0))
}

// GetTick parses and returns the Tick as a time.Duration.
func (c *SimConfig) GetTick() time.Duration {
	if c.Tick == nil || *c.Tick == "" {
		return 20 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.Tick)
	if err != nil || d <= 0 {
		return 20 * time.Millisecond // default on parse error
	}
	return d
}

// GetIntersectWorkers returns the intersect_workers value, 0 meaning one
// per CPU.
func (c *SimConfig) GetIntersectWorkers() int {
	return get(c.IntersectWorkers, 0)
}

// GetStartPose returns the vehicle's initial x, y and yaw.
func (c *SimConfig) GetStartPose() (x, y, yaw float64) {
	return get(c.StartX, 0), get(c.StartY, 0), get(c.StartYaw, 0)
}

// GetSpeed returns the commanded forward speed in m/s.
func (c *SimConfig) GetSpeed() float64 {
	return get(c.Speed, 0)
}

// GetYawRate returns the commanded turn rate in deg/s.
func (c *SimConfig) GetYawRate() float64 {
	return get(c.YawRate, 0)
}

// GetRecordRateHz returns the record_rate_hz value or the default.
func (c *SimConfig) GetRecordRateHz() float64 {
	return get(c.RecordRateHz, 7)
}

// GetSerial returns the normalized serial port options.
func (c *SimConfig) GetSerial() serialout.PortOptions {
	var opts serialout.PortOptions
	if c.Serial != nil {
		opts = *c.Serial
	}
	normalized, err := opts.Normalize()
	if err != nil {
		normalized, _ = serialout.PortOptions{}.Normalize()
	}
	return normalized
}

// VisualiserConfig returns the gRPC stream configuration listening on
// addr.
func (c *SimConfig) VisualiserConfig(addr string) visualiser.Config {
	def := visualiser.DefaultConfig()
	if addr == "" {
		addr = def.ListenAddr
	}
	return visualiser.Config{
		ListenAddr:   addr,
		MaxClients:   get(c.MaxClients, def.MaxClients),
		ClientBuffer: get(c.ClientBuffer, def.ClientBuffer),
	}
}

func get[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
