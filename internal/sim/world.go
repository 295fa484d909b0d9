package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/scansim/internal/lidar"
	"github.com/banshee-data/scansim/internal/lidar/raycast"
	"github.com/banshee-data/scansim/internal/lidar/scan"
)

// DefaultTick is the fixed simulation step.
const DefaultTick = 20 * time.Millisecond

// Hook runs once per step after the sensors.
type Hook interface {
	Tick(ctx context.Context, dt time.Duration) error
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, dt time.Duration) error

// Tick implements Hook.
func (f HookFunc) Tick(ctx context.Context, dt time.Duration) error { return f(ctx, dt) }

type namedHook struct {
	name string
	hook Hook
}

// World is the fixed-step simulation. Step must only be called from one
// goroutine; the accessors are safe from any goroutine.
type World struct {
	scene   *raycast.Scene
	vehicle *Vehicle
	tick    time.Duration

	sensors []*scan.Sensor
	hooks   []namedHook

	mu         sync.RWMutex
	simTime    time.Duration
	steps      uint64
	scans      uint64
	sensorErrs uint64
	hookErrs   uint64
}

// NewWorld returns a world stepping by tick.
func NewWorld(scene *raycast.Scene, vehicle *Vehicle, tick time.Duration) (*World, error) {
	if tick <= 0 {
		return nil, fmt.Errorf("simulation tick must be positive, got %v", tick)
	}
	if scene == nil {
		scene = raycast.NewScene()
	}
	if vehicle == nil {
		vehicle = NewVehicle(0, 0, 0, 0)
	}
	return &World{scene: scene, vehicle: vehicle, tick: tick}, nil
}

// AddSensor adds a sensor ticked every step, in insertion order.
func (w *World) AddSensor(s *scan.Sensor) {
	w.sensors = append(w.sensors, s)
}

// AddHook adds a hook run every step after the sensors, in insertion
// order.
func (w *World) AddHook(name string, h Hook) {
	w.hooks = append(w.hooks, namedHook{name: name, hook: h})
}

// Scene returns the world geometry.
func (w *World) Scene() *raycast.Scene { return w.scene }

// Vehicle returns the vehicle.
func (w *World) Vehicle() *Vehicle { return w.vehicle }

// Sensors returns the sensors.
func (w *World) Sensors() []*scan.Sensor { return w.sensors }

// Tick returns the fixed step.
func (w *World) Tick() time.Duration { return w.tick }

// Step advances the world by one tick. Sensor and hook failures are logged
// and counted but do not stop the simulation; only a cancelled context
// does.
func (w *World) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.vehicle.Step(w.tick)

	var scans, sensorErrs, hookErrs uint64
	for _, s := range w.sensors {
		n, err := s.Tick(ctx, w.tick)
		scans += uint64(n)
		if err != nil {
			sensorErrs++
			lidar.Diagf("sim: sensor %s: %v", s.Name(), err)
		}
	}
	for _, h := range w.hooks {
		if err := h.hook.Tick(ctx, w.tick); err != nil {
			hookErrs++
			lidar.Opsf("sim: hook %s: %v", h.name, err)
		}
	}

	w.mu.Lock()
	w.simTime += w.tick
	w.steps++
	w.scans += scans
	w.sensorErrs += sensorErrs
	w.hookErrs += hookErrs
	w.mu.Unlock()
	return nil
}

// Stats is a summary of a world's progress.
type Stats struct {
	SimTime      time.Duration `json:"sim_time"`
	Steps        uint64        `json:"steps"`
	Scans        uint64        `json:"scans"`
	SensorErrors uint64        `json:"sensor_errors"`
	HookErrors   uint64        `json:"hook_errors"`
	Odometer     float64       `json:"odometer"`
}

// Stats returns the world's counters.
func (w *World) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Stats{
		SimTime:      w.simTime,
		Steps:        w.steps,
		Scans:        w.scans,
		SensorErrors: w.sensorErrs,
		HookErrors:   w.hookErrs,
		Odometer:     w.vehicle.Odometer(),
	}
}

// SimTime returns the elapsed simulation time.
func (w *World) SimTime() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.simTime
}

// LogStats logs and resets every sensor's scan statistics.
func (w *World) LogStats() {
	for _, s := range w.sensors {
		if st := s.ScanStats(); st != nil {
			st.LogStats(s.Name())
		}
	}
}
