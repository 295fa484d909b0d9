package sim

import (
	"math"
	"sync"
	"time"

	"github.com/banshee-data/scansim/internal/lidar"
	"github.com/banshee-data/scansim/internal/lidar/frame"
)

// Twist is a commanded planar velocity in the body frame.
type Twist struct {
	// Linear is the forward speed in m/s.
	Linear float64 `json:"linear"`
	// YawRate is the turn rate in deg/s, clockwise positive seen from
	// above.
	YawRate float64 `json:"yaw_rate"`
}

// Vehicle is a kinematic body moving in the ground plane. It is the pose
// source that sensor mounts hang off.
type Vehicle struct {
	mu      sync.RWMutex
	x, y, z float64
	yawDeg  float64
	twist   Twist
	odo     float64
}

// NewVehicle returns a stationary vehicle at (x, y, z) heading yawDeg.
func NewVehicle(x, y, z, yawDeg float64) *Vehicle {
	return &Vehicle{x: x, y: y, z: z, yawDeg: lidar.NormalizeAzimuth(yawDeg)}
}

// SetTwist changes the commanded velocity.
func (v *Vehicle) SetTwist(t Twist) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.twist = t
}

// Twist returns the commanded velocity.
func (v *Vehicle) Twist() Twist {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.twist
}

// SetPose teleports the vehicle, as a co-simulation master does when it
// owns the vehicle state.
func (v *Vehicle) SetPose(x, y, z, yawDeg float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.x, v.y, v.z = x, y, z
	v.yawDeg = lidar.NormalizeAzimuth(yawDeg)
}

// Pose implements frame.PoseSource.
func (v *Vehicle) Pose() frame.Pose {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return frame.PoseFromYaw(v.x, v.y, v.z, v.yawDeg)
}

// Odometer returns the distance travelled in meters.
func (v *Vehicle) Odometer() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.odo
}

// Step integrates the twist over dt along the exact arc.
func (v *Vehicle) Step(dt time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()

	secs := dt.Seconds()
	if secs <= 0 {
		return
	}
	speed := v.twist.Linear
	theta := v.yawDeg * math.Pi / 180
	omega := v.twist.YawRate * math.Pi / 180

	// Forward is (sin θ, cos θ) with θ clockwise from +Y.
	if math.Abs(omega) < 1e-12 {
		v.x += speed * secs * math.Sin(theta)
		v.y += speed * secs * math.Cos(theta)
	} else {
		next := theta + omega*secs
		v.x += speed * (math.Cos(theta) - math.Cos(next)) / omega
		v.y += speed * (math.Sin(next) - math.Sin(theta)) / omega
	}
	v.yawDeg = lidar.NormalizeAzimuth(v.yawDeg + v.twist.YawRate*secs)
	v.odo += math.Abs(speed) * secs
}
