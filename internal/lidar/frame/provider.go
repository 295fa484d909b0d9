package frame

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/scansim/internal/lidar"
)

// Provider supplies the sensor origin and head orientation in the world
// frame. The scan engine samples it once per scan.
type Provider interface {
	SensorOrigin() r3.Vec
	HeadOrientation() r3.Rotation
}

// PoseProvider is implemented by providers that can return origin and
// orientation from a single consistent sample.
type PoseProvider interface {
	Provider
	HeadPose() Pose
}

// Sample returns the head pose of p, using a single HeadPose call when p
// supports it.
func Sample(p Provider) Pose {
	if pp, ok := p.(PoseProvider); ok {
		return pp.HeadPose()
	}
	return Pose{Position: p.SensorOrigin(), Orientation: p.HeadOrientation()}
}

// PoseSource is anything with a world pose that can carry a sensor, such as
// a vehicle body.
type PoseSource interface {
	Pose() Pose
}

// Static is a fixed, mutable-by-Set pose. It serves both as a Provider for
// a stationary sensor and as a PoseSource for a fixed parent.
type Static struct {
	mu   sync.RWMutex
	pose Pose
}

// NewStatic returns a Static provider at pose.
func NewStatic(pose Pose) *Static {
	return &Static{pose: pose}
}

// Set replaces the pose.
func (s *Static) Set(pose Pose) {
	s.mu.Lock()
	s.pose = pose
	s.mu.Unlock()
}

// Pose implements PoseSource.
func (s *Static) Pose() Pose {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pose
}

func (s *Static) HeadPose() Pose               { return s.Pose() }
func (s *Static) SensorOrigin() r3.Vec         { return s.Pose().Position }
func (s *Static) HeadOrientation() r3.Rotation { return s.Pose().Orientation }

// Mount places a sensor at a fixed Offset relative to a moving Parent.
type Mount struct {
	Parent PoseSource
	Offset Pose
}

// HeadPose implements PoseProvider.
func (m Mount) HeadPose() Pose {
	return m.Parent.Pose().Compose(m.Offset)
}

func (m Mount) SensorOrigin() r3.Vec         { return m.HeadPose().Position }
func (m Mount) HeadOrientation() r3.Rotation { return m.HeadPose().Orientation }

// HeadAnimator integrates the visible spin of the sensor head for display.
// It has no effect on measurements and is not a Provider. Advance and
// Angle may be called from different goroutines.
type HeadAnimator struct {
	mu           sync.Mutex
	degPerSecond float64
	angle        float64
}

// NewHeadAnimator returns an animator that completes scanRateHz turns per
// second.
func NewHeadAnimator(scanRateHz float64) *HeadAnimator {
	return &HeadAnimator{degPerSecond: 360 * scanRateHz}
}

// Advance moves the head forward by dt of simulation time.
func (h *HeadAnimator) Advance(dt time.Duration) {
	h.mu.Lock()
	h.angle = lidar.NormalizeAzimuth(h.angle + h.degPerSecond*dt.Seconds())
	h.mu.Unlock()
}

// Angle returns the current display angle in degrees within [0, 360).
func (h *HeadAnimator) Angle() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.angle
}
