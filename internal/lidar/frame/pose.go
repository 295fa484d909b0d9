package frame

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/scansim/internal/lidar"
)

// RotationTolerance is the allowed deviation of an orientation quaternion's
// norm from 1 before a pose is rejected.
const RotationTolerance = 1e-6

// up is the world and sensor vertical axis.
var up = r3.Vec{Z: 1}

// Pose is a rigid transform: rotate by Orientation, then translate by
// Position. The zero value is not a valid pose; use Identity.
type Pose struct {
	Position    r3.Vec
	Orientation r3.Rotation
}

// Identity returns the pose that maps every point to itself.
func Identity() Pose {
	return Pose{Orientation: r3.Rotation{Real: 1}}
}

// PoseFromYaw builds a pose at (x, y, z) with heading yawDeg, measured in
// degrees clockwise from +Y toward +X as seen from above.
func PoseFromYaw(x, y, z, yawDeg float64) Pose {
	return Pose{
		Position:    r3.Vec{X: x, Y: y, Z: z},
		Orientation: r3.NewRotation(-yawDeg*math.Pi/180, up),
	}
}

// Apply maps a point expressed in this pose's local frame into the parent
// frame.
func (p Pose) Apply(v r3.Vec) r3.Vec {
	return r3.Add(p.Position, p.Orientation.Rotate(v))
}

// Compose returns the pose of child (expressed relative to p) in p's
// parent frame.
func (p Pose) Compose(child Pose) Pose {
	return Pose{
		Position:    p.Apply(child.Position),
		Orientation: r3.Rotation(quat.Mul(quat.Number(p.Orientation), quat.Number(child.Orientation))),
	}
}

// Yaw returns the heading of the pose's forward (+Y) axis projected onto
// the horizontal plane, in degrees within [0, 360).
func (p Pose) Yaw() float64 {
	f := p.Orientation.Rotate(r3.Vec{Y: 1})
	return lidar.NormalizeAzimuth(math.Atan2(f.X, f.Y) * 180 / math.Pi)
}

// Validate reports whether the pose is a proper rigid transform.
func (p Pose) Validate() error {
	for _, c := range []float64{p.Position.X, p.Position.Y, p.Position.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("pose position is not finite: %+v", p.Position)
		}
	}
	n := quat.Abs(quat.Number(p.Orientation))
	if math.IsNaN(n) || math.Abs(n-1) > RotationTolerance {
		return fmt.Errorf("pose orientation is not a unit quaternion (|q|=%g)", n)
	}
	return nil
}

func (p Pose) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f) yaw=%.2f°", p.Position.X, p.Position.Y, p.Position.Z, p.Yaw())
}
