package raycast

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// parallelEpsilon is the threshold below which a ray is treated as parallel
// to a surface.
const parallelEpsilon = 1e-12

// Shape is a piece of geometry that can answer a nearest-hit query.
// Intersect returns the smallest t in [0, maxDist] at which the ray
// origin + t*dir meets the surface.
type Shape interface {
	Intersect(origin, dir r3.Vec, maxDist float64) (float64, bool)
}

func accept(t, maxDist float64) (float64, bool) {
	if t < 0 || t > maxDist || math.IsNaN(t) {
		return 0, false
	}
	return t, true
}

// Plane is an infinite plane through Point with the given Normal.
type Plane struct {
	Point  r3.Vec
	Normal r3.Vec
}

// Intersect implements Shape.
func (p Plane) Intersect(origin, dir r3.Vec, maxDist float64) (float64, bool) {
	denom := r3.Dot(p.Normal, dir)
	if math.Abs(denom) < parallelEpsilon {
		return 0, false
	}
	t := r3.Dot(r3.Sub(p.Point, origin), p.Normal) / denom
	return accept(t, maxDist)
}

// Sphere is a solid sphere. A ray starting inside reports the exit point.
type Sphere struct {
	Center r3.Vec
	Radius float64
}

// Intersect implements Shape.
func (s Sphere) Intersect(origin, dir r3.Vec, maxDist float64) (float64, bool) {
	oc := r3.Sub(origin, s.Center)
	b := r3.Dot(oc, dir)
	c := r3.Dot(oc, oc) - s.Radius*s.Radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	if t := -b - sq; t >= 0 {
		return accept(t, maxDist)
	}
	return accept(-b+sq, maxDist)
}

// AABB is an axis-aligned box. A ray starting inside reports the exit face.
type AABB struct {
	Box r3.Box
}

// Intersect implements Shape using the slab method.
func (a AABB) Intersect(origin, dir r3.Vec, maxDist float64) (float64, bool) {
	tmin, tmax := math.Inf(-1), math.Inf(1)
	axes := [3][4]float64{
		{origin.X, dir.X, a.Box.Min.X, a.Box.Max.X},
		{origin.Y, dir.Y, a.Box.Min.Y, a.Box.Max.Y},
		{origin.Z, dir.Z, a.Box.Min.Z, a.Box.Max.Z},
	}
	for _, ax := range axes {
		o, d, lo, hi := ax[0], ax[1], ax[2], ax[3]
		if math.Abs(d) < parallelEpsilon {
			if o < lo || o > hi {
				return 0, false
			}
			continue
		}
		t1, t2 := (lo-o)/d, (hi-o)/d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return 0, false
		}
	}
	if tmax < 0 {
		return 0, false
	}
	if tmin >= 0 {
		return accept(tmin, maxDist)
	}
	return accept(tmax, maxDist)
}

// Triangle is a single two-sided triangle.
type Triangle struct {
	r3.Triangle
}

// Intersect implements Shape (Möller–Trumbore).
func (tri Triangle) Intersect(origin, dir r3.Vec, maxDist float64) (float64, bool) {
	a, b, c := tri.Triangle[0], tri.Triangle[1], tri.Triangle[2]
	edge1 := r3.Sub(b, a)
	edge2 := r3.Sub(c, a)
	p := r3.Cross(dir, edge2)
	det := r3.Dot(edge1, p)
	if math.Abs(det) < parallelEpsilon {
		return 0, false
	}
	inv := 1 / det
	s := r3.Sub(origin, a)
	u := r3.Dot(s, p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := r3.Cross(s, edge1)
	v := r3.Dot(dir, q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	return accept(r3.Dot(edge2, q)*inv, maxDist)
}

// Mesh is a set of triangles treated as one object.
type Mesh struct {
	Triangles []Triangle
}

// Intersect implements Shape by returning the nearest triangle hit.
func (m Mesh) Intersect(origin, dir r3.Vec, maxDist float64) (float64, bool) {
	best, found := maxDist, false
	for _, tri := range m.Triangles {
		if t, ok := tri.Intersect(origin, dir, best); ok {
			best, found = t, true
		}
	}
	return best, found
}

// Wall builds a vertical rectangle standing on the segment from..to and
// extending height meters up (+Z).
func Wall(from, to r3.Vec, height float64) Mesh {
	up := r3.Vec{Z: height}
	fromTop, toTop := r3.Add(from, up), r3.Add(to, up)
	return Mesh{Triangles: []Triangle{
		{r3.Triangle{from, to, toTop}},
		{r3.Triangle{from, toTop, fromTop}},
	}}
}

// Cylinder is a vertical (+Z) cylinder standing on Base. Only the side
// surface is tested; a planar scanner never meets the caps.
type Cylinder struct {
	Base   r3.Vec
	Radius float64
	Height float64
}

// Intersect implements Shape.
func (c Cylinder) Intersect(origin, dir r3.Vec, maxDist float64) (float64, bool) {
	ox, oy := origin.X-c.Base.X, origin.Y-c.Base.Y
	a := dir.X*dir.X + dir.Y*dir.Y
	if a < parallelEpsilon {
		return 0, false
	}
	b := ox*dir.X + oy*dir.Y
	cc := ox*ox + oy*oy - c.Radius*c.Radius
	disc := b*b - a*cc
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	for _, t := range [2]float64{(-b - sq) / a, (-b + sq) / a} {
		if t < 0 || t > maxDist {
			continue
		}
		z := origin.Z + t*dir.Z
		if z >= c.Base.Z && z <= c.Base.Z+c.Height {
			return t, true
		}
	}
	return 0, false
}
