package raycast

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/spatial/r3"
)

// SceneFile is the on-disk JSON description of a scene. Coordinates are in
// meters in the world frame (X east, Y north, Z up).
type SceneFile struct {
	Planes    []PlaneSpec    `json:"planes,omitempty"`
	Boxes     []BoxSpec      `json:"boxes,omitempty"`
	Spheres   []SphereSpec   `json:"spheres,omitempty"`
	Cylinders []CylinderSpec `json:"cylinders,omitempty"`
	Walls     []WallSpec     `json:"walls,omitempty"`
}

// Vec3 is a JSON-friendly [x, y, z] triple.
type Vec3 [3]float64

func (v Vec3) vec() r3.Vec { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }

// ObjectSpec holds the fields shared by every scene file entry.
type ObjectSpec struct {
	Name  string `json:"name,omitempty"`
	Layer string `json:"layer,omitempty"` // "default" (or empty) | "visualization"
}

type PlaneSpec struct {
	ObjectSpec
	Point  Vec3 `json:"point"`
	Normal Vec3 `json:"normal"`
}

type BoxSpec struct {
	ObjectSpec
	Min Vec3 `json:"min"`
	Max Vec3 `json:"max"`
}

type SphereSpec struct {
	ObjectSpec
	Center Vec3    `json:"center"`
	Radius float64 `json:"radius"`
}

type CylinderSpec struct {
	ObjectSpec
	Base   Vec3    `json:"base"`
	Radius float64 `json:"radius"`
	Height float64 `json:"height"`
}

type WallSpec struct {
	ObjectSpec
	From   Vec3    `json:"from"`
	To     Vec3    `json:"to"`
	Height float64 `json:"height"`
}

func parseLayer(s string) (Layer, error) {
	switch s {
	case "", "default":
		return LayerDefault, nil
	case "visualization":
		return LayerVisualization, nil
	default:
		return 0, fmt.Errorf("unknown layer %q", s)
	}
}

func name(spec ObjectSpec, kind string, i int) string {
	if spec.Name != "" {
		return spec.Name
	}
	return fmt.Sprintf("%s-%d", kind, i)
}

// Build populates a new Scene from the file description.
func (f *SceneFile) Build() (*Scene, error) {
	s := NewScene()
	add := func(spec ObjectSpec, kind string, i int, shape Shape) error {
		layer, err := parseLayer(spec.Layer)
		if err != nil {
			return fmt.Errorf("%s: %w", name(spec, kind, i), err)
		}
		s.Add(name(spec, kind, i), shape, layer)
		return nil
	}

	for i, p := range f.Planes {
		n := p.Normal.vec()
		if r3.Norm(n) == 0 {
			return nil, fmt.Errorf("%s: zero normal", name(p.ObjectSpec, "plane", i))
		}
		if err := add(p.ObjectSpec, "plane", i, Plane{Point: p.Point.vec(), Normal: r3.Unit(n)}); err != nil {
			return nil, err
		}
	}
	for i, b := range f.Boxes {
		box := r3.NewBox(b.Min[0], b.Min[1], b.Min[2], b.Max[0], b.Max[1], b.Max[2])
		if err := add(b.ObjectSpec, "box", i, AABB{Box: box}); err != nil {
			return nil, err
		}
	}
	for i, sp := range f.Spheres {
		if sp.Radius <= 0 {
			return nil, fmt.Errorf("%s: radius must be positive", name(sp.ObjectSpec, "sphere", i))
		}
		if err := add(sp.ObjectSpec, "sphere", i, Sphere{Center: sp.Center.vec(), Radius: sp.Radius}); err != nil {
			return nil, err
		}
	}
	for i, c := range f.Cylinders {
		if c.Radius <= 0 || c.Height <= 0 {
			return nil, fmt.Errorf("%s: radius and height must be positive", name(c.ObjectSpec, "cylinder", i))
		}
		if err := add(c.ObjectSpec, "cylinder", i, Cylinder{Base: c.Base.vec(), Radius: c.Radius, Height: c.Height}); err != nil {
			return nil, err
		}
	}
	for i, w := range f.Walls {
		if w.Height <= 0 {
			return nil, fmt.Errorf("%s: height must be positive", name(w.ObjectSpec, "wall", i))
		}
		if err := add(w.ObjectSpec, "wall", i, Wall(w.From.vec(), w.To.vec(), w.Height)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ReadScene decodes a scene description from r and builds it.
func ReadScene(r io.Reader) (*Scene, error) {
	var f SceneFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse scene JSON: %w", err)
	}
	return f.Build()
}

// LoadSceneFile reads a JSON scene from disk.
func LoadSceneFile(path string) (*Scene, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("scene file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat scene file: %w", err)
	}
	const maxFileSize = 4 * 1024 * 1024 // 4MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("scene file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	fh, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open scene file: %w", err)
	}
	defer fh.Close()
	return ReadScene(fh)
}
