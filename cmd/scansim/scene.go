package main

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/scansim/internal/lidar/raycast"
)

// roomHalfSize keeps every wall inside the stock 12 m maximum range from
// the centre of the room.
const roomHalfSize = 8.0

// defaultScene builds a square walled room with a pillar and a crate so
// that a scan from the origin has returns in every direction.
func defaultScene() *raycast.Scene {
	s := raycast.NewScene()
	h := roomHalfSize
	corners := []r3.Vec{{X: -h, Y: -h}, {X: h, Y: -h}, {X: h, Y: h}, {X: -h, Y: h}}
	for i, from := range corners {
		to := corners[(i+1)%len(corners)]
		s.Add(fmt.Sprintf("wall-%d", i), raycast.Wall(from, to, 3), raycast.LayerDefault)
	}
	s.Add("pillar", raycast.Cylinder{Base: r3.Vec{X: 3, Y: 4}, Radius: 0.3, Height: 3}, raycast.LayerDefault)
	s.Add("crate", raycast.AABB{Box: r3.NewBox(-5, -3, 0, -4, -2, 1)}, raycast.LayerDefault)
	s.Add("marker", raycast.Sphere{Center: r3.Vec{X: 0, Y: -4, Z: 0.2}, Radius: 0.25}, raycast.LayerVisualization)
	return s
}

func loadScene(path string) (*raycast.Scene, error) {
	if path == "" {
		return defaultScene(), nil
	}
	scene, err := raycast.LoadSceneFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load scene: %w", err)
	}
	return scene, nil
}
