// Package frame provides the geometry frames that place the sensor head in
// the world.
//
// Key types: Pose, Provider, Static, Mount, HeadAnimator.
//
// All frames share the sensor convention: X right, Y forward, Z up, yaw
// measured clockwise from +Y.
package frame
