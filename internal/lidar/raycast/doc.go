// Package raycast owns the ray-intersection service consumed by the scan
// engine.
//
// Responsibilities: the batched query contract (Caster), layer filtering,
// and an analytic Scene backend that answers nearest-hit queries against
// simple shapes in parallel chunks.
// Key types: Ray, Hit, Batch, Caster, Scene.
//
// Dependency rule: raycast never imports the scan engine; the engine
// depends on this package only through the Caster interface.
package raycast
