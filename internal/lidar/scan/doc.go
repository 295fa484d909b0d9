// Package scan owns the simulated planar LIDAR scan engine.
//
// Responsibilities: sensor configuration, the precomputed ray direction
// table, one-batch-per-scan scheduling against a raycast.Caster, range
// post-processing, fixed-period scan timing, and the double-buffered
// output that consumers poll.
// Key types: Config, DirectionTable, BatchScheduler, PostProcessor, Timer,
// OutputBuffer, Scan, Sensor.
//
// Dependency rule: scan depends on raycast and frame through interfaces
// only. Nothing here starts goroutines; Sensor.Tick runs on the caller's
// fixed-step loop and any parallelism lives inside the Caster.
package scan
