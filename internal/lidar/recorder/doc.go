// Package recorder stores LIDAR scans in SQLite for later replay and
// plotting.
//
// Responsibilities: schema migrations (embedded, golang-migrate), run
// bookkeeping, rate-limited sampling of a sensor's output, and the
// tailsql admin surface.
// Key types: Store, Run, ScanRecord, Recorder.
package recorder
