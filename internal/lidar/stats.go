package lidar

import (
	"fmt"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// ScanStats tracks scan engine statistics with thread-safe operations.
// The fixed-step goroutine writes; the monitor and log loop read.
type ScanStats struct {
	mu           sync.Mutex
	scanCount    int64
	rayCount     int64
	hitCount     int64
	failureCount int64
	droppedCount int64
	batchTime    time.Duration
	lastReset    time.Time
}

// NewScanStats creates a new ScanStats instance
func NewScanStats() *ScanStats {
	return &ScanStats{
		lastReset: time.Now(),
	}
}

// AddScan records one completed scan with its ray count, hit count and
// the time the intersection batch took.
func (ss *ScanStats) AddScan(rays, hits int, batch time.Duration) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.scanCount++
	ss.rayCount += int64(rays)
	ss.hitCount += int64(hits)
	ss.batchTime += batch
}

// AddFailure increments the failed scan count
func (ss *ScanStats) AddFailure() {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.failureCount++
}

// AddDropped records scan periods skipped by the cap-one-per-tick policy.
func (ss *ScanStats) AddDropped(n int) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.droppedCount += int64(n)
}

// ScanStatsSnapshot is a point-in-time copy of the counters.
type ScanStatsSnapshot struct {
	Scans     int64         `json:"scans"`
	Rays      int64         `json:"rays"`
	Hits      int64         `json:"hits"`
	Failures  int64         `json:"failures"`
	Dropped   int64         `json:"dropped"`
	BatchTime time.Duration `json:"batch_time_ns"`
	Duration  time.Duration `json:"duration_ns"`
}

// Snapshot returns the current counters without resetting them.
func (ss *ScanStats) Snapshot() ScanStatsSnapshot {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ScanStatsSnapshot{
		Scans:     ss.scanCount,
		Rays:      ss.rayCount,
		Hits:      ss.hitCount,
		Failures:  ss.failureCount,
		Dropped:   ss.droppedCount,
		BatchTime: ss.batchTime,
		Duration:  time.Since(ss.lastReset),
	}
}

// GetAndReset returns current stats and resets counters
func (ss *ScanStats) GetAndReset() ScanStatsSnapshot {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	now := time.Now()
	snap := ScanStatsSnapshot{
		Scans:     ss.scanCount,
		Rays:      ss.rayCount,
		Hits:      ss.hitCount,
		Failures:  ss.failureCount,
		Dropped:   ss.droppedCount,
		BatchTime: ss.batchTime,
		Duration:  now.Sub(ss.lastReset),
	}

	ss.scanCount = 0
	ss.rayCount = 0
	ss.hitCount = 0
	ss.failureCount = 0
	ss.droppedCount = 0
	ss.batchTime = 0
	ss.lastReset = now

	return snap
}

// LogStats logs formatted statistics to the diag stream and resets them.
func (ss *ScanStats) LogStats(name string) {
	s := ss.GetAndReset()
	if s.Scans == 0 && s.Failures == 0 {
		return
	}
	secs := s.Duration.Seconds()
	if secs <= 0 {
		return
	}

	msg := fmt.Sprintf("%s stats (/sec): %.1f scans, %s rays, %s hits",
		name, float64(s.Scans)/secs,
		FormatWithCommas(int64(float64(s.Rays)/secs)),
		FormatWithCommas(int64(float64(s.Hits)/secs)))
	if s.Scans > 0 {
		msg += fmt.Sprintf(", batch avg %v", s.BatchTime/time.Duration(s.Scans))
	}
	if s.Failures > 0 {
		msg += fmt.Sprintf(", %d failed", s.Failures)
	}
	if s.Dropped > 0 {
		msg += fmt.Sprintf(", %d periods dropped", s.Dropped)
	}
	Diagf("%s", msg)
}

// FormatWithCommas formats a number with thousands separators
func FormatWithCommas(n int64) string {
	if n < 0 {
		return "-" + FormatWithCommas(-n)
	}
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	result := ""
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(char)
	}
	return result
}

// RangeSummary describes the finite returns of one scan.
type RangeSummary struct {
	Valid  int     `json:"valid"`
	Total  int     `json:"total"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// Summarize computes statistics over the finite entries of ranges.
// Infinite entries (no return) are counted in Total only.
func Summarize(ranges []float64) RangeSummary {
	s := RangeSummary{Total: len(ranges)}
	valid := make([]float64, 0, len(ranges))
	for _, r := range ranges {
		if math.IsInf(r, 0) || math.IsNaN(r) {
			continue
		}
		valid = append(valid, r)
	}
	s.Valid = len(valid)
	if s.Valid == 0 {
		return s
	}
	s.Min, s.Max = valid[0], valid[0]
	for _, r := range valid[1:] {
		s.Min = math.Min(s.Min, r)
		s.Max = math.Max(s.Max, r)
	}
	if s.Valid == 1 {
		s.Mean = valid[0]
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(valid, nil)
	return s
}
