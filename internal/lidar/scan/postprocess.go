package scan

import "math"

// PostProcessor converts raw hit distances into calibrated range and
// intensity values.
type PostProcessor struct {
	MinRange  float64
	Intensity float64
}

// NewPostProcessor returns the post-processor for cfg.
func NewPostProcessor(cfg Config) PostProcessor {
	return PostProcessor{MinRange: cfg.MinRange, Intensity: cfg.Intensity}
}

// Process writes one range and one intensity per index. A miss, a
// non-positive distance, or a return at or inside MinRange becomes +Inf;
// any other hit reports its distance unchanged. All four slices must have
// the same length.
func (p PostProcessor) Process(distances []float64, hitMask []bool, ranges, intensities []float64) {
	inf := math.Inf(1)
	for i, d := range distances {
		if hitMask[i] && d > 0 && d > p.MinRange {
			ranges[i] = d
		} else {
			ranges[i] = inf
		}
		intensities[i] = p.Intensity
	}
}

// Blank fills a scan with no returns.
func (p PostProcessor) Blank(ranges, intensities []float64) {
	inf := math.Inf(1)
	for i := range ranges {
		ranges[i] = inf
		intensities[i] = p.Intensity
	}
}
