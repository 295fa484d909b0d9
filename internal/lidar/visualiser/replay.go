package visualiser

import (
	"context"
	"time"

	"github.com/banshee-data/scansim/internal/lidar"
	"github.com/banshee-data/scansim/internal/lidar/laserscan"
	"github.com/banshee-data/scansim/internal/timeutil"
)

// Replay publishes recorded messages in order. Consecutive scans are
// spaced on clock by their stamp difference divided by rate; a rate <= 0
// publishes without pacing. It returns the number of scans published.
func Replay(ctx context.Context, pub *Publisher, msgs []laserscan.Message, rate float64, clock timeutil.Clock) (int, error) {
	lidar.Opsf("visualiser: replaying %d scans at %.2gx", len(msgs), rate)
	var last time.Duration
	for i, m := range msgs {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if i > 0 && rate > 0 {
			if d := time.Duration(float64(m.Stamp-last) / rate); d > 0 {
				clock.Sleep(d)
			}
		}
		last = m.Stamp
		pub.Publish(m)
	}
	lidar.Opsf("visualiser: replay complete")
	return len(msgs), nil
}
