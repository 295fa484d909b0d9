package visualiser

import (
	"context"
	"time"

	"github.com/banshee-data/scansim/internal/lidar/laserscan"
	"github.com/banshee-data/scansim/internal/lidar/scan"
)

// ScanSource is the read side of a sensor.
type ScanSource interface {
	Name() string
	Latest() (scan.Scan, *scan.DirectionTable, scan.Config)
}

// Forwarder publishes each new scan of a sensor. Tick is called from the
// simulation step; scans are published at most once each.
type Forwarder struct {
	pub     *Publisher
	src     ScanSource
	lastSeq uint64
}

// NewForwarder returns a forwarder from src to pub.
func NewForwarder(pub *Publisher, src ScanSource) *Forwarder {
	return &Forwarder{pub: pub, src: src}
}

// Tick publishes the sensor's latest scan if it has not been published.
func (f *Forwarder) Tick(_ context.Context, _ time.Duration) error {
	s, table, cfg := f.src.Latest()
	if s.Seq == 0 || s.Seq == f.lastSeq {
		return nil
	}
	f.lastSeq = s.Seq
	f.pub.Publish(laserscan.FromScan(s, table, cfg, f.src.Name()))
	return nil
}
