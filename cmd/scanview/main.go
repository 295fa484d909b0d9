// Command scanview connects to a scansim gRPC scan stream and prints each
// scan, either as a one-line summary or as the serial line the emulated
// sensor would emit.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/scansim/internal/lidar"
	"github.com/banshee-data/scansim/internal/lidar/laserscan"
	"github.com/banshee-data/scansim/internal/lidar/serialout"
	"github.com/banshee-data/scansim/internal/lidar/visualiser"
)

var (
	addr   = flag.String("addr", visualiser.DefaultConfig().ListenAddr, "gRPC scan stream address")
	frame  = flag.String("frame", "", "Only show scans from this sensor (empty shows all)")
	count  = flag.Int("count", 0, "Exit after this many scans (0 streams until interrupted)")
	format = flag.String("format", "summary", "Output format: summary or line")
)

// errDone ends the stream once enough scans have been printed.
var errDone = errors.New("scan count reached")

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := visualiser.Dial(*addr)
	if err != nil {
		log.Fatalf("scanview: %v", err)
	}
	defer client.Close()

	if err := view(ctx, client, *frame, *count, *format, os.Stdout); err != nil {
		log.Fatalf("scanview: %v", err)
	}
}

func view(ctx context.Context, client *visualiser.Client, frameID string, n int, format string, w io.Writer) error {
	var write func(io.Writer, laserscan.Message) error
	switch format {
	case "summary":
		write = writeSummary
	case "line":
		write = writeLine
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	seen := 0
	err := client.StreamScans(ctx, frameID, func(m laserscan.Message) error {
		if err := write(w, m); err != nil {
			return err
		}
		seen++
		if n > 0 && seen >= n {
			return errDone
		}
		return nil
	})
	if errors.Is(err, errDone) {
		return nil
	}
	return err
}

func ranges64(m laserscan.Message) []float64 {
	out := make([]float64, len(m.Ranges))
	for i, r := range m.Ranges {
		out[i] = float64(r)
	}
	return out
}

func writeSummary(w io.Writer, m laserscan.Message) error {
	s := lidar.Summarize(ranges64(m))
	state := ""
	switch {
	case m.Failed:
		state = " FAILED"
	case m.Stale:
		state = " stale"
	}
	_, err := fmt.Fprintf(w, "%s #%d t=%.3fs valid=%d/%d min=%.2f max=%.2f mean=%.2f%s\n",
		m.FrameID, m.Seq, m.Stamp.Seconds(), s.Valid, s.Total, s.Min, s.Max, s.Mean, state)
	return err
}

func writeLine(w io.Writer, m laserscan.Message) error {
	_, err := io.WriteString(w, serialout.FormatLine(m.Seq, ranges64(m)))
	return err
}
