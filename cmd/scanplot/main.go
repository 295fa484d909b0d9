// Command scanplot writes PNG polar plots of scans recorded by scansim.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/scansim/internal/lidar/laserscan"
	"github.com/banshee-data/scansim/internal/lidar/monitor"
	"github.com/banshee-data/scansim/internal/lidar/recorder"
)

var (
	dbFile = flag.String("db", "scans.db", "Path to the recordings database")
	runID  = flag.String("run", "latest", "Run id to plot, or \"latest\"")
	outDir = flag.String("out", ".", "Directory to write plots into")
	every  = flag.Int("every", 1, "Plot every Nth scan")
	limit  = flag.Int("max", 10, "Maximum number of plots to write (0 for no limit)")
	list   = flag.Bool("list", false, "List recorded runs and exit")
)

func main() {
	flag.Parse()

	store, err := recorder.Open(*dbFile)
	if err != nil {
		log.Fatalf("scanplot: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if *list {
		if err := listRuns(ctx, store, os.Stdout); err != nil {
			log.Fatalf("scanplot: %v", err)
		}
		return
	}

	paths, err := plotRun(ctx, store, *runID, *outDir, *every, *limit)
	if err != nil {
		log.Fatalf("scanplot: %v", err)
	}
	for _, p := range paths {
		fmt.Println(p)
	}
}

func listRuns(ctx context.Context, store *recorder.Store, w io.Writer) error {
	runs, err := store.Runs(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSENSOR\tSTARTED\tSAMPLES")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", r.RunID, r.SensorName, r.Started.Format(time.RFC3339), r.Config.MeasurementsPerScan())
	}
	return tw.Flush()
}

// plotRun writes one PNG per selected scan of the run and returns the
// file paths in scan order.
func plotRun(ctx context.Context, store *recorder.Store, id, dir string, every, limit int) ([]string, error) {
	if every < 1 {
		return nil, errors.New("-every must be at least 1")
	}
	if id == "latest" {
		latest, err := store.LatestRun(ctx)
		if err != nil {
			return nil, err
		}
		id = latest.RunID
	}
	msgs, err := store.Messages(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var paths []string
	for i := 0; i < len(msgs); i += every {
		if limit > 0 && len(paths) >= limit {
			break
		}
		path := filepath.Join(dir, plotName(id, msgs[i]))
		if err := monitor.PlotScan(msgs[i], path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	log.Printf("Wrote %d plots of run %s (%d scans) to %s", len(paths), id, len(msgs), dir)
	return paths, nil
}

func plotName(runID string, m laserscan.Message) string {
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("scan-%s-%06d.png", short, m.Seq)
}
