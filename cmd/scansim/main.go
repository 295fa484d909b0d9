// Command scansim runs the simulated planar LIDAR: a vehicle carrying one
// scanner drives through a scene while scans are served over HTTP, streamed
// over gRPC, recorded to SQLite and emitted on a serial line.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/scansim/internal/config"
	"github.com/banshee-data/scansim/internal/lidar"
	"github.com/banshee-data/scansim/internal/lidar/frame"
	"github.com/banshee-data/scansim/internal/lidar/monitor"
	"github.com/banshee-data/scansim/internal/lidar/recorder"
	"github.com/banshee-data/scansim/internal/lidar/scan"
	"github.com/banshee-data/scansim/internal/lidar/serialout"
	"github.com/banshee-data/scansim/internal/lidar/visualiser"
	"github.com/banshee-data/scansim/internal/monitoring"
	"github.com/banshee-data/scansim/internal/sim"
	"github.com/banshee-data/scansim/internal/timeutil"
	"github.com/banshee-data/scansim/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a JSON configuration file (default: built-in defaults)")
	scenePath   = flag.String("scene", "", "Path to a JSON scene file (default: built-in demo room)")
	listen      = flag.String("listen", ":8081", "HTTP monitor listen address (empty disables)")
	grpcListen  = flag.String("grpc-listen", "", "gRPC scan stream listen address, e.g. localhost:50061 (empty disables)")
	dbFile      = flag.String("db", "", "SQLite database to record scans into (empty disables recording)")
	serialPath  = flag.String("serial", "", "Serial device to emit scan lines on (empty disables)")
	steps       = flag.Int("steps", 0, "Stop after this many simulation steps (0 runs until interrupted)")
	realtime    = flag.Bool("realtime", true, "Pace simulation steps against the wall clock")
	replayRun   = flag.String("replay", "", "Stream a recorded run (id or \"latest\") from -db over gRPC instead of simulating")
	replayRate  = flag.Float64("replay-rate", 1, "Replay speed multiplier (0 sends as fast as possible)")
	showVersion = flag.Bool("version", false, "Print version and exit")
	logDiag     = flag.Bool("log-diag", false, "Enable diagnostic logging")
	logTrace    = flag.Bool("log-trace", false, "Enable per-scan trace logging")
)

// options carries the parsed command line into run.
type options struct {
	configPath string
	scenePath  string
	listen     string
	grpcListen string
	dbFile     string
	serialPath string
	steps      int
	realtime   bool
	replayRun  string
	replayRate float64
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("scansim", version.String())
		return
	}

	writers := lidar.LogWriters{Ops: os.Stderr}
	if *logDiag || *logTrace {
		writers.Diag = os.Stderr
	}
	if *logTrace {
		writers.Trace = os.Stderr
	}
	lidar.SetLogWriters(writers)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := options{
		configPath: *configPath,
		scenePath:  *scenePath,
		listen:     *listen,
		grpcListen: *grpcListen,
		dbFile:     *dbFile,
		serialPath: *serialPath,
		steps:      *steps,
		realtime:   *realtime,
		replayRun:  *replayRun,
		replayRate: *replayRate,
	}
	if err := run(ctx, opts); err != nil {
		log.Fatalf("scansim: %v", err)
	}
	log.Print("scansim: graceful shutdown complete")
}

func run(ctx context.Context, opts options) error {
	if !opts.realtime && opts.steps <= 0 {
		return errors.New("-realtime=false requires -steps")
	}

	cfg := config.EmptySimConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.LoadSimConfig(opts.configPath); err != nil {
			return err
		}
		log.Printf("Loaded configuration from %s", opts.configPath)
	}

	if opts.replayRun != "" {
		return replay(ctx, cfg, opts)
	}
	return simulate(ctx, cfg, opts)
}

func simulate(ctx context.Context, cfg *config.SimConfig, opts options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	scanCfg, err := cfg.ScanConfig()
	if err != nil {
		return err
	}
	scene, err := loadScene(opts.scenePath)
	if err != nil {
		return err
	}
	scene.SetWorkers(cfg.GetIntersectWorkers())

	x, y, yaw := cfg.GetStartPose()
	vehicle := sim.NewVehicle(x, y, 0, yaw)
	vehicle.SetTwist(sim.Twist{Linear: cfg.GetSpeed(), YawRate: cfg.GetYawRate()})

	world, err := sim.NewWorld(scene, vehicle, cfg.GetTick())
	if err != nil {
		return err
	}
	sensor, err := scan.New(scanCfg, scene, frame.Mount{Parent: vehicle, Offset: cfg.GetMountOffset()},
		scan.WithName(cfg.GetSensorName()))
	if err != nil {
		return err
	}
	defer sensor.Close()
	world.AddSensor(sensor)
	log.Printf("Sensor %s: %d samples per scan at %.1f Hz, %d objects in scene",
		sensor.Name(), scanCfg.MeasurementsPerScan(), scanCfg.ScanRateHz, scene.Len())

	// Hooks run in the order added, all after the sensor.
	head := frame.NewHeadAnimator(scanCfg.ScanRateHz)
	world.AddHook("head", animateHead(head))

	var admin monitor.AdminRoutes
	if opts.dbFile != "" {
		store, err := recorder.Open(opts.dbFile)
		if err != nil {
			return err
		}
		defer store.Close()

		runInfo, err := store.StartRun(ctx, sensor.Name(), scanCfg, time.Now())
		if err != nil {
			return err
		}
		rec, err := recorder.New(store, runInfo.RunID, sensor.Output(), cfg.GetRecordRateHz())
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(context.WithoutCancel(ctx)); err != nil {
				monitoring.Logf("failed to close recorder: %v", err)
			}
		}()
		world.AddHook("recorder", rec)
		admin = store
		log.Printf("Recording run %s to %s", runInfo.RunID, opts.dbFile)
	}

	var stream monitor.StreamStats
	if opts.grpcListen != "" {
		pub := visualiser.NewPublisher(cfg.VisualiserConfig(opts.grpcListen))
		if err := pub.Start(); err != nil {
			return err
		}
		defer pub.Stop()
		world.AddHook("visualiser", visualiser.NewForwarder(pub, sensor))
		stream = pub
	}

	if opts.serialPath != "" {
		port, err := serialout.Open(opts.serialPath, cfg.GetSerial())
		if err != nil {
			return err
		}
		emitter := serialout.NewEmitter(opts.serialPath, port, sensor.Output())
		defer emitter.Close()
		world.AddHook("serial", emitter)
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	if opts.listen != "" {
		ws, err := monitor.NewWebServer(monitor.WebServerConfig{
			Address: opts.listen,
			Sensors: []monitor.Sensor{sensor},
			Stream:  stream,
			Admin:   admin,
			Heads:   map[string]monitor.HeadAngle{sensor.Name(): head},
		})
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ws.Start(ctx); err != nil {
				monitoring.Logf("HTTP server error: %v", err)
				cancel()
			}
		}()
	}

	runner := sim.NewRunner(world, timeutil.RealClock{})
	switch {
	case opts.steps > 0 && !opts.realtime:
		err = runner.RunSteps(ctx, opts.steps)
	case opts.steps > 0:
		world.AddHook("step-limit", stopAfter(opts.steps, cancel))
		err = runner.Run(ctx)
	default:
		err = runner.Run(ctx)
	}
	cancel()

	st := world.Stats()
	log.Printf("Simulated %v in %d steps: %d scans, %d sensor errors, %d hook errors, %.1f m travelled",
		st.SimTime, st.Steps, st.Scans, st.SensorErrors, st.HookErrors, st.Odometer)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// animateHead spins the displayed sensor head with simulation time.
func animateHead(h *frame.HeadAnimator) sim.Hook {
	return sim.HookFunc(func(_ context.Context, dt time.Duration) error {
		h.Advance(dt)
		return nil
	})
}

// stopAfter returns a hook that calls stop once n steps have run.
func stopAfter(n int, stop context.CancelFunc) sim.Hook {
	count := 0
	return sim.HookFunc(func(context.Context, time.Duration) error {
		count++
		if count == n {
			stop()
		}
		return nil
	})
}

func replay(ctx context.Context, cfg *config.SimConfig, opts options) error {
	if opts.dbFile == "" {
		return errors.New("-replay requires -db")
	}
	store, err := recorder.Open(opts.dbFile)
	if err != nil {
		return err
	}
	defer store.Close()

	runID := opts.replayRun
	if runID == "latest" {
		latest, err := store.LatestRun(ctx)
		if err != nil {
			return err
		}
		runID = latest.RunID
	}
	msgs, err := store.Messages(ctx, runID)
	if err != nil {
		return err
	}

	pub := visualiser.NewPublisher(cfg.VisualiserConfig(opts.grpcListen))
	if err := pub.Start(); err != nil {
		return err
	}
	defer pub.Stop()

	log.Printf("Replaying %d scans of run %s at %gx", len(msgs), runID, opts.replayRate)
	n, err := visualiser.Replay(ctx, pub, msgs, opts.replayRate, timeutil.RealClock{})
	log.Printf("Replayed %d of %d scans", n, len(msgs))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
