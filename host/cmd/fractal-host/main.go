package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"fractalink/host/app"
	"fractalink/host/config"
	"fractalink/host/console"
	"fractalink/host/emulator"
	"fractalink/host/events"
	"fractalink/host/logging"
	"fractalink/host/mcu"
	"fractalink/host/render"
	"fractalink/host/work"
)

var (
	configPath = flag.String("config", "", "YAML configuration file")
	device     = flag.String("device", "", "Serial device path (overrides config)")
	baud       = flag.Int("baud", 0, "Baud rate (overrides config)")
	logLevel   = flag.String("log-level", "", "Log level: debug, info, warn, error")
	output     = flag.String("output", "", "Image file written after each run (.png, .jpg, .bmp)")
	noExport   = flag.Bool("no-export", false, "Do not write an image after runs")
	keys       = flag.Bool("keys", false, "Single-key commands (raw terminal) instead of lines")
	emulate    = flag.Bool("emulate", false, "Run against an in-process emulated device")
	pixelDelay = flag.Duration("pixel-delay", 0, "Emulated device: time spent per pixel")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		console.Error(os.Stderr, "%v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	log, _, err := logging.New(logging.Options{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		File:        cfg.Log.File,
	})
	if err != nil {
		return err
	}
	defer log.Sync()

	fmt.Println("Fractal Host - serial fractal renderer")
	fmt.Println("======================================")
	fmt.Println()

	var exporter work.Exporter
	if cfg.Export.Enabled {
		fe, err := render.NewFileExporter(cfg.Export.Path, cfg.Export.Scale, log.Named("render"))
		if err != nil {
			return err
		}
		exporter = fe
	}

	link, closeDevice, err := connect(cfg, log)
	if err != nil {
		return err
	}
	defer closeDevice()

	q := events.NewQueue(cfg.Queue.Capacity)
	sched := work.NewScheduler(cfg.Settings(), link, exporter, log.Named("work"))

	input := &console.Reader{
		In:    os.Stdin,
		Out:   os.Stdout,
		Queue: q,
		Log:   log.Named("console"),
		Mode:  console.ModeLine,
	}
	if *keys {
		restore, err := console.EnableRaw(os.Stdin)
		if err != nil {
			console.Warn(os.Stdout, "single-key mode unavailable (%v), reading lines", err)
		} else {
			defer restore()
			input.Mode = console.ModeKey
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console.Info(os.Stdout, "%s, c = %g%+gi, %d iterations",
		sched.Plan(), sched.Params().CRe, sched.Params().CIm, sched.Params().IterationCap)
	console.PrintHelp(os.Stdout)

	a := &app.App{
		Link:      link,
		Input:     input,
		Queue:     q,
		Scheduler: sched,
		Log:       log,
		Observe:   progress(sched),
	}
	if err := a.Run(ctx); err != nil {
		return err
	}
	fmt.Println("Goodbye!")
	return nil
}

// applyFlags lets explicitly set flags win over file and environment
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Serial.Device = *device
		case "baud":
			cfg.Serial.Baud = *baud
		case "log-level":
			cfg.Log.Level = *logLevel
		case "output":
			cfg.Export.Path = *output
		case "no-export":
			cfg.Export.Enabled = !*noExport
		}
	})
}

// connect opens the configured serial device, or starts an emulated one
func connect(cfg config.Config, log *zap.Logger) (*mcu.MCU, func(), error) {
	if *emulate {
		emu := emulator.New(emulator.Options{
			ReadTimeout: cfg.Serial.ReadTimeout,
			PixelDelay:  *pixelDelay,
			Log:         log.Named("emulator"),
		})
		if err := emu.Start(); err != nil {
			return nil, nil, err
		}
		link := mcu.New(emu.Port(), log.Named("mcu"))
		return link, func() { emu.Close() }, nil
	}

	fmt.Printf("Connecting to device on %s...\n", cfg.Serial.Device)
	link, err := mcu.Connect(cfg.SerialPort(), log.Named("mcu"))
	if err != nil {
		return nil, nil, err
	}
	if cfg.Serial.DrainOnOpen {
		if err := link.Drain(); err != nil {
			link.Close()
			return nil, nil, err
		}
	}
	fmt.Println("Connected successfully!")
	return link, func() { link.Close() }, nil
}

// progress reports run transitions on the terminal
func progress(sched *work.Scheduler) app.Observer {
	last := work.PhaseIdle
	return func(e events.Event, st work.HostState) {
		if st.Phase == last {
			return
		}
		last = st.Phase
		switch st.Phase {
		case work.PhaseAwaitingChunk:
			console.Info(os.Stdout, "run %s started", st.RunID)
		case work.PhaseComplete:
			s := sched.Stats()
			console.Info(os.Stdout, "run complete: %d chunks, %d pixels in %v",
				s.Chunks, s.Applied, s.Elapsed.Round(time.Millisecond))
		case work.PhaseAborted:
			console.Warn(os.Stdout, "run aborted by the device")
		case work.PhaseIdle:
			console.Info(os.Stdout, "idle")
		}
	}
}
