// thermal-stream acquires frames from an MI48 thermal camera over
// SPI/I2C, shows a false-color preview and optionally records raw
// frames to disk.
//
// Press 'q' in the display window (or Ctrl+C) to quit.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/openthermal/go-senxor/internal/config"
	"github.com/openthermal/go-senxor/internal/log"
	"github.com/openthermal/go-senxor/pkg/debug"
	"github.com/openthermal/go-senxor/pkg/display"
	"github.com/openthermal/go-senxor/pkg/mi48"
	"github.com/openthermal/go-senxor/pkg/ready"
	"github.com/openthermal/go-senxor/pkg/record"
	"github.com/openthermal/go-senxor/pkg/stream"
	"github.com/openthermal/go-senxor/pkg/web"
)

const spiSpeed = 31200 * physic.KiloHertz

func main() {
	cfg := stream.DefaultConfig()
	flag.BoolVar(&cfg.Record, "record", false, "Record thermal data to file")
	flag.Float64Var(&cfg.Framerate, "framerate", cfg.Framerate, "Camera framerate in fps")
	flag.StringVar(&cfg.RecordDir, "record-dir", cfg.RecordDir, "Directory for recording files")
	flag.BoolVar(&cfg.Celsius, "celsius", false, "Convert samples to degrees Celsius")
	flag.BoolVar(&cfg.PollReady, "poll", false, "Poll the status register instead of waiting on the data-ready line")
	flag.BoolVar(&cfg.Headless, "headless", false, "No local display window (requires -web)")
	flag.StringVar(&cfg.WebAddr, "web", "", "Preview server listen address (e.g. :8080), empty to disable")
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	debugFrames := flag.Bool("debug-frames", false, "Log per-frame header and statistics")
	flag.Parse()

	if *debugFlag {
		log.Init("debug")
	} else {
		log.Init("")
	}
	debug.Enabled = *debugFlag
	debug.Frames = *debugFrames

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, "invalid configuration:", e)
		}
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		log.Error("stream failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg stream.Config) error {
	// Host drivers must load before any hardware is touched.
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("initialize periph host drivers: %w", err)
	}

	i2cBus, err := i2creg.Open(config.I2CBus())
	if err != nil {
		return fmt.Errorf("open I2C bus %q: %w", config.I2CBus(), err)
	}
	defer i2cBus.Close()

	spiPort, err := spireg.Open(config.SPIPort())
	if err != nil {
		return fmt.Errorf("open SPI port %q: %w", config.SPIPort(), err)
	}
	defer spiPort.Close()

	spiConn, err := spiPort.Connect(spiSpeed, spi.Mode0, 8)
	if err != nil {
		return fmt.Errorf("configure SPI: %w", err)
	}

	resetPin := gpioreg.ByName(config.ResetPin())
	if resetPin == nil {
		return fmt.Errorf("reset pin %q not found", config.ResetPin())
	}
	log.Info("resetting sensor", "pin", config.ResetPin())
	if err := mi48.Reset(resetPin); err != nil {
		return err
	}

	dev, err := mi48.Open(mi48.Opts{
		Bus:     i2cBus,
		Addr:    config.DefaultI2CAddr,
		Conn:    spiConn,
		Celsius: cfg.Celsius,
	})
	if err != nil {
		return fmt.Errorf("open sensor: %w", err)
	}

	info := dev.Info()
	log.Info("sensor ready",
		"camera", info.CameraID,
		"module", info.Module,
		"firmware", info.FWVersion,
		"size", fmt.Sprintf("%dx%d", info.Width, info.Height))

	effective, err := dev.SetFramerate(cfg.Framerate)
	if err != nil {
		return err
	}
	log.Info("framerate set", "requested", cfg.Framerate, "effective", effective)

	// On-chip filtering arrived with firmware 2.
	if info.FWMajor >= 2 {
		if err := dev.EnableFilter(true, true, false); err != nil {
			return err
		}
		if err := dev.SetOffsetCorr(0); err != nil {
			return err
		}
		log.Info("on-chip filtering enabled")
	}

	notifier := buildNotifier(cfg, dev)

	var rec *record.Recorder
	if cfg.Record {
		rec, err = record.Open(cfg.RecordDir, record.Meta{
			CameraID:  info.CameraID,
			Module:    info.Module,
			FWVersion: info.FWVersion,
			Width:     info.Width,
			Height:    info.Height,
			Framerate: effective,
		})
		if err != nil {
			return err
		}
		log.Info("recording", "path", rec.Path())
	}

	var srv *web.Server
	if cfg.WebAddr != "" {
		srv = web.NewServer(cfg.WebAddr)
		srv.SetStatus(web.Status{
			CameraID:  info.CameraID,
			Module:    info.Module,
			FWVersion: info.FWVersion,
			Framerate: effective,
		})
		srv.StartAsync()
		defer srv.Shutdown()
	}

	var sink stream.Sink
	if cfg.Headless {
		h := &display.Headless{}
		if srv != nil {
			h.OnFrame = srv.PublishFrame
		}
		sink = h
	} else {
		w := display.NewWindow(cfg.WindowTitle)
		if srv != nil {
			w.OnFrame = srv.PublishFrame
		}
		sink = w
	}

	if err := dev.Start(true, cfg.WithHeader); err != nil {
		return err
	}

	s := stream.New(dev, notifier, sink, rec, func() error {
		return dev.Stop(250*time.Millisecond, 1200*time.Millisecond)
	})
	if srv != nil {
		srv.StatusFunc = func(st *web.Status) {
			st.Frames = s.Frames()
			st.Recording = s.RecordingPath()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("streaming, press 'q' to quit")
	return s.Run(ctx)
}

// buildNotifier picks the frame-ready wait strategy: the hardware
// data-ready line when wired and allowed, the 10ms status poll
// otherwise.
func buildNotifier(cfg stream.Config, dev *mi48.Device) ready.Notifier {
	if !cfg.PollReady {
		if pin := gpioreg.ByName(config.ReadyPin()); pin != nil {
			edge, err := ready.NewEdge(pin)
			if err == nil {
				log.Info("using data-ready line", "pin", config.ReadyPin())
				return edge
			}
			log.Warn("data-ready line unusable, falling back to polling", "err", err)
		} else {
			log.Warn("data-ready pin not found, falling back to polling", "pin", config.ReadyPin())
		}
	}
	return &ready.Poll{Ready: dev.DataReady}
}
