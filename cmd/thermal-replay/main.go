// thermal-replay plays a recorded .dat file back through the display
// pipeline, one line per frame.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openthermal/go-senxor/internal/log"
	"github.com/openthermal/go-senxor/pkg/display"
	"github.com/openthermal/go-senxor/pkg/frame"
)

func main() {
	width := flag.Int("width", 80, "Frame width in samples")
	height := flag.Int("height", 62, "Frame height in samples")
	fps := flag.Float64("framerate", 7, "Playback framerate in fps")
	title := flag.String("title", "Thermal Replay", "Window title")
	flag.Parse()
	log.Init("")

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: thermal-replay [flags] <recording.dat>")
		os.Exit(2)
	}
	if err := run(flag.Arg(0), *width, *height, *fps, *title); err != nil {
		log.Error("replay failed", "err", err)
		os.Exit(1)
	}
}

func run(path string, width, height int, fps float64, title string) error {
	if fps <= 0 {
		return fmt.Errorf("framerate must be positive, got %v", fps)
	}
	if width < 1 || height < 1 {
		return fmt.Errorf("frame geometry must be positive, got %dx%d", width, height)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	win := display.NewWindow(title)
	defer win.Close()

	ticker := time.NewTicker(time.Duration(float64(time.Second) / fps))
	defer ticker.Stop()

	scanner := bufio.NewScanner(f)
	// A line of 80x62 two-decimal samples runs well past the default
	// scanner buffer.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	n := 0
	for scanner.Scan() {
		fr, err := frame.DecodeLine(scanner.Text(), width, height)
		if err != nil {
			return fmt.Errorf("frame %d: %w", n+1, err)
		}
		quit, err := win.Show(fr.Normalize())
		if err != nil {
			return err
		}
		n++
		if quit {
			break
		}
		select {
		case <-ctx.Done():
			log.Info("replay interrupted", "frames", n)
			return nil
		case <-ticker.C:
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	log.Info("replay finished", "frames", n)
	return nil
}
