// Package stream runs the frame acquisition loop: wait for the
// sensor's data-ready signal, read one frame, record it, display it.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/openthermal/go-senxor/internal/log"
	"github.com/openthermal/go-senxor/pkg/debug"
	"github.com/openthermal/go-senxor/pkg/frame"
	"github.com/openthermal/go-senxor/pkg/mi48"
	"github.com/openthermal/go-senxor/pkg/ready"
	"github.com/openthermal/go-senxor/pkg/record"
)

// emptyReadWarnEvery rate-limits the warning for sustained empty
// reads. A nil frame is expected occasionally (spurious data-ready);
// a long unbroken run means the sensor has stalled.
const emptyReadWarnEvery = 1000

// Source yields frames from the sensor. A (nil, nil, nil) return
// means no data this cycle; the loop retries on the next signal. Any
// error is fatal to the loop.
type Source interface {
	Read() (*frame.Frame, *frame.Header, error)
}

// Sink consumes normalized frames for display. Show reports quit when
// the operator asked to stop.
type Sink interface {
	Show(g *frame.Gray) (quit bool, err error)
	Close() error
}

// Streamer owns one acquisition session. All exit paths, including
// fatal read errors and context cancellation, funnel through Close.
type Streamer struct {
	src      Source
	notifier ready.Notifier
	sink     Sink
	rec      *record.Recorder // nil when recording is disabled
	stopDrv  func() error     // bounded driver stop, nil for replay sources

	frames atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

// New assembles a streamer. rec and stopDriver may be nil.
func New(src Source, notifier ready.Notifier, sink Sink, rec *record.Recorder, stopDriver func() error) *Streamer {
	return &Streamer{
		src:      src,
		notifier: notifier,
		sink:     sink,
		rec:      rec,
		stopDrv:  stopDriver,
	}
}

// Frames returns the number of frames displayed so far.
func (s *Streamer) Frames() int64 {
	return s.frames.Load()
}

// RecordingPath returns the active recording file, or "".
func (s *Streamer) RecordingPath() string {
	if s.rec == nil {
		return ""
	}
	return s.rec.Path()
}

// Run drives the acquisition loop until the operator quits, the
// context is canceled, or a fatal driver error occurs. Cleanup runs
// on every exit path.
func (s *Streamer) Run(ctx context.Context) error {
	defer s.Close()

	emptyStreak := 0
	for {
		if err := s.notifier.Wait(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Info("acquisition stopped", "frames", s.frames.Load())
				return nil
			}
			return fmt.Errorf("wait for frame: %w", err)
		}

		f, hdr, err := s.src.Read()
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		if f == nil {
			// No data this cycle. Expected now and then; warn when the
			// sensor appears stalled.
			emptyStreak++
			if emptyStreak%emptyReadWarnEvery == 0 {
				log.Warn("sensor signaled ready but returned no data", "consecutive", emptyStreak)
			}
			continue
		}
		emptyStreak = 0

		if s.rec != nil {
			if err := s.rec.Write(f); err != nil {
				return err
			}
		}

		if hdr != nil {
			debug.FrameLog("%s  %s\n", mi48.FormatHeader(hdr), mi48.FormatFrameStats(f))
		}

		quit, err := s.sink.Show(f.Normalize())
		if err != nil {
			return fmt.Errorf("display frame: %w", err)
		}
		s.frames.Add(1)

		if quit {
			log.Info("quit requested", "frames", s.frames.Load())
			return nil
		}
		select {
		case <-ctx.Done():
			log.Info("acquisition stopped", "frames", s.frames.Load())
			return nil
		default:
		}
	}
}

// Close runs the shutdown sequence exactly once: stop the driver with
// its bounded timeouts, close the recording sink, release the display.
// Subsequent calls return the first result.
func (s *Streamer) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.stopDrv != nil {
			if err := s.stopDrv(); err != nil {
				errs = append(errs, err)
			}
		}
		if s.rec != nil {
			if err := s.rec.Close(); err != nil {
				errs = append(errs, err)
			} else {
				log.Info("recording saved", "path", s.rec.Path(), "frames", s.rec.Frames())
			}
		}
		if err := s.sink.Close(); err != nil {
			errs = append(errs, err)
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
