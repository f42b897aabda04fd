// Package ready abstracts the sensor's frame-ready signal. The edge
// notifier blocks on a hardware interrupt line; the poll notifier
// falls back to probing a status register when no line is wired up.
package ready

import (
	"context"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Notifier blocks until the sensor has a frame available.
type Notifier interface {
	// Wait returns nil once a frame is ready, or the context error
	// if the context is canceled first.
	Wait(ctx context.Context) error
}

// edgeWaitSlice bounds each hardware wait so context cancellation is
// observed promptly.
const edgeWaitSlice = 250 * time.Millisecond

// Edge waits for a rising edge on the data-ready GPIO line.
type Edge struct {
	pin gpio.PinIn
}

// NewEdge configures the pin for rising-edge detection.
func NewEdge(pin gpio.PinIn) (*Edge, error) {
	if err := pin.In(gpio.PullDown, gpio.RisingEdge); err != nil {
		return nil, err
	}
	return &Edge{pin: pin}, nil
}

func (e *Edge) Wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.pin.WaitForEdge(edgeWaitSlice) {
			return nil
		}
	}
}

// DefaultPollInterval is the backoff between readiness probes.
const DefaultPollInterval = 10 * time.Millisecond

// Poll probes a readiness function at a fixed interval.
type Poll struct {
	// Ready probes the sensor, typically the status register's
	// data-ready bit.
	Ready func() (bool, error)

	// Interval between probes. Zero means DefaultPollInterval.
	Interval time.Duration
}

func (p *Poll) Wait(ctx context.Context) error {
	interval := p.Interval
	if interval == 0 {
		interval = DefaultPollInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		ok, err := p.Ready()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
