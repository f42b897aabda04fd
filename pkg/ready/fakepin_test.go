package ready

import (
	"time"

	"periph.io/x/conn/v3/gpio"
)

// fakePin implements gpio.PinIn for tests. WaitForEdge fires for the
// first `edges` calls, then times out.
type fakePin struct {
	edges int
}

func (p *fakePin) String() string                { return "fake" }
func (p *fakePin) Name() string                  { return "fake" }
func (p *fakePin) Number() int                   { return 0 }
func (p *fakePin) Function() string              { return "In" }
func (p *fakePin) Halt() error                   { return nil }
func (p *fakePin) In(gpio.Pull, gpio.Edge) error { return nil }
func (p *fakePin) Read() gpio.Level              { return gpio.Low }
func (p *fakePin) Pull() gpio.Pull               { return gpio.PullDown }
func (p *fakePin) DefaultPull() gpio.Pull        { return gpio.PullDown }

func (p *fakePin) WaitForEdge(timeout time.Duration) bool {
	if p.edges > 0 {
		p.edges--
		return true
	}
	if timeout > time.Millisecond {
		timeout = time.Millisecond
	}
	time.Sleep(timeout)
	return false
}
