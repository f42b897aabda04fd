// Package mi48 drives the Meridian MI48 (SenXor) thermal sensor over
// I2C (control registers) and SPI (frame readout).
package mi48

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/spi"

	"github.com/openthermal/go-senxor/internal/log"
	"github.com/openthermal/go-senxor/pkg/frame"
)

// maxFramerate is the sensor's base readout rate in frames per second.
// The FRAME_RATE register holds an integer divider of this rate.
const maxFramerate = 25.5

// defaultXferSize is the SPI transfer chunk size in bytes, two rows of
// an 80-column array per transfer.
const defaultXferSize = 160

// RegisterBus is the control-plane access to the sensor, normally I2C.
type RegisterBus interface {
	ReadRegister(reg uint8, buf []byte) error
	WriteRegister(reg uint8, val uint8) error
}

// FrameBus reads raw frame data from the sensor, normally SPI.
type FrameBus interface {
	ReadFrame(buf []byte) error
}

// CameraInfo identifies the attached sensor module.
type CameraInfo struct {
	CameraID  string
	Module    string
	FWVersion string
	FWMajor   int
	Width     int
	Height    int
}

// Device is an open MI48 sensor.
type Device struct {
	regs RegisterBus
	data FrameBus

	info       CameraInfo
	withHeader bool
	convert    bool
	started    bool
}

// Opts configures Open.
type Opts struct {
	// Bus and Addr locate the control registers. Addr defaults to 0x40.
	Bus  i2c.Bus
	Addr uint16

	// Conn carries frame data. XferSize defaults to 160 bytes.
	Conn     spi.Conn
	XferSize int

	// Celsius converts raw deci-Kelvin counts to degrees Celsius on
	// read. Recorded output switches from integer counts to
	// two-decimal temperatures.
	Celsius bool
}

// Open binds the sensor on the given buses and reads its identity.
func Open(opts Opts) (*Device, error) {
	if opts.Addr == 0 {
		opts.Addr = 0x40
	}
	if opts.XferSize == 0 {
		opts.XferSize = defaultXferSize
	}

	d := New(
		&i2cRegisters{dev: i2c.Dev{Bus: opts.Bus, Addr: opts.Addr}},
		&spiFrames{conn: opts.Conn, xfer: opts.XferSize},
	)
	d.convert = opts.Celsius

	if err := d.waitBoot(2 * time.Second); err != nil {
		return nil, err
	}
	if _, err := d.ReadInfo(); err != nil {
		return nil, err
	}
	return d, nil
}

// New builds a Device over explicit buses. Callers normally use Open;
// New exists for alternate transports and tests.
func New(regs RegisterBus, data FrameBus) *Device {
	return &Device{regs: regs, data: data}
}

// waitBoot polls the status register until the sensor leaves its boot
// sequence or the timeout expires.
func (d *Device) waitBoot(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		var status [1]byte
		if err := d.regs.ReadRegister(regStatus, status[:]); err != nil {
			return fmt.Errorf("mi48: read status: %w", err)
		}
		if status[0]&statusBooting == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("mi48: sensor still booting after %v", timeout)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// ReadInfo queries the sensor identity registers and caches the result.
func (d *Device) ReadInfo() (CameraInfo, error) {
	var id [6]byte
	if err := d.regs.ReadRegister(regSenxorID, id[:]); err != nil {
		return CameraInfo{}, fmt.Errorf("mi48: read sensor id: %w", err)
	}

	var fw [2]byte
	if err := d.regs.ReadRegister(regFWVersion, fw[:]); err != nil {
		return CameraInfo{}, fmt.Errorf("mi48: read firmware version: %w", err)
	}

	var typ [1]byte
	if err := d.regs.ReadRegister(regSenxorType, typ[:]); err != nil {
		return CameraInfo{}, fmt.Errorf("mi48: read sensor type: %w", err)
	}
	size, ok := sensorSizes[typ[0]]
	if !ok {
		return CameraInfo{}, fmt.Errorf("mi48: unknown sensor type 0x%02X", typ[0])
	}

	d.info = CameraInfo{
		CameraID:  fmt.Sprintf("%X", id[:]),
		Module:    cameraTypes[typ[0]],
		FWVersion: fmt.Sprintf("%d.%d", fw[1], fw[0]),
		FWMajor:   int(fw[1]),
		Width:     size.Width,
		Height:    size.Height,
	}
	return d.info, nil
}

// Info returns the cached camera identity.
func (d *Device) Info() CameraInfo {
	return d.info
}

// SetFramerate requests the closest supported framerate at or below
// the sensor base rate. Returns the effective framerate.
func (d *Device) SetFramerate(fps float64) (float64, error) {
	if fps <= 0 {
		return 0, fmt.Errorf("mi48: framerate must be positive, got %v", fps)
	}
	div := int(math.Round(maxFramerate / fps))
	if div < 1 {
		div = 1
	}
	if div > 255 {
		div = 255
	}
	if err := d.regs.WriteRegister(regFrameRate, uint8(div)); err != nil {
		return 0, fmt.Errorf("mi48: set framerate: %w", err)
	}
	return maxFramerate / float64(div), nil
}

// EnableFilter turns the sensor's on-chip filters on or off.
// Available on firmware major version 2 and later.
func (d *Device) EnableFilter(f1, f2, f3 bool) error {
	var bits uint8
	if f1 {
		bits |= filterF1
	}
	if f2 {
		bits |= filterF2
	}
	if f3 {
		bits |= filterF3
	}
	if err := d.regs.WriteRegister(regFilterControl, bits); err != nil {
		return fmt.Errorf("mi48: enable filter: %w", err)
	}
	return nil
}

// SetOffsetCorr sets the output offset correction in degrees Celsius,
// stored on the sensor in tenths of a degree.
func (d *Device) SetOffsetCorr(celsius float64) error {
	v := int(math.Round(celsius * 10))
	if v < -128 {
		v = -128
	}
	if v > 127 {
		v = 127
	}
	if err := d.regs.WriteRegister(regOffsetCorr, uint8(int8(v))); err != nil {
		return fmt.Errorf("mi48: set offset correction: %w", err)
	}
	return nil
}

// Start begins frame capture. With stream set the sensor free-runs at
// the configured framerate; otherwise it captures a single frame.
// withHeader prepends a metadata row to every frame.
func (d *Device) Start(stream, withHeader bool) error {
	mode := modeSingleFrame
	if stream {
		mode = modeContinuous
	}
	if !withHeader {
		mode |= modeNoHeader
	}
	if err := d.regs.WriteRegister(regFrameMode, mode); err != nil {
		return fmt.Errorf("mi48: start capture: %w", err)
	}
	d.withHeader = withHeader
	d.started = true
	return nil
}

// DataReady reports whether a frame is waiting to be read.
func (d *Device) DataReady() (bool, error) {
	var status [1]byte
	if err := d.regs.ReadRegister(regStatus, status[:]); err != nil {
		return false, fmt.Errorf("mi48: read status: %w", err)
	}
	return status[0]&statusDataReady != 0, nil
}

// Read fetches exactly one frame, plus its header when header output
// is enabled. When no frame is pending it returns (nil, nil, nil);
// the caller retries on the next data-ready signal.
func (d *Device) Read() (*frame.Frame, *frame.Header, error) {
	ready, err := d.DataReady()
	if err != nil {
		return nil, nil, err
	}
	if !ready {
		return nil, nil, nil
	}

	w, h := d.info.Width, d.info.Height
	rows := h
	if d.withHeader {
		rows++
	}
	buf := make([]byte, rows*w*2)
	if err := d.data.ReadFrame(buf); err != nil {
		return nil, nil, fmt.Errorf("mi48: read frame: %w", err)
	}

	var hdr *frame.Header
	if d.withHeader {
		hdr = parseHeader(buf[:w*2])
		buf = buf[w*2:]
	}

	raw := make([]uint16, w*h)
	for i := range raw {
		raw[i] = binary.LittleEndian.Uint16(buf[i*2:])
	}

	if d.convert {
		return frame.FromRaw(raw, w, h), hdr, nil
	}
	return &frame.Frame{Width: w, Height: h, Raw: raw}, hdr, nil
}

// Stop halts capture and leaves the sensor quiescent. It drains at
// most one pending frame while polling the status register, bounded
// by pollTimeout per poll cycle and stopTimeout overall. Safe to call
// more than once.
func (d *Device) Stop(pollTimeout, stopTimeout time.Duration) error {
	if !d.started {
		return nil
	}
	d.started = false

	if err := d.regs.WriteRegister(regFrameMode, 0); err != nil {
		return fmt.Errorf("mi48: stop capture: %w", err)
	}

	deadline := time.Now().Add(stopTimeout)
	for time.Now().Before(deadline) {
		var status [1]byte
		if err := d.regs.ReadRegister(regStatus, status[:]); err != nil {
			return fmt.Errorf("mi48: stop: read status: %w", err)
		}
		if status[0]&(statusCapturing|statusDataReady) == 0 {
			return nil
		}
		if status[0]&statusDataReady != 0 {
			// Drain the pending frame so the sensor can settle.
			w, h := d.info.Width, d.info.Height
			rows := h
			if d.withHeader {
				rows++
			}
			buf := make([]byte, rows*w*2)
			if err := d.data.ReadFrame(buf); err != nil {
				log.Warn("drain during stop failed", "err", err)
				return nil
			}
		}
		time.Sleep(pollTimeout)
	}
	log.Warn("sensor did not quiesce before stop timeout", "timeout", stopTimeout)
	return nil
}

// Reset pulses the sensor's active-low reset line and waits for the
// part to settle.
func Reset(pin gpio.PinOut) error {
	if err := pin.Out(gpio.Low); err != nil {
		return fmt.Errorf("mi48: assert reset: %w", err)
	}
	time.Sleep(35 * time.Microsecond)
	if err := pin.Out(gpio.High); err != nil {
		return fmt.Errorf("mi48: release reset: %w", err)
	}
	time.Sleep(50 * time.Millisecond)
	return nil
}

// i2cRegisters implements RegisterBus over an I2C device.
type i2cRegisters struct {
	dev i2c.Dev
}

func (b *i2cRegisters) ReadRegister(reg uint8, buf []byte) error {
	return b.dev.Tx([]byte{reg}, buf)
}

func (b *i2cRegisters) WriteRegister(reg uint8, val uint8) error {
	return b.dev.Tx([]byte{reg, val}, nil)
}

// spiFrames implements FrameBus over a SPI connection, reading in
// fixed-size chunks to stay under the controller's transfer limit.
type spiFrames struct {
	conn spi.Conn
	xfer int
}

func (b *spiFrames) ReadFrame(buf []byte) error {
	zeros := make([]byte, b.xfer)
	for off := 0; off < len(buf); off += b.xfer {
		end := off + b.xfer
		if end > len(buf) {
			end = len(buf)
		}
		if err := b.conn.Tx(zeros[:end-off], buf[off:end]); err != nil {
			return err
		}
	}
	return nil
}
