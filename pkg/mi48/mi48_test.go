package mi48

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

// fakeRegs is a map-backed RegisterBus that records writes.
type fakeRegs struct {
	values map[uint8][]byte
	writes []regWrite
	err    error
}

type regWrite struct {
	reg uint8
	val uint8
}

func newFakeRegs() *fakeRegs {
	return &fakeRegs{values: map[uint8][]byte{
		regStatus:     {statusDataReady},
		regSenxorID:   {0xA1, 0xB2, 0xC3, 0xD4, 0xE5, 0xF6},
		regFWVersion:  {1, 2}, // minor, major
		regSenxorType: {1},    // MI0801, 80x62
	}}
}

func (r *fakeRegs) ReadRegister(reg uint8, buf []byte) error {
	if r.err != nil {
		return r.err
	}
	copy(buf, r.values[reg])
	return nil
}

func (r *fakeRegs) WriteRegister(reg uint8, val uint8) error {
	if r.err != nil {
		return r.err
	}
	r.writes = append(r.writes, regWrite{reg, val})
	return nil
}

func (r *fakeRegs) lastWrite(reg uint8) (uint8, bool) {
	for i := len(r.writes) - 1; i >= 0; i-- {
		if r.writes[i].reg == reg {
			return r.writes[i].val, true
		}
	}
	return 0, false
}

// fakeFrames serves a fixed byte stream chunk by chunk.
type fakeFrames struct {
	data []byte
	err  error
}

func (f *fakeFrames) ReadFrame(buf []byte) error {
	if f.err != nil {
		return f.err
	}
	copy(buf, f.data)
	return nil
}

// smallSensor rigs a 2x2 sensor so frame payloads stay readable.
func smallSensor(regs *fakeRegs, data *fakeFrames) *Device {
	d := New(regs, data)
	d.info = CameraInfo{CameraID: "TEST", Width: 2, Height: 2, FWMajor: 2}
	return d
}

func putWords(words ...uint16) []byte {
	buf := make([]byte, len(words)*2)
	for i, w := range words {
		binary.LittleEndian.PutUint16(buf[i*2:], w)
	}
	return buf
}

func TestReadInfo(t *testing.T) {
	regs := newFakeRegs()
	d := New(regs, &fakeFrames{})

	info, err := d.ReadInfo()
	if err != nil {
		t.Fatalf("ReadInfo: %v", err)
	}

	if info.CameraID != "A1B2C3D4E5F6" {
		t.Errorf("camera id: got %q, want A1B2C3D4E5F6", info.CameraID)
	}
	if info.FWVersion != "2.1" {
		t.Errorf("firmware: got %q, want 2.1", info.FWVersion)
	}
	if info.FWMajor != 2 {
		t.Errorf("fw major: got %d, want 2", info.FWMajor)
	}
	if info.Module != "MI0801" {
		t.Errorf("module: got %q, want MI0801", info.Module)
	}
	if info.Width != 80 || info.Height != 62 {
		t.Errorf("geometry: got %dx%d, want 80x62", info.Width, info.Height)
	}
}

func TestReadInfo_UnknownType(t *testing.T) {
	regs := newFakeRegs()
	regs.values[regSenxorType] = []byte{0x7F}
	d := New(regs, &fakeFrames{})

	if _, err := d.ReadInfo(); err == nil {
		t.Error("expected error for unknown sensor type")
	}
}

func TestSetFramerate_WritesDivider(t *testing.T) {
	tests := []struct {
		fps     float64
		wantDiv uint8
	}{
		{25.5, 1},
		{7, 4},  // 25.5/7 = 3.64 rounds to 4
		{13, 2}, // 25.5/13 = 1.96 rounds to 2
		{0.05, 255},
	}
	for _, tt := range tests {
		regs := newFakeRegs()
		d := smallSensor(regs, &fakeFrames{})

		effective, err := d.SetFramerate(tt.fps)
		if err != nil {
			t.Fatalf("SetFramerate(%v): %v", tt.fps, err)
		}
		got, ok := regs.lastWrite(regFrameRate)
		if !ok {
			t.Fatalf("SetFramerate(%v): no FRAME_RATE write", tt.fps)
		}
		if got != tt.wantDiv {
			t.Errorf("SetFramerate(%v): divider got %d, want %d", tt.fps, got, tt.wantDiv)
		}
		if want := maxFramerate / float64(tt.wantDiv); effective != want {
			t.Errorf("SetFramerate(%v): effective got %v, want %v", tt.fps, effective, want)
		}
	}
}

func TestSetFramerate_RejectsNonPositive(t *testing.T) {
	d := smallSensor(newFakeRegs(), &fakeFrames{})
	if _, err := d.SetFramerate(0); err == nil {
		t.Error("expected error for zero framerate")
	}
	if _, err := d.SetFramerate(-1); err == nil {
		t.Error("expected error for negative framerate")
	}
}

func TestEnableFilter_Bits(t *testing.T) {
	regs := newFakeRegs()
	d := smallSensor(regs, &fakeFrames{})

	if err := d.EnableFilter(true, true, false); err != nil {
		t.Fatalf("EnableFilter: %v", err)
	}

	got, _ := regs.lastWrite(regFilterControl)
	if got != filterF1|filterF2 {
		t.Errorf("filter bits: got %#02x, want %#02x", got, filterF1|filterF2)
	}
}

func TestStart_ModeBits(t *testing.T) {
	tests := []struct {
		stream, withHeader bool
		want               uint8
	}{
		{true, true, modeContinuous},
		{true, false, modeContinuous | modeNoHeader},
		{false, true, modeSingleFrame},
	}
	for _, tt := range tests {
		regs := newFakeRegs()
		d := smallSensor(regs, &fakeFrames{})

		if err := d.Start(tt.stream, tt.withHeader); err != nil {
			t.Fatalf("Start(%v, %v): %v", tt.stream, tt.withHeader, err)
		}
		got, _ := regs.lastWrite(regFrameMode)
		if got != tt.want {
			t.Errorf("Start(%v, %v): mode got %#02x, want %#02x", tt.stream, tt.withHeader, got, tt.want)
		}
	}
}

func TestRead_NoData(t *testing.T) {
	regs := newFakeRegs()
	regs.values[regStatus] = []byte{0}
	d := smallSensor(regs, &fakeFrames{})

	f, hdr, err := d.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if f != nil || hdr != nil {
		t.Error("empty read must return nil frame and header")
	}
}

func TestRead_FrameWithHeader(t *testing.T) {
	regs := newFakeRegs()
	// Header row is one sensor row wide: two words on the 2x2 rig.
	data := &fakeFrames{data: append(
		putWords(42, 2991),
		putWords(2901, 2950, 3000, 3101)...,
	)}
	d := smallSensor(regs, data)
	if err := d.Start(true, true); err != nil {
		t.Fatalf("Start: %v", err)
	}

	f, hdr, err := d.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if f == nil || hdr == nil {
		t.Fatal("expected frame and header")
	}
	if hdr.FrameCount != 42 {
		t.Errorf("frame count: got %d, want 42", hdr.FrameCount)
	}
	want := []uint16{2901, 2950, 3000, 3101}
	for i, v := range want {
		if f.Raw[i] != v {
			t.Errorf("sample %d: got %d, want %d", i, f.Raw[i], v)
		}
	}
	if f.Temp != nil {
		t.Error("conversion disabled, Temp should be nil")
	}
}

func TestRead_CelsiusConversion(t *testing.T) {
	regs := newFakeRegs()
	data := &fakeFrames{data: putWords(2731, 2731, 2731, 2981)}
	d := smallSensor(regs, data)
	d.convert = true
	if err := d.Start(true, false); err != nil {
		t.Fatalf("Start: %v", err)
	}

	f, _, err := d.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if f.Temp == nil {
		t.Fatal("expected Celsius conversion")
	}
	if f.Temp[3] < 24.8 || f.Temp[3] > 25.1 {
		t.Errorf("Temp[3]: got %v, want ~24.95", f.Temp[3])
	}
}

func TestRead_BusErrorPropagates(t *testing.T) {
	regs := newFakeRegs()
	busErr := errors.New("spi gone")
	d := smallSensor(regs, &fakeFrames{err: busErr})
	if err := d.Start(true, false); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, _, err := d.Read(); !errors.Is(err, busErr) {
		t.Errorf("got %v, want wrapped bus error", err)
	}
}

func TestStop_ClearsModeAndIsIdempotent(t *testing.T) {
	regs := newFakeRegs()
	regs.values[regStatus] = []byte{0}
	d := smallSensor(regs, &fakeFrames{})
	if err := d.Start(true, false); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := d.Stop(time.Millisecond, 50*time.Millisecond); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	got, ok := regs.lastWrite(regFrameMode)
	if !ok || got != 0 {
		t.Errorf("frame mode after stop: got %#02x, want 0", got)
	}

	writes := len(regs.writes)
	if err := d.Stop(time.Millisecond, 50*time.Millisecond); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if len(regs.writes) != writes {
		t.Error("second Stop should not touch the sensor")
	}
}

func TestStop_WithoutStartIsNoop(t *testing.T) {
	regs := newFakeRegs()
	d := smallSensor(regs, &fakeFrames{})

	if err := d.Stop(time.Millisecond, 50*time.Millisecond); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(regs.writes) != 0 {
		t.Error("Stop before Start should not touch the sensor")
	}
}
