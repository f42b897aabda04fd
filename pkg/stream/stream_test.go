package stream

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/openthermal/go-senxor/pkg/frame"
	"github.com/openthermal/go-senxor/pkg/record"
)

// scriptedSource plays back a fixed sequence of read results. A nil
// entry is an empty read; after the script runs out it keeps
// returning empty reads.
type scriptedSource struct {
	script []*frame.Frame
	errAt  int // 1-based read index that fails, 0 for never
	reads  int
}

func (s *scriptedSource) Read() (*frame.Frame, *frame.Header, error) {
	s.reads++
	if s.errAt > 0 && s.reads == s.errAt {
		return nil, nil, errors.New("sensor communication failure")
	}
	if s.reads <= len(s.script) {
		return s.script[s.reads-1], nil, nil
	}
	return nil, nil, nil
}

// fakeSink counts frames and can request quit after a given count.
type fakeSink struct {
	shown     int
	quitAfter int // quit when shown reaches this, 0 for never
	closed    int
}

func (s *fakeSink) Show(g *frame.Gray) (bool, error) {
	s.shown++
	return s.quitAfter > 0 && s.shown >= s.quitAfter, nil
}

func (s *fakeSink) Close() error {
	s.closed++
	return nil
}

// instantReady never blocks.
type instantReady struct{}

func (instantReady) Wait(ctx context.Context) error { return ctx.Err() }

func testFrame(base uint16) *frame.Frame {
	return &frame.Frame{Width: 2, Height: 2, Raw: []uint16{base, base + 1, base + 2, base + 3}}
}

func openRecorder(t *testing.T) *record.Recorder {
	t.Helper()
	rec, err := record.Open(t.TempDir(), record.Meta{
		CameraID: "TEST",
		Width:    2,
		Height:   2,
	})
	if err != nil {
		t.Fatalf("open recorder: %v", err)
	}
	return rec
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read recording: %v", err)
	}
	if len(data) == 0 {
		return 0
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Fatalf("recording truncated mid-line: %q", string(data))
	}
	return strings.Count(string(data), "\n")
}

func TestRun_RecordsEveryFrame(t *testing.T) {
	script := []*frame.Frame{testFrame(10), testFrame(20), testFrame(30)}
	sink := &fakeSink{quitAfter: 3}
	rec := openRecorder(t)
	s := New(&scriptedSource{script: script}, instantReady{}, sink, rec, nil)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := countLines(t, rec.Path()); got != 3 {
		t.Errorf("recorded lines: got %d, want 3", got)
	}
	if sink.shown != 3 {
		t.Errorf("frames shown: got %d, want 3", sink.shown)
	}
}

func TestRun_ToleratesEmptyReads(t *testing.T) {
	// Many empty cycles interleaved before each real frame.
	script := make([]*frame.Frame, 0, 2500)
	for i := 0; i < 1200; i++ {
		script = append(script, nil)
	}
	script = append(script, testFrame(10))
	for i := 0; i < 1200; i++ {
		script = append(script, nil)
	}
	script = append(script, testFrame(20))

	sink := &fakeSink{quitAfter: 2}
	s := New(&scriptedSource{script: script}, instantReady{}, sink, nil, nil)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sink.shown != 2 {
		t.Errorf("frames shown: got %d, want 2", sink.shown)
	}
}

func TestRun_FatalReadErrorCleansUp(t *testing.T) {
	rec := openRecorder(t)
	sink := &fakeSink{}
	src := &scriptedSource{script: []*frame.Frame{testFrame(10)}, errAt: 2}
	stopped := 0
	s := New(src, instantReady{}, sink, rec, func() error {
		stopped++
		return nil
	})

	err := s.Run(context.Background())
	if err == nil {
		t.Fatal("expected fatal read error")
	}

	if stopped != 1 {
		t.Errorf("driver stop calls: got %d, want 1", stopped)
	}
	if sink.closed != 1 {
		t.Errorf("sink close calls: got %d, want 1", sink.closed)
	}
	// The frame read before the failure must be on disk, complete.
	if got := countLines(t, rec.Path()); got != 1 {
		t.Errorf("recorded lines: got %d, want 1", got)
	}
}

func TestRun_ContextCancelMidLoop(t *testing.T) {
	rec := openRecorder(t)
	sink := &fakeSink{}
	ctx, cancel := context.WithCancel(context.Background())

	// Cancel once two frames are through.
	src := &scriptedSource{script: []*frame.Frame{testFrame(1), testFrame(2)}}
	s := New(src, instantReady{}, sink, rec, nil)

	go func() {
		for rec.Frames() < 2 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := countLines(t, rec.Path()); got != 2 {
		t.Errorf("recorded lines: got %d, want 2", got)
	}
	if err := rec.Write(testFrame(9)); err == nil {
		t.Error("recorder should be closed after shutdown")
	}
}

func TestRun_QuitKeyStopsLoop(t *testing.T) {
	script := []*frame.Frame{testFrame(1), testFrame(2), testFrame(3)}
	sink := &fakeSink{quitAfter: 1}
	s := New(&scriptedSource{script: script}, instantReady{}, sink, nil, nil)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sink.shown != 1 {
		t.Errorf("frames shown after quit: got %d, want 1", sink.shown)
	}
}

func TestClose_Idempotent(t *testing.T) {
	sink := &fakeSink{}
	stopped := 0
	s := New(&scriptedSource{}, instantReady{}, sink, nil, func() error {
		stopped++
		return nil
	})

	if err := s.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if stopped != 1 {
		t.Errorf("driver stop calls: got %d, want 1", stopped)
	}
	if sink.closed != 1 {
		t.Errorf("sink close calls: got %d, want 1", sink.closed)
	}
}

func TestClose_JoinsErrors(t *testing.T) {
	stopErr := errors.New("stop failed")
	sink := &fakeSink{}
	s := New(&scriptedSource{}, instantReady{}, sink, nil, func() error {
		return stopErr
	})

	if err := s.Close(); !errors.Is(err, stopErr) {
		t.Errorf("got %v, want stop error", err)
	}
	if sink.closed != 1 {
		t.Error("sink must close even when driver stop fails")
	}
}

func TestFrames_Counts(t *testing.T) {
	script := []*frame.Frame{testFrame(1), nil, testFrame(2)}
	sink := &fakeSink{quitAfter: 2}
	s := New(&scriptedSource{script: script}, instantReady{}, sink, nil, nil)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := s.Frames(); got != 2 {
		t.Errorf("Frames(): got %d, want 2", got)
	}
}
