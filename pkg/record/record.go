// Package record persists raw thermal frames as an append-only text
// log, one line per frame, flushed after every write so an abrupt
// termination never loses a fully read frame.
package record

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openthermal/go-senxor/pkg/frame"
)

// Meta is the sidecar description of a recording session, written as
// <name>.meta.json next to the data file.
type Meta struct {
	SessionID string    `json:"session_id"`
	CameraID  string    `json:"camera_id"`
	Module    string    `json:"module,omitempty"`
	FWVersion string    `json:"fw_version,omitempty"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Framerate float64   `json:"framerate"`
	StartedAt time.Time `json:"started_at"`
}

// Recorder is the recording sink. At most one should be open per
// process; it owns exclusive write access to its file.
type Recorder struct {
	mu     sync.Mutex
	f      *os.File
	path   string
	frames int
	closed bool
}

// Filename builds the timestamped recording name for a sensor id.
func Filename(cameraID string, t time.Time) string {
	return fmt.Sprintf("%s--%s.dat", cameraID, t.Format("20060102-150405"))
}

// Open creates the recording file in dir and writes the session
// sidecar. Meta's SessionID and StartedAt are filled in here.
func Open(dir string, meta Meta) (*Recorder, error) {
	meta.SessionID = uuid.NewString()
	meta.StartedAt = time.Now()

	path := filepath.Join(dir, Filename(meta.CameraID, meta.StartedAt))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("record: open %s: %w", path, err)
	}

	side, err := json.MarshalIndent(meta, "", "  ")
	if err == nil {
		err = os.WriteFile(path+".meta.json", append(side, '\n'), 0o644)
	}
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("record: write sidecar: %w", err)
	}

	return &Recorder{f: f, path: path}, nil
}

// Path returns the data file path.
func (r *Recorder) Path() string {
	return r.path
}

// Frames returns the number of frames written so far.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Write appends one frame as a single text line and syncs it to disk.
func (r *Recorder) Write(f *frame.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("record: write after close")
	}
	if _, err := r.f.WriteString(frame.EncodeLine(f)); err != nil {
		return fmt.Errorf("record: write frame: %w", err)
	}
	if err := r.f.Sync(); err != nil {
		return fmt.Errorf("record: sync: %w", err)
	}
	r.frames++
	return nil
}

// Close flushes and closes the file. Safe to call more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.f.Close()
}
