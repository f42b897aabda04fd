package stream

// Config holds the acquisition session parameters.
type Config struct {
	// Framerate is the requested sensor framerate in frames/sec.
	Framerate float64 `json:"framerate"`

	// Record enables persisting raw frames to RecordDir.
	Record    bool   `json:"record"`
	RecordDir string `json:"record_dir"`

	// Celsius converts raw counts to degrees on read; recordings
	// switch from integer counts to two-decimal temperatures.
	Celsius bool `json:"celsius"`

	// WithHeader requests the per-frame metadata row.
	WithHeader bool `json:"with_header"`

	// PollReady forces the poll-driven readiness wait even when a
	// data-ready line is available.
	PollReady bool `json:"poll_ready"`

	// Headless disables the local display window.
	Headless bool `json:"headless"`

	// WebAddr is the preview server listen address, empty to disable.
	WebAddr string `json:"web_addr"`

	WindowTitle string `json:"window_title"`
}

// DefaultConfig returns the standard streaming configuration.
func DefaultConfig() Config {
	return Config{
		Framerate:   7,
		RecordDir:   ".",
		WithHeader:  true,
		WindowTitle: "MI48 Thermal Camera",
	}
}

// Validate checks the config values. Returns a list of validation
// errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Framerate <= 0 {
		errors = append(errors, "framerate must be positive")
	}
	if c.Framerate > 30 {
		errors = append(errors, "framerate must be at most 30")
	}
	if c.Record && c.RecordDir == "" {
		errors = append(errors, "record_dir must be set when recording")
	}
	if c.Headless && c.WebAddr == "" {
		errors = append(errors, "headless runs need a web preview address")
	}

	return errors
}
