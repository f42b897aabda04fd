// Package frame defines the thermal frame types shared across the
// acquisition, recording and display pipeline.
package frame

// Frame represents the thermal readings for a single frame, in raster
// order (row-major, top-left first). A frame carries the raw sensor
// counts, the converted temperatures, or both. Frames are never
// mutated after creation; downstream stages derive new images instead.
type Frame struct {
	Width  int
	Height int

	// Raw holds unsigned sensor counts when the sensor delivers
	// unprocessed output. Nil otherwise.
	Raw []uint16

	// Temp holds samples in degrees Celsius. Nil when only raw
	// counts are available.
	Temp []float64
}

// Header is the metadata record accompanying a Frame when header
// output is enabled on the sensor.
type Header struct {
	FrameCount uint16
	// SenxorTemp is the sensor die temperature in degrees Celsius.
	SenxorTemp float64
	// MinTemp and MaxTemp are the scene extrema reported by the
	// sensor's own compensation stage.
	MinTemp float64
	MaxTemp float64
}

// Gray is an 8-bit grayscale image handed to display sinks.
type Gray struct {
	Width  int
	Height int
	Pix    []uint8
}

// Len returns the number of samples in the frame.
func (f *Frame) Len() int {
	return f.Width * f.Height
}

// FromRaw converts raw deci-Kelvin counts to a frame holding both the
// counts and their Celsius equivalents.
func FromRaw(raw []uint16, width, height int) *Frame {
	temp := make([]float64, len(raw))
	for i, v := range raw {
		temp[i] = float64(v)/10.0 - 273.15
	}
	return &Frame{
		Width:  width,
		Height: height,
		Raw:    raw,
		Temp:   temp,
	}
}

// values returns the sample grid used for display, preferring the
// converted temperatures.
func (f *Frame) values() []float64 {
	if f.Temp != nil {
		return f.Temp
	}
	vals := make([]float64, len(f.Raw))
	for i, v := range f.Raw {
		vals[i] = float64(v)
	}
	return vals
}

// Normalize scales the frame's sample range to 8-bit intensity with
// min-max scaling. The extrema map to 0 and 255 exactly. A flat frame
// (max == min) normalizes to an all-zero image.
func (f *Frame) Normalize() *Gray {
	vals := f.values()
	g := &Gray{
		Width:  f.Width,
		Height: f.Height,
		Pix:    make([]uint8, len(vals)),
	}
	if len(vals) == 0 {
		return g
	}

	min, max := vals[0], vals[0]
	for _, v := range vals {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max == min {
		return g
	}

	scale := 255.0 / (max - min)
	for i, v := range vals {
		n := (v - min) * scale
		// Guard against float rounding pushing past the byte range.
		if n > 255 {
			n = 255
		} else if n < 0 {
			n = 0
		}
		g.Pix[i] = uint8(n)
	}
	return g
}
