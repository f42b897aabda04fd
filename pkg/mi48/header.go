package mi48

import (
	"encoding/binary"
	"fmt"

	"github.com/openthermal/go-senxor/pkg/frame"
)

// Header row layout, little-endian uint16 words.
const (
	hdrWordFrameCount = 0
	hdrWordSenxorTemp = 1
	hdrWordMinTemp    = 2
	hdrWordMaxTemp    = 3
)

// parseHeader decodes the metadata row prepended to a frame when
// header output is enabled. Temperatures are transmitted in
// deci-Kelvin.
func parseHeader(row []byte) *frame.Header {
	word := func(i int) uint16 {
		if (i+1)*2 > len(row) {
			return 0
		}
		return binary.LittleEndian.Uint16(row[i*2:])
	}
	toCelsius := func(v uint16) float64 {
		return float64(v)/10.0 - 273.15
	}
	return &frame.Header{
		FrameCount: word(hdrWordFrameCount),
		SenxorTemp: toCelsius(word(hdrWordSenxorTemp)),
		MinTemp:    toCelsius(word(hdrWordMinTemp)),
		MaxTemp:    toCelsius(word(hdrWordMaxTemp)),
	}
}

// FormatHeader renders a header as a one-line log string.
func FormatHeader(h *frame.Header) string {
	return fmt.Sprintf("frame %5d  die %.1f°C  scene [%.1f, %.1f]°C",
		h.FrameCount, h.SenxorTemp, h.MinTemp, h.MaxTemp)
}

// FormatFrameStats renders min/max/mean of a frame's samples for
// per-frame debug logging.
func FormatFrameStats(f *frame.Frame) string {
	vals := f.Temp
	unit := "°C"
	if vals == nil {
		vals = make([]float64, len(f.Raw))
		for i, v := range f.Raw {
			vals[i] = float64(v)
		}
		unit = "dK"
	}
	if len(vals) == 0 {
		return "empty frame"
	}
	min, max, sum := vals[0], vals[0], 0.0
	for _, v := range vals {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	return fmt.Sprintf("min %.2f%s  max %.2f%s  mean %.2f%s",
		min, unit, max, unit, sum/float64(len(vals)), unit)
}
