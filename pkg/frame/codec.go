package frame

import (
	"fmt"
	"strconv"
	"strings"
)

// EncodeLine serializes one frame as whitespace-separated decimal text
// in raster order, with a trailing space before the newline. Raw
// counts serialize as unsigned integers, temperatures with two decimal
// places.
func EncodeLine(f *Frame) string {
	var b strings.Builder
	if f.Temp != nil {
		b.Grow(len(f.Temp) * 7)
		for _, v := range f.Temp {
			fmt.Fprintf(&b, "%.2f ", v)
		}
	} else {
		b.Grow(len(f.Raw) * 6)
		for _, v := range f.Raw {
			fmt.Fprintf(&b, "%d ", v)
		}
	}
	b.WriteByte('\n')
	return b.String()
}

// DecodeLine parses one recorded line back into a frame of the given
// geometry. Lines written from raw counts decode into Raw, lines with
// decimal points into Temp.
func DecodeLine(line string, width, height int) (*Frame, error) {
	fields := strings.Fields(line)
	if len(fields) != width*height {
		return nil, fmt.Errorf("frame line has %d samples, want %d", len(fields), width*height)
	}

	f := &Frame{Width: width, Height: height}
	if strings.ContainsRune(fields[0], '.') {
		f.Temp = make([]float64, len(fields))
		for i, s := range fields {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("sample %d: %w", i, err)
			}
			f.Temp[i] = v
		}
		return f, nil
	}

	f.Raw = make([]uint16, len(fields))
	for i, s := range fields {
		v, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		f.Raw[i] = uint16(v)
	}
	return f, nil
}
