// Package display renders normalized thermal frames as false-color
// images through gocv.
package display

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/openthermal/go-senxor/pkg/frame"
)

// Output resolution of the rendered image.
var outputSize = image.Pt(640, 496)

const quitKey = 'q'

// Window shows frames in an OpenCV window and polls the keyboard for
// the quit key.
type Window struct {
	win   *gocv.Window
	title string

	// OnFrame, when set, receives the JPEG-encoded rendered image of
	// every frame shown.
	OnFrame func(jpeg []byte)
}

// NewWindow opens the display window.
func NewWindow(title string) *Window {
	return &Window{
		win:   gocv.NewWindow(title),
		title: title,
	}
}

// render colorizes, smooths and upscales one normalized frame. The
// caller owns the returned Mat.
func render(g *frame.Gray) (gocv.Mat, error) {
	src, err := gocv.NewMatFromBytes(g.Height, g.Width, gocv.MatTypeCV8U, g.Pix)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("display: wrap frame: %w", err)
	}
	defer src.Close()

	// Edge-preserving smoothing before colorization.
	smooth := gocv.NewMat()
	defer smooth.Close()
	gocv.BilateralFilter(src, &smooth, 3, 75, 75)

	colored := gocv.NewMat()
	defer colored.Close()
	gocv.ApplyColorMap(smooth, &colored, gocv.ColormapJet)

	out := gocv.NewMat()
	gocv.Resize(colored, &out, outputSize, 0, 0, gocv.InterpolationCubic)
	return out, nil
}

// encodeJPEG returns the rendered image as JPEG bytes.
func encodeJPEG(m gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, m)
	if err != nil {
		return nil, fmt.Errorf("display: encode jpeg: %w", err)
	}
	defer buf.Close()
	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

// Show renders one frame. It reports quit when the operator pressed
// the quit key.
func (w *Window) Show(g *frame.Gray) (bool, error) {
	img, err := render(g)
	if err != nil {
		return false, err
	}
	defer img.Close()

	w.win.IMShow(img)
	key := w.win.WaitKey(1)

	if w.OnFrame != nil {
		jpeg, err := encodeJPEG(img)
		if err != nil {
			return false, err
		}
		w.OnFrame(jpeg)
	}
	return key == quitKey, nil
}

// Close releases the window.
func (w *Window) Close() error {
	return w.win.Close()
}

// Headless renders frames without a window, feeding OnFrame only.
// Used on displayless hosts where the preview goes out over the web
// server instead.
type Headless struct {
	OnFrame func(jpeg []byte)
}

// Show renders one frame for the OnFrame callback. It never requests
// quit.
func (h *Headless) Show(g *frame.Gray) (bool, error) {
	if h.OnFrame == nil {
		return false, nil
	}
	img, err := render(g)
	if err != nil {
		return false, err
	}
	defer img.Close()

	jpeg, err := encodeJPEG(img)
	if err != nil {
		return false, err
	}
	h.OnFrame(jpeg)
	return false, nil
}

// Close is a no-op for the headless sink.
func (h *Headless) Close() error {
	return nil
}
