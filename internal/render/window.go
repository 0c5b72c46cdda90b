// Package render draws the annotated camera preview.
package render

import (
	"image"
	"image/color"
	"sync/atomic"

	"gocv.io/x/gocv"

	"github.com/ayusman/pinchvol/internal/detector"
	"github.com/ayusman/pinchvol/internal/display"
	"github.com/ayusman/pinchvol/internal/gesture"
)

// WindowTitle is the title of the preview window.
const WindowTitle = "Gesture Volume Control"

// QuitKey closes the preview and ends the session.
const QuitKey = 'q'

// Colors are color.RGBA values; gocv converts them to BGR.
var (
	colorPinch     = color.RGBA{B: 255}
	colorLandmark  = color.RGBA{R: 255}
	colorSkeleton  = color.RGBA{R: 255, G: 255, B: 255}
	colorMuted     = color.RGBA{R: 255}
	colorVolume    = color.RGBA{G: 255}
	labelOrigin    = image.Pt(10, 70)
	tipRadius      = 5
	landmarkRadius = 3
)

// Annotate draws the hand skeleton, the thumb-index line and the volume
// label onto img in place. hand and reading may be nil.
func Annotate(img *gocv.Mat, hand *detector.HandLandmarks, reading *gesture.Reading) {
	if hand != nil {
		w, h := img.Cols(), img.Rows()
		pt := func(i int) image.Point {
			p := gesture.ToPixel(hand.Points[i], w, h)
			return image.Pt(p.X, p.Y)
		}
		for _, c := range detector.HandConnections {
			gocv.Line(img, pt(c[0]), pt(c[1]), colorSkeleton, 2)
		}
		for i := 0; i < detector.NumLandmarks; i++ {
			gocv.Circle(img, pt(i), landmarkRadius, colorLandmark, -1)
		}
	}

	if reading == nil {
		return
	}

	if reading.Command.Mute {
		gocv.PutText(img, "Muted", labelOrigin, gocv.FontHersheySimplex, 1, colorMuted, 2)
	} else {
		gocv.PutText(img, display.FromCommand(reading.Command, 0).Label(), labelOrigin, gocv.FontHersheySimplex, 1, colorVolume, 2)
	}

	thumb := image.Pt(reading.Thumb.X, reading.Thumb.Y)
	index := image.Pt(reading.Index.X, reading.Index.Y)
	gocv.Line(img, thumb, index, colorPinch, 2)
	gocv.Circle(img, thumb, tipRadius, colorPinch, -1)
	gocv.Circle(img, index, tipRadius, colorPinch, -1)
}

// Window shows annotated frames in a native window. Pressing QuitKey raises
// the quit token. The window is created on first Show and destroyed by
// Close, so one Window serves many sessions.
type Window struct {
	title string
	win   *gocv.Window
	quit  atomic.Bool
}

// NewWindow returns a preview with the given title, or WindowTitle if empty.
func NewWindow(title string) *Window {
	if title == "" {
		title = WindowTitle
	}
	return &Window{title: title}
}

// Show annotates frame and displays it, then polls the keyboard once.
func (w *Window) Show(frame *gocv.Mat, hand *detector.HandLandmarks, reading *gesture.Reading) {
	if w.win == nil {
		w.win = gocv.NewWindow(w.title)
	}

	Annotate(frame, hand, reading)
	w.win.IMShow(*frame)
	if w.win.WaitKey(1) == QuitKey {
		w.quit.Store(true)
	}
}

func (w *Window) QuitRequested() bool {
	return w.quit.Load()
}

// Close destroys the window and clears the quit token.
func (w *Window) Close() error {
	w.quit.Store(false)
	if w.win == nil {
		return nil
	}
	err := w.win.Close()
	w.win = nil
	return err
}
