// Package gesture maps hand landmarks to volume commands.
package gesture

import (
	"errors"
	"math"

	"github.com/ayusman/pinchvol/internal/detector"
)

// Default calibration, in pixels of thumb-to-index distance.
const (
	DefaultMinDistance   = 30.0
	DefaultMaxDistance   = 200.0
	DefaultMuteThreshold = 40.0
)

// Calibration holds the pixel distances used to map a pinch to a volume.
type Calibration struct {
	MinDistance   float64 `json:"min_distance"`
	MaxDistance   float64 `json:"max_distance"`
	MuteThreshold float64 `json:"mute_threshold"`
}

// DefaultCalibration returns the calibration used when nothing is configured.
func DefaultCalibration() Calibration {
	return Calibration{
		MinDistance:   DefaultMinDistance,
		MaxDistance:   DefaultMaxDistance,
		MuteThreshold: DefaultMuteThreshold,
	}
}

// Validate reports whether c describes a usable mapping.
func (c Calibration) Validate() error {
	if c.MinDistance < 0 {
		return errors.New("min distance must not be negative")
	}
	if c.MaxDistance <= c.MinDistance {
		return errors.New("max distance must be greater than min distance")
	}
	if c.MuteThreshold < 0 {
		return errors.New("mute threshold must not be negative")
	}
	return nil
}

// PixelPoint is a landmark position in pixels of a specific frame.
type PixelPoint struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ToPixel converts a normalized landmark to pixel coordinates, truncating
// toward zero.
func ToPixel(p detector.Point3D, width, height int) PixelPoint {
	return PixelPoint{
		X: int(p.X * float64(width)),
		Y: int(p.Y * float64(height)),
	}
}

// Frame is one detection result: at most one hand plus the pixel size of
// the camera frame it was detected in.
type Frame struct {
	Hand   *detector.HandLandmarks
	Width  int
	Height int
}

// Command is the volume to apply. Scalar is in [0,1].
//
// Mute is decided on the raw distance and can be true while Scalar is still
// slightly above zero; sinks must let Mute win.
type Command struct {
	Scalar float64 `json:"scalar"`
	Mute   bool    `json:"mute"`
}

// Percentage returns Scalar as a whole percentage in [0,100].
func (c Command) Percentage() int {
	return int(c.Scalar * 100)
}

// Reading is a Command together with the measurement it was derived from.
type Reading struct {
	Thumb    PixelPoint
	Index    PixelPoint
	Distance float64
	Command  Command
}

// Mapper turns landmark frames into commands. The zero value is not usable;
// construct it with NewMapper.
type Mapper struct {
	cal Calibration
}

// NewMapper returns a Mapper using cal. An invalid calibration falls back to
// DefaultCalibration.
func NewMapper(cal Calibration) Mapper {
	if cal.Validate() != nil {
		cal = DefaultCalibration()
	}
	return Mapper{cal: cal}
}

// Calibration returns the calibration in use.
func (m Mapper) Calibration() Calibration {
	return m.cal
}

// Map returns the command for f. It returns false when f has no hand.
func (m Mapper) Map(f Frame) (Command, bool) {
	r, ok := m.Measure(f)
	if !ok {
		return Command{}, false
	}
	return r.Command, true
}

// Measure is Map with the intermediate pixel points and distance.
func (m Mapper) Measure(f Frame) (Reading, bool) {
	if f.Hand == nil {
		return Reading{}, false
	}

	thumb := ToPixel(f.Hand.Thumb(), f.Width, f.Height)
	index := ToPixel(f.Hand.Index(), f.Width, f.Height)
	d := math.Hypot(float64(index.X-thumb.X), float64(index.Y-thumb.Y))

	return Reading{
		Thumb:    thumb,
		Index:    index,
		Distance: d,
		Command:  m.Command(d),
	}, true
}

// Command maps a pixel distance to a command.
func (m Mapper) Command(d float64) Command {
	clamped := math.Max(m.cal.MinDistance, math.Min(d, m.cal.MaxDistance))
	return Command{
		Scalar: (clamped - m.cal.MinDistance) / (m.cal.MaxDistance - m.cal.MinDistance),
		Mute:   d < m.cal.MuteThreshold,
	}
}
