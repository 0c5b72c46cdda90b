// Package detector finds hand landmarks in camera frames. The control loop
// reads only the thumb and index tips; the other points feed the preview
// skeleton.
package detector

import "gocv.io/x/gocv"

// Detector turns one frame into the hands visible in it.
//
// The control loop calls Detect once per frame from its worker goroutine and
// treats an error like an empty result. Close is called when a session ends;
// a closed Detector must work again on the next Detect so a later session can
// reuse it.
type Detector interface {
	// Detect returns the hands found in frame, best first. No hand is an
	// empty slice, not an error.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)
	Close() error
}

// Config tunes the MediaPipe helper.
type Config struct {
	// MaxHands caps the hands reported per frame. Only the first is used.
	MaxHands int
	// MinConfidence and MinTrackingConf are MediaPipe thresholds in [0,1].
	MinConfidence   float64
	MinTrackingConf float64
	// ScriptPath and PythonPath override helper discovery.
	ScriptPath string
	PythonPath string
}

// DefaultConfig tracks one hand at detection confidence 0.7.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		MinConfidence:   0.7,
		MinTrackingConf: 0.5,
	}
}

// withDefaults fills unset numeric fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxHands <= 0 {
		c.MaxHands = def.MaxHands
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = def.MinConfidence
	}
	if c.MinTrackingConf <= 0 {
		c.MinTrackingConf = def.MinTrackingConf
	}
	return c
}
