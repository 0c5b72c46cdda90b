// Package audio provides output devices whose volume the controller drives.
//
// Every endpoint speaks a normalized scalar in [0,1]. Translating to the
// device's native unit (percent, dB) is the endpoint's job.
package audio

import "errors"

// ErrNotOpen is returned when an endpoint is used before Open or after Close.
var ErrNotOpen = errors.New("audio endpoint is not open")

// Endpoint is an output device with a volume and a mute switch.
type Endpoint interface {
	// Open acquires the device.
	Open() error
	// Close releases the device. The device keeps its last volume.
	Close() error
	// ScalarVolume returns the current volume in [0,1].
	ScalarVolume() (float64, error)
	// SetScalarVolume sets the volume; v is clamped to [0,1].
	SetScalarVolume(v float64) error
	// SetMute mutes or unmutes the device.
	SetMute(mute bool) error
}

// Clamp limits v to [0,1].
func Clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
