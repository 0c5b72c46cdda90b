package control

import (
	"errors"
	"fmt"

	"github.com/ayusman/pinchvol/internal/gesture"
)

// State is the lifecycle state of a Loop.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StopReason tells why a session ended.
type StopReason int

const (
	// StopRequested means Stop was called.
	StopRequested StopReason = iota
	// StopCancelled means the viewer raised its quit token.
	StopCancelled
)

func (r StopReason) String() string {
	switch r {
	case StopRequested:
		return "requested"
	case StopCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("StopReason(%d)", int(r))
	}
}

// ErrDeviceUnavailable is matched by every error Start returns when the
// camera or audio endpoint cannot be acquired.
var ErrDeviceUnavailable = errors.New("device unavailable")

// DeviceError reports which device failed to open.
type DeviceError struct {
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

func (e *DeviceError) Is(target error) bool { return target == ErrDeviceUnavailable }

// VolumeState is the last command produced by the running session.
// Seq starts at 0 when the session starts and grows by one per command.
type VolumeState struct {
	Command gesture.Command
	Seq     uint64
}
