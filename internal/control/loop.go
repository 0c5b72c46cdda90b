// Package control runs the gesture sampling loop that turns a tracked hand
// into volume commands.
package control

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/pinchvol/internal/audio"
	"github.com/ayusman/pinchvol/internal/capture"
	"github.com/ayusman/pinchvol/internal/detector"
	"github.com/ayusman/pinchvol/internal/display"
	"github.com/ayusman/pinchvol/internal/gesture"
)

// DefaultDelay is the pause between iterations.
const DefaultDelay = 10 * time.Millisecond

// Viewer shows the annotated camera feed and carries the user's quit token.
// It is only called from the worker goroutine.
type Viewer interface {
	// Show draws frame with the hand and the reading behind the current
	// command. hand and reading are nil when no hand was found.
	Show(frame *gocv.Mat, hand *detector.HandLandmarks, reading *gesture.Reading)
	// QuitRequested reports whether the user asked to end the session.
	QuitRequested() bool
	Close() error
}

// Config holds the dependencies of a Loop.
type Config struct {
	Camera      capture.Camera
	Detector    detector.Detector
	Audio       audio.Endpoint
	Bridge      *display.Bridge
	Viewer      Viewer // optional
	Calibration gesture.Calibration
	Delay       time.Duration
	Logger      *slog.Logger
	// OnStop is called from the worker once a session has released its
	// devices, before Stop returns. It must not call Start or Stop.
	OnStop func(StopReason)
}

// Loop owns one gesture control session at a time.
type Loop struct {
	config Config
	logger *slog.Logger

	mu     sync.Mutex
	state  State
	stopCh chan struct{}
	done   chan struct{}

	mapper atomic.Pointer[gesture.Mapper]
	volume atomic.Pointer[VolumeState]
}

// New creates an idle Loop.
func New(config Config) *Loop {
	if config.Delay <= 0 {
		config.Delay = DefaultDelay
	}
	if config.Bridge == nil {
		config.Bridge = display.NewBridge()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	l := &Loop{
		config: config,
		logger: logger.With("component", "control"),
	}
	m := gesture.NewMapper(config.Calibration)
	l.mapper.Store(&m)
	return l
}

// Bridge returns the display bridge the loop publishes to.
func (l *Loop) Bridge() *display.Bridge {
	return l.config.Bridge
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Volume returns the running session's volume state. ok is false when no
// session is running.
func (l *Loop) Volume() (VolumeState, bool) {
	v := l.volume.Load()
	if v == nil {
		return VolumeState{}, false
	}
	return *v, true
}

// Calibration returns the calibration in use.
func (l *Loop) Calibration() gesture.Calibration {
	return l.mapper.Load().Calibration()
}

// SetCalibration replaces the calibration. A running session picks it up on
// its next iteration.
func (l *Loop) SetCalibration(c gesture.Calibration) error {
	if err := c.Validate(); err != nil {
		return err
	}
	m := gesture.NewMapper(c)
	l.mapper.Store(&m)
	return nil
}

// Start acquires the camera and audio endpoint and starts the worker.
// It does nothing unless the loop is idle. On failure every device opened so
// far is released and the returned error matches ErrDeviceUnavailable.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateIdle {
		return nil
	}

	if err := l.config.Camera.Open(); err != nil {
		return &DeviceError{Device: "camera", Err: err}
	}

	if err := l.config.Audio.Open(); err != nil {
		l.config.Camera.Close()
		return &DeviceError{Device: "audio", Err: err}
	}

	scalar, err := l.config.Audio.ScalarVolume()
	if err != nil {
		l.config.Audio.Close()
		l.config.Camera.Close()
		return &DeviceError{Device: "audio", Err: err}
	}

	l.volume.Store(&VolumeState{Command: gesture.Command{Scalar: scalar}})
	l.state = StateRunning
	l.stopCh = make(chan struct{})
	l.done = make(chan struct{})
	go l.run(l.stopCh, l.done)

	l.logger.Info("session started", "volume", scalar)
	return nil
}

// Stop ends the running session and waits until the worker has released
// every device. It does nothing when the loop is idle.
func (l *Loop) Stop() {
	l.mu.Lock()
	switch l.state {
	case StateIdle:
		l.mu.Unlock()
		return
	case StateRunning:
		l.state = StateStopping
		close(l.stopCh)
	}
	done := l.done
	l.mu.Unlock()

	<-done
}

func (l *Loop) run(stop <-chan struct{}, done chan<- struct{}) {
	reason := StopRequested
	timer := time.NewTimer(l.config.Delay)
	defer timer.Stop()

loop:
	for {
		select {
		case <-stop:
			break loop
		default:
		}

		if l.step() {
			if l.cancel() {
				reason = StopCancelled
			}
			break loop
		}

		timer.Reset(l.config.Delay)
		select {
		case <-stop:
			break loop
		case <-timer.C:
		}
	}

	l.shutdown()

	l.mu.Lock()
	l.state = StateIdle
	l.stopCh = nil
	l.done = nil
	l.mu.Unlock()

	l.logger.Info("session stopped", "reason", reason)
	if l.config.OnStop != nil {
		l.config.OnStop(reason)
	}
	close(done)
}

// step runs one iteration and reports whether the viewer asked to quit.
func (l *Loop) step() bool {
	frame, err := l.config.Camera.ReadFrame()
	if err != nil {
		l.logger.Debug("frame read failed", "error", err)
		return l.quitRequested()
	}
	defer frame.Close()

	var hand *detector.HandLandmarks
	hands, err := l.config.Detector.Detect(frame)
	if err != nil {
		l.logger.Debug("hand detection failed", "error", err)
	} else {
		hand = detector.First(hands)
	}

	var reading *gesture.Reading
	f := gesture.Frame{Hand: hand, Width: frame.Cols(), Height: frame.Rows()}
	if r, ok := l.mapper.Load().Measure(f); ok {
		l.apply(r.Command)
		reading = &r
	}

	if l.config.Viewer != nil {
		l.config.Viewer.Show(frame, hand, reading)
	}
	return l.quitRequested()
}

// apply sends cmd to the audio endpoint and the display. Endpoint errors
// are logged; the command still counts as produced.
func (l *Loop) apply(cmd gesture.Command) {
	if err := l.config.Audio.SetScalarVolume(cmd.Scalar); err != nil {
		l.logger.Warn("set volume failed", "error", err)
	}
	if err := l.config.Audio.SetMute(cmd.Mute); err != nil {
		l.logger.Warn("set mute failed", "error", err)
	}

	seq := l.volume.Load().Seq + 1
	l.volume.Store(&VolumeState{Command: cmd, Seq: seq})
	l.config.Bridge.Publish(display.FromCommand(cmd, seq))
}

func (l *Loop) quitRequested() bool {
	return l.config.Viewer != nil && l.config.Viewer.QuitRequested()
}

// cancel moves a running loop to Stopping on behalf of the worker. It
// returns false if Stop got there first.
func (l *Loop) cancel() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateRunning {
		return false
	}
	l.state = StateStopping
	return true
}

func (l *Loop) shutdown() {
	if l.config.Viewer != nil {
		if err := l.config.Viewer.Close(); err != nil {
			l.logger.Warn("close viewer", "error", err)
		}
	}
	if err := l.config.Detector.Close(); err != nil {
		l.logger.Warn("close detector", "error", err)
	}
	if err := l.config.Audio.Close(); err != nil {
		l.logger.Warn("close audio", "error", err)
	}
	if err := l.config.Camera.Close(); err != nil {
		l.logger.Warn("close camera", "error", err)
	}
	l.volume.Store(nil)
}
