// Package app provides the session controller that the tray and the
// dashboard drive.
package app

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/ayusman/pinchvol/internal/control"
	"github.com/ayusman/pinchvol/internal/display"
	"github.com/ayusman/pinchvol/internal/gesture"
	"github.com/ayusman/pinchvol/internal/store"
)

// Status is what an interactive surface renders.
type Status struct {
	State        control.State `json:"state"`
	StartEnabled bool          `json:"start_enabled"`
	StopEnabled  bool          `json:"stop_enabled"`
	Error        string        `json:"error,omitempty"`
	SessionID    string        `json:"session_id,omitempty"`
}

// Config holds configuration options for the application.
type Config struct {
	Loop   control.Config
	Store  *store.Store // optional
	Logger *slog.Logger
}

// App owns the control loop and tracks sessions.
type App struct {
	loop   *control.Loop
	store  *store.Store
	logger *slog.Logger

	// startMu serializes Start and Stop.
	startMu sync.Mutex

	mu        sync.Mutex
	sessionID string
	// ended is closed once the current session's record is finished.
	ended   chan struct{}
	lastErr string
	subs    []func(Status)
}

// New creates an App. A calibration saved in the store replaces
// config.Loop.Calibration.
func New(config Config) *App {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		store:  config.Store,
		logger: logger.With("component", "app"),
	}

	loopConfig := config.Loop
	if loopConfig.Logger == nil {
		loopConfig.Logger = logger
	}
	loopConfig.OnStop = a.onStop

	if a.store != nil {
		cal, err := a.store.Settings().LoadCalibration(loopConfig.Calibration)
		if err != nil {
			a.logger.Warn("failed to load calibration, using configured values", "error", err)
		}
		loopConfig.Calibration = cal
	}

	a.loop = control.New(loopConfig)
	return a
}

// Start begins a gesture control session. It does nothing while a session
// is running, and waits for a session being closed from the preview window
// to finish first. Device errors are recorded in Status().Error and
// returned; the app stays idle.
func (a *App) Start() error {
	a.startMu.Lock()
	defer a.startMu.Unlock()

	if a.loop.State() == control.StateRunning {
		return nil
	}

	// A session closed from the preview window may still be finishing its
	// record on the worker.
	a.mu.Lock()
	ended := a.ended
	a.mu.Unlock()
	if ended != nil {
		<-ended
	}
	if a.loop.State() != control.StateIdle {
		return nil
	}

	id := uuid.NewString()
	a.mu.Lock()
	a.sessionID = id
	a.ended = make(chan struct{})
	a.mu.Unlock()
	a.recordStart(id)

	if err := a.loop.Start(); err != nil {
		a.mu.Lock()
		a.sessionID = ""
		a.ended = nil
		a.lastErr = err.Error()
		a.mu.Unlock()

		a.recordFinish(id, "failed", err.Error())
		a.logger.Error("failed to start session", "error", err)
		a.notify()
		return err
	}

	a.mu.Lock()
	a.lastErr = ""
	a.mu.Unlock()

	a.logger.Info("session started", "session", id)
	a.notify()
	return nil
}

// Stop ends the running session and waits for the devices to be released.
func (a *App) Stop() {
	a.startMu.Lock()
	defer a.startMu.Unlock()

	a.loop.Stop()
}

// Status returns the current status.
func (a *App) Status() Status {
	state := a.loop.State()

	a.mu.Lock()
	defer a.mu.Unlock()

	return Status{
		State:        state,
		StartEnabled: state == control.StateIdle,
		StopEnabled:  state == control.StateRunning,
		Error:        a.lastErr,
		SessionID:    a.sessionID,
	}
}

// Subscribe registers fn to be called after every status change, including
// sessions ended by the preview window. fn may be called from any goroutine
// and must not call Start or Stop.
func (a *App) Subscribe(fn func(Status)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subs = append(a.subs, fn)
}

// Bridge returns the display bridge volume snapshots are published to.
func (a *App) Bridge() *display.Bridge {
	return a.loop.Bridge()
}

// Volume returns the running session's volume state.
func (a *App) Volume() (control.VolumeState, bool) {
	return a.loop.Volume()
}

// Calibration returns the calibration in use.
func (a *App) Calibration() gesture.Calibration {
	return a.loop.Calibration()
}

// SetCalibration validates c, stores it and applies it to the running
// session.
func (a *App) SetCalibration(c gesture.Calibration) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if a.store != nil {
		if err := a.store.Settings().SaveCalibration(c); err != nil {
			return err
		}
	}
	return a.loop.SetCalibration(c)
}

// Sessions returns up to limit recorded sessions, newest first.
func (a *App) Sessions(limit int) ([]*store.Session, error) {
	if a.store == nil {
		return nil, nil
	}
	return a.store.Sessions().List(limit)
}

// onStop closes the session record. The worker calls it for every session
// end, so Stop and the preview window's quit key are recorded alike.
func (a *App) onStop(reason control.StopReason) {
	a.mu.Lock()
	id := a.sessionID
	ended := a.ended
	a.sessionID = ""
	a.ended = nil
	a.mu.Unlock()

	if ended != nil {
		defer close(ended)
	}
	if id == "" {
		return
	}

	a.recordFinish(id, reason.String(), "")
	a.logger.Info("session finished", "session", id, "reason", reason)
	a.notify()
}

func (a *App) recordStart(id string) {
	if a.store == nil {
		return
	}
	if err := a.store.Sessions().Create(&store.Session{ID: id}); err != nil {
		a.logger.Warn("failed to record session", "session", id, "error", err)
	}
}

func (a *App) recordFinish(id, reason, errText string) {
	if a.store == nil {
		return
	}
	if err := a.store.Sessions().Finish(id, reason, errText); err != nil {
		a.logger.Warn("failed to finish session record", "session", id, "error", err)
	}
}

func (a *App) notify() {
	status := a.Status()

	a.mu.Lock()
	subs := make([]func(Status), len(a.subs))
	copy(subs, a.subs)
	a.mu.Unlock()

	for _, fn := range subs {
		fn(status)
	}
}
