// Package tray provides the system tray surface of pinchvol.
package tray

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/pinchvol/internal/app"
	"github.com/ayusman/pinchvol/internal/control"
	"github.com/ayusman/pinchvol/internal/display"
)

// Instructions are shown under the "How to Use" menu.
var Instructions = []string{
	"Adjust volume:",
	"  Hold up your hand in view of the camera.",
	"  Pinch thumb and index finger together to lower the volume.",
	"  Spread them apart to raise it.",
	"Mute / unmute:",
	"  Make a fist to mute.",
	"  Open your hand to unmute.",
	"Press q in the preview window to stop.",
}

// Controller is the session controller the tray drives.
type Controller interface {
	Start() error
	Stop()
	Status() app.Status
	Subscribe(fn func(app.Status))
	Bridge() *display.Bridge
}

// Tray represents the system tray application.
type Tray struct {
	ctrl   Controller
	logger *slog.Logger

	onDashboard func()
	onQuit      func()
	mu          sync.RWMutex

	// Menu items stored for later updates
	menuStatus *systray.MenuItem
	menuVolume *systray.MenuItem
	menuStart  *systray.MenuItem
	menuStop   *systray.MenuItem

	done chan struct{}
}

// New creates a Tray for ctrl.
func New(ctrl Controller, logger *slog.Logger) *Tray {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tray{
		ctrl:   ctrl,
		logger: logger.With("component", "tray"),
		done:   make(chan struct{}),
	}
}

// OnDashboard sets the callback for the "Open Dashboard..." item.
func (t *Tray) OnDashboard(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDashboard = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("PinchVol")
	systray.SetTooltip("Gesture Volume Control")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem("Gesture Control Disabled", "Session status")
	t.menuStatus.Disable()
	t.menuVolume = systray.AddMenuItem("Volume: --", "Last volume set by gesture")
	t.menuVolume.Disable()
	systray.AddSeparator()

	t.menuStart = systray.AddMenuItem("Start Gesture Control", "Open the camera and start tracking")
	t.menuStop = systray.AddMenuItem("Stop Gesture Control", "Stop tracking and release the camera")
	systray.AddSeparator()
	t.mu.Unlock()

	menuHelp := systray.AddMenuItem("How to Use", strings.Join(Instructions, "\n"))
	for _, line := range Instructions {
		menuHelp.AddSubMenuItem(line, "").Disable()
	}
	menuDashboard := systray.AddMenuItem("Open Dashboard...", "Open the dashboard in a browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit PinchVol")

	t.ctrl.Subscribe(t.applyStatus)
	t.applyStatus(t.ctrl.Status())

	go t.drain(t.ctrl.Bridge())

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuStart.ClickedCh:
				if err := t.ctrl.Start(); err != nil {
					t.logger.Warn("start failed", "error", err)
				}
			case <-t.menuStop.ClickedCh:
				t.ctrl.Stop()
			case <-menuHelp.ClickedCh:
				t.logger.Info("how to use\n" + strings.Join(Instructions, "\n"))
			case <-menuDashboard.ClickedCh:
				t.handleDashboard()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {
	close(t.done)
}

// drain applies volume snapshots on the tray's own goroutine.
func (t *Tray) drain(bridge *display.Bridge) {
	for {
		select {
		case <-t.done:
			return
		case <-bridge.Ready():
			if snap, ok := bridge.Drain(); ok {
				t.mu.RLock()
				if t.menuVolume != nil {
					t.menuVolume.SetTitle(snap.Label())
				}
				t.mu.RUnlock()
			}
		}
	}
}

// applyStatus updates the menu from a controller status.
func (t *Tray) applyStatus(s app.Status) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuStatus == nil {
		return
	}

	t.menuStatus.SetTitle(StatusTitle(s))
	setEnabled(t.menuStart, s.StartEnabled)
	setEnabled(t.menuStop, s.StopEnabled)
}

func (t *Tray) handleDashboard() {
	t.mu.RLock()
	callback := t.onDashboard
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

func setEnabled(item *systray.MenuItem, enabled bool) {
	if enabled {
		item.Enable()
	} else {
		item.Disable()
	}
}

// StatusTitle returns the status line for s.
func StatusTitle(s app.Status) string {
	if s.Error != "" && s.State == control.StateIdle {
		return "Error: " + s.Error
	}
	switch s.State {
	case control.StateRunning:
		return "Gesture Control Enabled"
	case control.StateStopping:
		return "Stopping..."
	default:
		return "Gesture Control Disabled"
	}
}
