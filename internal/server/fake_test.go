package server

import (
	"sync"

	"github.com/ayusman/pinchvol/internal/app"
	"github.com/ayusman/pinchvol/internal/control"
	"github.com/ayusman/pinchvol/internal/display"
	"github.com/ayusman/pinchvol/internal/gesture"
	"github.com/ayusman/pinchvol/internal/store"
)

// fakeController is a Controller whose state tests set directly.
type fakeController struct {
	mu          sync.Mutex
	status      app.Status
	calibration gesture.Calibration
	bridge      *display.Bridge
}

func newFakeController() *fakeController {
	return &fakeController{
		status:      app.Status{State: control.StateIdle, StartEnabled: true},
		calibration: gesture.DefaultCalibration(),
		bridge:      display.NewBridge(),
	}
}

func (f *fakeController) Start() error { return nil }
func (f *fakeController) Stop()        {}

func (f *fakeController) Status() app.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeController) Volume() (control.VolumeState, bool) { return control.VolumeState{}, false }

func (f *fakeController) Sessions(limit int) ([]*store.Session, error) { return nil, nil }

func (f *fakeController) Calibration() gesture.Calibration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calibration
}

func (f *fakeController) SetCalibration(c gesture.Calibration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calibration = c
	return nil
}

func (f *fakeController) Bridge() *display.Bridge { return f.bridge }
