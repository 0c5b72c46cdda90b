package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"github.com/ayusman/pinchvol/internal/plugin"
)

// Plugin actions a volume plugin must implement.
const (
	ActionGetVolume = "get-volume"
	ActionSetVolume = "set-volume"
	ActionSetMute   = "set-mute"
)

// volumeEpsilon is the smallest scalar change worth sending to the plugin.
const volumeEpsilon = 0.005

// Plugin drives the system mixer through an external plugin. Repeated
// writes of the same value are skipped, so a steady hand costs no process
// spawns.
type Plugin struct {
	manager *plugin.Manager
	name    string
	exec    *plugin.Executor

	mu       sync.Mutex
	plug     *plugin.Plugin
	lastVol  float64
	lastMute bool
	known    bool
	muteSet  bool
}

// NewPlugin returns an endpoint backed by the named plugin in manager.
func NewPlugin(manager *plugin.Manager, name string, exec *plugin.Executor) *Plugin {
	return &Plugin{manager: manager, name: name, exec: exec}
}

// Open discovers the plugin and checks it declares the volume actions.
func (p *Plugin) Open() error {
	if err := p.manager.Discover(); err != nil {
		return fmt.Errorf("discover plugins: %w", err)
	}
	plug, err := p.manager.Require(p.name, ActionGetVolume, ActionSetVolume, ActionSetMute)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.plug = plug
	p.known = false
	p.muteSet = false
	return nil
}

func (p *Plugin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plug = nil
	return nil
}

func (p *Plugin) ScalarVolume() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var data struct {
		Volume float64 `json:"volume"`
	}
	if err := p.call(ActionGetVolume, nil, &data); err != nil {
		return 0, err
	}
	p.lastVol = Clamp(data.Volume)
	p.known = true
	return p.lastVol, nil
}

func (p *Plugin) SetScalarVolume(v float64) error {
	v = Clamp(v)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.known && !worthWriting(v, p.lastVol) {
		return nil
	}
	if err := p.call(ActionSetVolume, map[string]float64{"scalar": v}, nil); err != nil {
		return err
	}
	p.lastVol = v
	p.known = true
	return nil
}

func (p *Plugin) SetMute(mute bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.muteSet && p.lastMute == mute {
		return nil
	}
	if err := p.call(ActionSetMute, map[string]bool{"mute": mute}, nil); err != nil {
		return err
	}
	p.lastMute = mute
	p.muteSet = true
	return nil
}

// worthWriting reports whether moving from last to v changes the mixer.
// The range ends are always written so a clamped hand reaches them exactly.
func worthWriting(v, last float64) bool {
	if v == last {
		return false
	}
	if v == 0 || v == 1 {
		return true
	}
	return math.Abs(v-last) >= volumeEpsilon
}

// call runs action with params and decodes the response data into out.
// p.mu must be held.
func (p *Plugin) call(action string, params any, out any) error {
	if p.plug == nil {
		return ErrNotOpen
	}

	req := &plugin.Request{Action: action}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encode %s params: %w", action, err)
		}
		req.Params = raw
	}

	resp, err := p.exec.Execute(context.Background(), p.plug, req)
	if err != nil {
		return err
	}
	if !resp.Success {
		if resp.Error == "" {
			return fmt.Errorf("%s: plugin reported failure", action)
		}
		return fmt.Errorf("%s: %s", action, resp.Error)
	}
	if out != nil {
		if err := json.Unmarshal(resp.Data, out); err != nil {
			return fmt.Errorf("decode %s response: %w", action, err)
		}
	}
	return nil
}
