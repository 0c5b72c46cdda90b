package main

import (
	"encoding/json"
	"errors"
	"testing"
)

type fakeMixer struct {
	vol  float64
	mute bool
	err  error
}

func (f *fakeMixer) volume() (float64, error) { return f.vol, f.err }

func (f *fakeMixer) setVolume(scalar float64) error {
	if f.err != nil {
		return f.err
	}
	f.vol = scalar
	return nil
}

func (f *fakeMixer) setMute(mute bool) error {
	if f.err != nil {
		return f.err
	}
	f.mute = mute
	return nil
}

func TestGetVolume(t *testing.T) {
	m := &fakeMixer{vol: 0.35}
	data, err := getVolume(m, nil)
	if err != nil {
		t.Fatalf("getVolume() error = %v", err)
	}
	raw, _ := json.Marshal(data)
	if string(raw) != `{"volume":0.35}` {
		t.Errorf("data = %s", raw)
	}

	m.err = errors.New("no sink")
	if _, err := getVolume(m, nil); err == nil {
		t.Error("expected mixer error")
	}
}

func TestSetVolume(t *testing.T) {
	tests := []struct {
		name    string
		params  string
		want    float64
		wantErr bool
	}{
		{"valid", `{"scalar":0.6}`, 0.6, false},
		{"zero", `{"scalar":0}`, 0, false},
		{"missing", `{}`, 0.5, true},
		{"above range", `{"scalar":1.5}`, 0.5, true},
		{"below range", `{"scalar":-0.1}`, 0.5, true},
		{"malformed", `{"scalar":`, 0.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeMixer{vol: 0.5}
			_, err := setVolume(m, json.RawMessage(tt.params))
			if (err != nil) != tt.wantErr {
				t.Fatalf("setVolume() error = %v, wantErr %v", err, tt.wantErr)
			}
			if m.vol != tt.want {
				t.Errorf("volume = %v, want %v", m.vol, tt.want)
			}
		})
	}
}

func TestSetMute(t *testing.T) {
	m := &fakeMixer{}
	if _, err := setMute(m, json.RawMessage(`{"mute":true}`)); err != nil {
		t.Fatalf("setMute() error = %v", err)
	}
	if !m.mute {
		t.Error("expected muted")
	}
	if _, err := setMute(m, json.RawMessage(`{}`)); err == nil {
		t.Error("expected error for missing mute")
	}
}

func TestActionHandlers(t *testing.T) {
	for _, action := range []string{"get-volume", "set-volume", "set-mute"} {
		if _, ok := actionHandlers[action]; !ok {
			t.Errorf("missing handler for %q", action)
		}
	}
}

func TestPercentPattern(t *testing.T) {
	out := "Volume: front-left: 26214 /  40% / -23.88 dB,   front-right: 26214 /  40% / -23.88 dB"
	m := percentRe.FindStringSubmatch(out)
	if m == nil || m[1] != "40" {
		t.Errorf("match = %v, want 40", m)
	}
}
