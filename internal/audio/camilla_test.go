package audio

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeCamilla is a minimal CamillaDSP websocket server holding one volume.
type fakeCamilla struct {
	mu     sync.Mutex
	volume float64
	mute   bool
	fail   bool
	// drop makes the server hang up on the next request instead of
	// answering it.
	drop  bool
	conns int
}

func (f *fakeCamilla) dropNext() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drop = true
}

func (f *fakeCamilla) connections() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns
}

// hangUp reports whether the current request should be dropped.
func (f *fakeCamilla) hangUp() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.drop {
		f.drop = false
		return true
	}
	return false
}

func (f *fakeCamilla) state() (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume, f.mute
}

func (f *fakeCamilla) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	f.mu.Lock()
	f.conns++
	f.mu.Unlock()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if f.hangUp() {
			return
		}
		conn.WriteJSON(f.handle(msg))
	}
}

func (f *fakeCamilla) handle(msg []byte) any {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := "Ok"
	if f.fail {
		result = "Error"
	}

	var name string
	if json.Unmarshal(msg, &name) == nil && name == "GetVolume" {
		return map[string]any{"GetVolume": map[string]any{"result": result, "value": f.volume}}
	}

	var cmd map[string]json.RawMessage
	if err := json.Unmarshal(msg, &cmd); err != nil {
		return map[string]any{"Invalid": map[string]any{"result": "Error"}}
	}
	if raw, ok := cmd["SetVolume"]; ok {
		json.Unmarshal(raw, &f.volume)
		return map[string]any{"SetVolume": map[string]any{"result": result}}
	}
	if raw, ok := cmd["SetMute"]; ok {
		json.Unmarshal(raw, &f.mute)
		return map[string]any{"SetMute": map[string]any{"result": result}}
	}
	return map[string]any{"Invalid": map[string]any{"result": "Error"}}
}

func startFakeCamilla(t *testing.T, volume float64) (*fakeCamilla, string) {
	t.Helper()
	f := &fakeCamilla{volume: volume}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestCamilla_OpenValidatesRange(t *testing.T) {
	c := NewCamilla(CamillaConfig{URL: "ws://127.0.0.1:1", MinDB: 0, MaxDB: -10})
	if err := c.Open(); err == nil {
		t.Fatal("expected error for inverted dB range")
	}
}

func TestCamilla_NotOpen(t *testing.T) {
	c := NewCamilla(DefaultCamillaConfig())
	if _, err := c.ScalarVolume(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("ScalarVolume() error = %v, want ErrNotOpen", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unopened endpoint failed: %v", err)
	}
}

func TestCamilla_Volume(t *testing.T) {
	f, url := startFakeCamilla(t, -30)

	c := NewCamilla(CamillaConfig{URL: url, MinDB: -60, MaxDB: 0, Timeout: time.Second})
	if err := c.Open(); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer c.Close()

	v, err := c.ScalarVolume()
	if err != nil {
		t.Fatalf("ScalarVolume() failed: %v", err)
	}
	if math.Abs(v-0.5) > 1e-9 {
		t.Errorf("ScalarVolume() = %v, want 0.5 for -30 dB", v)
	}

	tests := []struct {
		scalar float64
		wantDB float64
	}{
		{0, -60},
		{0.25, -45},
		{1, 0},
		{2, 0},
	}
	for _, tt := range tests {
		if err := c.SetScalarVolume(tt.scalar); err != nil {
			t.Fatalf("SetScalarVolume(%v) failed: %v", tt.scalar, err)
		}
		if db, _ := f.state(); math.Abs(db-tt.wantDB) > 1e-9 {
			t.Errorf("SetScalarVolume(%v) sent %v dB, want %v", tt.scalar, db, tt.wantDB)
		}
	}

	if err := c.SetMute(true); err != nil {
		t.Fatalf("SetMute() failed: %v", err)
	}
	if _, mute := f.state(); !mute {
		t.Error("expected server to be muted")
	}
}

func TestCamilla_ErrorResult(t *testing.T) {
	f, url := startFakeCamilla(t, 0)
	f.mu.Lock()
	f.fail = true
	f.mu.Unlock()

	c := NewCamilla(CamillaConfig{URL: url, MinDB: -60, MaxDB: 0, Timeout: time.Second})
	if err := c.Open(); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer c.Close()

	if err := c.SetScalarVolume(0.5); err == nil {
		t.Error("expected error when CamillaDSP reports failure")
	}
	if _, err := c.ScalarVolume(); err == nil {
		t.Error("expected error when CamillaDSP reports failure")
	}
}

func TestCamilla_DialFailure(t *testing.T) {
	c := NewCamilla(CamillaConfig{URL: "ws://127.0.0.1:1", MinDB: -60, MaxDB: 0})
	if err := c.Open(); err == nil {
		c.Close()
		t.Fatal("expected dial error")
	}
}

func TestCamilla_Reconnects(t *testing.T) {
	f, url := startFakeCamilla(t, -30)

	c := NewCamilla(CamillaConfig{URL: url, MinDB: -60, MaxDB: 0, Timeout: time.Second})
	if err := c.Open(); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer c.Close()

	if err := c.SetScalarVolume(0.5); err != nil {
		t.Fatalf("SetScalarVolume() failed: %v", err)
	}

	f.dropNext()
	if err := c.SetScalarVolume(0.75); err == nil {
		t.Fatal("expected error when the connection drops mid-request")
	}

	// the next request dials a fresh connection
	if err := c.SetScalarVolume(0.25); err != nil {
		t.Fatalf("SetScalarVolume() after drop failed: %v", err)
	}
	if db, _ := f.state(); math.Abs(db-(-45)) > 1e-9 {
		t.Errorf("server volume = %v dB, want -45", db)
	}
	if err := c.SetMute(true); err != nil {
		t.Fatalf("SetMute() after drop failed: %v", err)
	}
	if n := f.connections(); n != 2 {
		t.Errorf("server saw %d connections, want 2", n)
	}

	// a closed endpoint stays closed
	c.Close()
	if err := c.SetMute(false); !errors.Is(err, ErrNotOpen) {
		t.Errorf("SetMute() after Close error = %v, want ErrNotOpen", err)
	}
	if n := f.connections(); n != 2 {
		t.Errorf("closed endpoint dialed again: %d connections", n)
	}
}

func TestCamilla_ReconnectFailure(t *testing.T) {
	f := &fakeCamilla{volume: -30}
	srv := httptest.NewServer(f)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	c := NewCamilla(CamillaConfig{URL: url, MinDB: -60, MaxDB: 0, Timeout: time.Second})
	if err := c.Open(); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer c.Close()

	f.dropNext()
	if err := c.SetScalarVolume(0.5); err == nil {
		t.Fatal("expected error when the connection drops")
	}

	srv.Close()
	err := c.SetScalarVolume(0.5)
	if err == nil || errors.Is(err, ErrNotOpen) {
		t.Errorf("SetScalarVolume() with server gone error = %v, want dial error", err)
	}
}
