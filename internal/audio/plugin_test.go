package audio

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/pinchvol/internal/plugin"
)

// mixerScript answers volume actions and appends every request to a log file
// next to it.
const mixerScript = `#!/bin/sh
INPUT=$(cat)
echo "$INPUT" >> calls.log
case "$INPUT" in
  *get-volume*) echo '{"success":true,"data":{"volume":0.4}}' ;;
  *set-volume*) echo '{"success":true}' ;;
  *set-mute*) echo '{"success":true}' ;;
  *) echo '{"success":false,"error":"unknown action"}' ;;
esac
`

// writePlugin installs a plugin called name into a fresh plugin directory.
func writePlugin(t *testing.T, name, script string, actions ...string) (dir string, pluginPath string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	dir = t.TempDir()
	pluginPath = filepath.Join(dir, name)
	if err := os.MkdirAll(pluginPath, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pluginPath, "run.sh"), []byte(script), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	quoted := make([]string, len(actions))
	for i, a := range actions {
		quoted[i] = strconv.Quote(a)
	}
	manifest := `{"name":"` + name + `","version":"1.0.0","executable":"run.sh","actions":[` + strings.Join(quoted, ",") + `]}`
	if err := os.WriteFile(filepath.Join(pluginPath, "plugin.json"), []byte(manifest), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return dir, pluginPath
}

func callCount(t *testing.T, pluginPath string) int {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(pluginPath, "calls.log"))
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatalf("failed to read call log: %v", err)
	}
	return strings.Count(string(data), "\n")
}

func newTestPlugin(dir, name string) *Plugin {
	return NewPlugin(plugin.NewManager(dir), name, plugin.NewExecutor(5*time.Second))
}

func TestPlugin_Open(t *testing.T) {
	t.Run("missing plugin", func(t *testing.T) {
		p := newTestPlugin(t.TempDir(), "system-control")
		if err := p.Open(); !errors.Is(err, plugin.ErrPluginNotFound) {
			t.Errorf("Open() error = %v, want ErrPluginNotFound", err)
		}
	})

	t.Run("missing action", func(t *testing.T) {
		dir, _ := writePlugin(t, "half-mixer", mixerScript, ActionGetVolume, ActionSetVolume)
		p := newTestPlugin(dir, "half-mixer")
		if err := p.Open(); !errors.Is(err, plugin.ErrActionNotSupported) {
			t.Errorf("Open() error = %v, want ErrActionNotSupported", err)
		}
	})
}

func TestPlugin_VolumeRoundTrip(t *testing.T) {
	dir, path := writePlugin(t, "mixer", mixerScript, ActionGetVolume, ActionSetVolume, ActionSetMute)
	p := newTestPlugin(dir, "mixer")

	if _, err := p.ScalarVolume(); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("ScalarVolume() before Open error = %v, want ErrNotOpen", err)
	}

	if err := p.Open(); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer p.Close()

	v, err := p.ScalarVolume()
	if err != nil {
		t.Fatalf("ScalarVolume() failed: %v", err)
	}
	if v != 0.4 {
		t.Errorf("ScalarVolume() = %v, want 0.4", v)
	}

	if err := p.SetScalarVolume(0.8); err != nil {
		t.Fatalf("SetScalarVolume() failed: %v", err)
	}
	if err := p.SetMute(false); err != nil {
		t.Fatalf("SetMute() failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(path, "calls.log"))
	if err != nil {
		t.Fatalf("failed to read call log: %v", err)
	}
	if !strings.Contains(string(data), `"scalar":0.8`) {
		t.Errorf("set-volume params not forwarded, log: %s", data)
	}
	if !strings.Contains(string(data), `"mute":false`) {
		t.Errorf("set-mute params not forwarded, log: %s", data)
	}
}

func TestPlugin_SkipsRedundantWrites(t *testing.T) {
	dir, path := writePlugin(t, "mixer", mixerScript, ActionGetVolume, ActionSetVolume, ActionSetMute)
	p := newTestPlugin(dir, "mixer")
	if err := p.Open(); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	if _, err := p.ScalarVolume(); err != nil {
		t.Fatalf("ScalarVolume() failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := p.SetScalarVolume(0.401); err != nil {
			t.Fatalf("SetScalarVolume() failed: %v", err)
		}
		if err := p.SetMute(true); err != nil {
			t.Fatalf("SetMute() failed: %v", err)
		}
	}

	// one get-volume, no set-volume (within epsilon), one set-mute
	if n := callCount(t, path); n != 2 {
		t.Errorf("plugin invoked %d times, want 2", n)
	}
}

func TestPlugin_WritesRangeEnds(t *testing.T) {
	dir, path := writePlugin(t, "mixer", mixerScript, ActionGetVolume, ActionSetVolume, ActionSetMute)
	p := newTestPlugin(dir, "mixer")
	if err := p.Open(); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	if _, err := p.ScalarVolume(); err != nil {
		t.Fatalf("ScalarVolume() failed: %v", err)
	}

	steps := []struct {
		scalar float64
		write  bool
	}{
		{0.004, true},
		{0, true},
		{0, false},
		{0.003, false},
		{0.998, true},
		{1, true},
		{1.2, false},
	}
	want := 1
	for _, step := range steps {
		if err := p.SetScalarVolume(step.scalar); err != nil {
			t.Fatalf("SetScalarVolume(%v) failed: %v", step.scalar, err)
		}
		if step.write {
			want++
		}
		if n := callCount(t, path); n != want {
			t.Fatalf("after SetScalarVolume(%v): plugin invoked %d times, want %d", step.scalar, n, want)
		}
	}
}

func TestWorthWriting(t *testing.T) {
	tests := []struct {
		v, last float64
		want    bool
	}{
		{0.5, 0.5, false},
		{0.502, 0.5, false},
		{0.51, 0.5, true},
		{0, 0.004, true},
		{1, 0.997, true},
		{0, 0, false},
		{1, 1, false},
	}
	for _, tt := range tests {
		if got := worthWriting(tt.v, tt.last); got != tt.want {
			t.Errorf("worthWriting(%v, %v) = %v, want %v", tt.v, tt.last, got, tt.want)
		}
	}
}

func TestPlugin_ReportsFailure(t *testing.T) {
	dir, _ := writePlugin(t, "broken", `#!/bin/sh
cat > /dev/null
echo '{"success":false,"error":"no default sink"}'
`, ActionGetVolume, ActionSetVolume, ActionSetMute)
	p := newTestPlugin(dir, "broken")
	if err := p.Open(); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	err := p.SetScalarVolume(0.5)
	if err == nil {
		t.Fatal("expected error from failing plugin")
	}
	if !strings.Contains(err.Error(), "no default sink") {
		t.Errorf("error %q does not carry plugin message", err)
	}
}
