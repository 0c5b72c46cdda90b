package gesture

import (
	"math"
	"testing"

	"github.com/ayusman/pinchvol/internal/detector"
)

const epsilon = 1e-9

// frameSize keeps pixel/normalized conversions exact in binary floating point.
const frameSize = 1024

func pinchFrame(thumbX, thumbY, indexX, indexY int) Frame {
	norm := func(v int) float64 { return float64(v) / frameSize }
	hand := detector.PinchLandmarks(
		detector.Point3D{X: norm(thumbX), Y: norm(thumbY)},
		detector.Point3D{X: norm(indexX), Y: norm(indexY)},
	)
	return Frame{Hand: &hand, Width: frameSize, Height: frameSize}
}

func TestMapper_Scenarios(t *testing.T) {
	m := NewMapper(DefaultCalibration())

	tests := []struct {
		name       string
		frame      Frame
		wantScalar float64
		wantMute   bool
		wantPct    int
	}{
		{"A: d=30 is silent and muted", pinchFrame(100, 100, 100, 130), 0.0, true, 0},
		{"B: d=200 is full volume", pinchFrame(100, 100, 100, 300), 1.0, false, 100},
		{"C: d=135 interpolates", pinchFrame(100, 100, 100, 235), 105.0 / 170.0, false, 61},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, ok := m.Map(tt.frame)
			if !ok {
				t.Fatal("expected a command")
			}
			if math.Abs(cmd.Scalar-tt.wantScalar) > epsilon {
				t.Errorf("Scalar = %f, want %f", cmd.Scalar, tt.wantScalar)
			}
			if cmd.Mute != tt.wantMute {
				t.Errorf("Mute = %v, want %v", cmd.Mute, tt.wantMute)
			}
			if cmd.Percentage() != tt.wantPct {
				t.Errorf("Percentage() = %d, want %d", cmd.Percentage(), tt.wantPct)
			}
		})
	}

	t.Run("D: no hand yields no command", func(t *testing.T) {
		cmd, ok := m.Map(Frame{Width: frameSize, Height: frameSize})
		if ok {
			t.Errorf("expected no command, got %+v", cmd)
		}
	})
}

func TestMapper_ClampBounds(t *testing.T) {
	m := NewMapper(DefaultCalibration())

	for _, d := range []float64{0, 1, 15.5, 29.999, 30} {
		if got := m.Command(d).Scalar; got != 0.0 {
			t.Errorf("Command(%f).Scalar = %f, want 0", d, got)
		}
	}
	for _, d := range []float64{200, 200.001, 350, 1e6} {
		if got := m.Command(d).Scalar; got != 1.0 {
			t.Errorf("Command(%f).Scalar = %f, want 1", d, got)
		}
	}
}

func TestMapper_Monotonic(t *testing.T) {
	m := NewMapper(DefaultCalibration())

	prev := -1.0
	for d := 0.0; d <= 250; d += 0.25 {
		s := m.Command(d).Scalar
		if s < prev {
			t.Fatalf("scalar decreased at d=%f: %f < %f", d, s, prev)
		}
		if s < 0 || s > 1 {
			t.Fatalf("scalar out of range at d=%f: %f", d, s)
		}
		prev = s
	}
}

func TestMapper_MuteOnUnclampedDistance(t *testing.T) {
	m := NewMapper(DefaultCalibration())

	for d := 0.0; d < 40; d += 0.5 {
		if !m.Command(d).Mute {
			t.Errorf("Command(%f).Mute = false, want true", d)
		}
	}
	for _, d := range []float64{40, 41, 135, 500} {
		if m.Command(d).Mute {
			t.Errorf("Command(%f).Mute = true, want false", d)
		}
	}

	t.Run("overlap keeps nonzero scalar alongside mute", func(t *testing.T) {
		cmd := m.Command(35)
		if !cmd.Mute {
			t.Error("expected mute at d=35")
		}
		if cmd.Scalar <= 0 {
			t.Errorf("expected scalar > 0 at d=35, got %f", cmd.Scalar)
		}
	})
}

func TestMapper_Deterministic(t *testing.T) {
	m := NewMapper(DefaultCalibration())
	f := pinchFrame(321, 123, 400, 222)

	first, _ := m.Measure(f)
	for i := 0; i < 100; i++ {
		got, _ := m.Measure(f)
		if got != first {
			t.Fatalf("iteration %d: got %+v, want %+v", i, got, first)
		}
	}
}

func TestMapper_PixelSpace(t *testing.T) {
	m := NewMapper(DefaultCalibration())

	// Same normalized landmarks on a larger frame give a larger pixel distance.
	hand := detector.PinchLandmarks(
		detector.Point3D{X: 0.5, Y: 0.5},
		detector.Point3D{X: 0.5, Y: 0.625},
	)

	small, _ := m.Measure(Frame{Hand: &hand, Width: 320, Height: 240})
	large, _ := m.Measure(Frame{Hand: &hand, Width: 1280, Height: 960})

	if small.Distance != 30 {
		t.Errorf("small frame distance = %f, want 30", small.Distance)
	}
	if large.Distance != 120 {
		t.Errorf("large frame distance = %f, want 120", large.Distance)
	}
	if large.Thumb != (PixelPoint{X: 640, Y: 480}) {
		t.Errorf("large frame thumb = %+v", large.Thumb)
	}
}

func TestToPixel_Truncates(t *testing.T) {
	got := ToPixel(detector.Point3D{X: 0.999, Y: 0.5015}, 100, 200)
	if got != (PixelPoint{X: 99, Y: 100}) {
		t.Errorf("ToPixel = %+v, want {99 100}", got)
	}
}

func TestCalibration_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cal     Calibration
		wantErr bool
	}{
		{"default", DefaultCalibration(), false},
		{"negative min", Calibration{MinDistance: -1, MaxDistance: 10, MuteThreshold: 5}, true},
		{"max equals min", Calibration{MinDistance: 10, MaxDistance: 10, MuteThreshold: 5}, true},
		{"negative mute", Calibration{MinDistance: 0, MaxDistance: 10, MuteThreshold: -1}, true},
		{"zero mute disables mute", Calibration{MinDistance: 0, MaxDistance: 10}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cal.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewMapper_InvalidFallsBack(t *testing.T) {
	m := NewMapper(Calibration{MinDistance: 50, MaxDistance: 10})
	if m.Calibration() != DefaultCalibration() {
		t.Errorf("Calibration() = %+v, want default", m.Calibration())
	}
}

func TestNewMapper_CustomCalibration(t *testing.T) {
	m := NewMapper(Calibration{MinDistance: 0, MaxDistance: 100, MuteThreshold: 10})

	cmd := m.Command(50)
	if math.Abs(cmd.Scalar-0.5) > epsilon {
		t.Errorf("Scalar = %f, want 0.5", cmd.Scalar)
	}
	if cmd.Mute {
		t.Error("expected unmuted at d=50")
	}
}
