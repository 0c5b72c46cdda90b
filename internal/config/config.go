// Package config loads pinchvol settings from defaults, a YAML file, the
// environment and command-line flags, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/pinchvol/internal/gesture"
)

// EnvPrefix prefixes every environment override, e.g. PINCHVOL_LOG_LEVEL.
const EnvPrefix = "PINCHVOL_"

// Audio backends.
const (
	BackendPlugin     = "plugin"
	BackendCamillaDSP = "camilladsp"
	BackendMemory     = "memory"
)

// Detector backends.
const (
	DetectorMediaPipe = "mediapipe"
	DetectorMock      = "mock"
)

// Config is the top-level configuration.
type Config struct {
	Camera   CameraConfig   `yaml:"camera" envPrefix:"CAMERA_"`
	Detector DetectorConfig `yaml:"detector" envPrefix:"DETECTOR_"`
	Audio    AudioConfig    `yaml:"audio" envPrefix:"AUDIO_"`
	Gesture  GestureConfig  `yaml:"gesture" envPrefix:"GESTURE_"`
	Loop     LoopConfig     `yaml:"loop" envPrefix:"LOOP_"`
	UI       UIConfig       `yaml:"ui" envPrefix:"UI_"`
	Server   ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	Store    StoreConfig    `yaml:"store" envPrefix:"STORE_"`
	Logging  LoggingConfig  `yaml:"logging" envPrefix:"LOG_"`
}

type CameraConfig struct {
	Device int  `yaml:"device" env:"DEVICE"`
	Width  int  `yaml:"width" env:"WIDTH"`
	Height int  `yaml:"height" env:"HEIGHT"`
	FPS    int  `yaml:"fps" env:"FPS"`
	Mirror bool `yaml:"mirror" env:"MIRROR"`
}

type DetectorConfig struct {
	Backend                string  `yaml:"backend" env:"BACKEND"`
	MaxHands               int     `yaml:"max_hands" env:"MAX_HANDS"`
	MinDetectionConfidence float64 `yaml:"min_detection_confidence" env:"MIN_DETECTION_CONFIDENCE"`
	MinTrackingConfidence  float64 `yaml:"min_tracking_confidence" env:"MIN_TRACKING_CONFIDENCE"`
	Script                 string  `yaml:"script,omitempty" env:"SCRIPT"`
	Python                 string  `yaml:"python,omitempty" env:"PYTHON"`
}

type AudioConfig struct {
	Backend         string        `yaml:"backend" env:"BACKEND"`
	PluginDir       string        `yaml:"plugin_dir,omitempty" env:"PLUGIN_DIR"`
	Plugin          string        `yaml:"plugin" env:"PLUGIN"`
	PluginTimeoutMS int           `yaml:"plugin_timeout_ms" env:"PLUGIN_TIMEOUT_MS"`
	CamillaDSP      CamillaConfig `yaml:"camilladsp" envPrefix:"CAMILLA_"`
}

type CamillaConfig struct {
	WsURL     string  `yaml:"ws_url" env:"WS_URL"`
	TimeoutMS int     `yaml:"timeout_ms" env:"TIMEOUT_MS"`
	MinDB     float64 `yaml:"min_db" env:"MIN_DB"`
	MaxDB     float64 `yaml:"max_db" env:"MAX_DB"`
}

// GestureConfig is the calibration used until one is saved in the store.
type GestureConfig struct {
	MinDistance   float64 `yaml:"min_distance" env:"MIN_DISTANCE"`
	MaxDistance   float64 `yaml:"max_distance" env:"MAX_DISTANCE"`
	MuteThreshold float64 `yaml:"mute_threshold" env:"MUTE_THRESHOLD"`
}

type LoopConfig struct {
	DelayMS int `yaml:"delay_ms" env:"DELAY_MS"`
}

type UIConfig struct {
	Tray      bool `yaml:"tray" env:"TRAY"`
	Preview   bool `yaml:"preview" env:"PREVIEW"`
	Autostart bool `yaml:"autostart" env:"AUTOSTART"`
}

type ServerConfig struct {
	// Addr is the dashboard listen address. Empty disables the dashboard.
	Addr      string `yaml:"addr" env:"ADDR"`
	StaticDir string `yaml:"static_dir,omitempty" env:"STATIC_DIR"`
}

type StoreConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

type LoggingConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
}

// Default returns a fully populated Config.
func Default() Config {
	cal := gesture.DefaultCalibration()
	return Config{
		Camera: CameraConfig{
			Device: 0,
			Width:  640,
			Height: 480,
			FPS:    30,
			Mirror: true,
		},
		Detector: DetectorConfig{
			Backend:                DetectorMediaPipe,
			MaxHands:               1,
			MinDetectionConfidence: 0.7,
			MinTrackingConfidence:  0.5,
		},
		Audio: AudioConfig{
			Backend:         BackendPlugin,
			Plugin:          "system-control",
			PluginTimeoutMS: 2000,
			CamillaDSP: CamillaConfig{
				WsURL:     "ws://127.0.0.1:1234",
				TimeoutMS: 500,
				MinDB:     -65.0,
				MaxDB:     0.0,
			},
		},
		Gesture: GestureConfig{
			MinDistance:   cal.MinDistance,
			MaxDistance:   cal.MaxDistance,
			MuteThreshold: cal.MuteThreshold,
		},
		Loop: LoopConfig{
			DelayMS: 10,
		},
		UI: UIConfig{
			Tray:    true,
			Preview: true,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
		Store: StoreConfig{
			Path: "~/.pinchvol/pinchvol.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFile reads a YAML file over Default(). Unknown fields are rejected.
func LoadFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML over Default().
func Parse(b []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, errors.New("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// ApplyEnv overrides fields from PINCHVOL_* environment variables.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(env.Options{Prefix: EnvPrefix})
}

// ApplyEnvFrom is ApplyEnv reading from environ instead of the process
// environment.
func (c *Config) ApplyEnvFrom(environ map[string]string) error {
	return c.applyEnv(env.Options{Prefix: EnvPrefix, Environment: environ})
}

func (c *Config) applyEnv(opts env.Options) error {
	if err := env.ParseWithOptions(c, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// FlagOverrides holds command-line values. Nil fields were not set.
type FlagOverrides struct {
	CameraDevice *int
	AudioBackend *string
	PluginDir    *string
	CamillaWsURL *string
	ServerAddr   *string
	StaticDir    *string
	StorePath    *string
	LogLevel     *string
	NoTray       *bool
	NoPreview    *bool
	Autostart    *bool
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.CameraDevice != nil {
		cfg.Camera.Device = *o.CameraDevice
	}
	if o.AudioBackend != nil {
		cfg.Audio.Backend = *o.AudioBackend
	}
	if o.PluginDir != nil {
		cfg.Audio.PluginDir = *o.PluginDir
	}
	if o.CamillaWsURL != nil {
		cfg.Audio.CamillaDSP.WsURL = *o.CamillaWsURL
	}
	if o.ServerAddr != nil {
		cfg.Server.Addr = *o.ServerAddr
	}
	if o.StaticDir != nil {
		cfg.Server.StaticDir = *o.StaticDir
	}
	if o.StorePath != nil {
		cfg.Store.Path = *o.StorePath
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.NoTray != nil && *o.NoTray {
		cfg.UI.Tray = false
	}
	if o.NoPreview != nil && *o.NoPreview {
		cfg.UI.Preview = false
	}
	if o.Autostart != nil {
		cfg.UI.Autostart = *o.Autostart
	}
}

// Validate checks config invariants and returns a user-friendly error.
func (c *Config) Validate() error {
	if c.Camera.Device < 0 {
		return errors.New("camera.device must be >= 0")
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return errors.New("camera.width and camera.height must be > 0")
	}
	if c.Camera.FPS <= 0 {
		return errors.New("camera.fps must be > 0")
	}

	switch c.Detector.Backend {
	case DetectorMediaPipe, DetectorMock:
	default:
		return fmt.Errorf("detector.backend must be %q or %q", DetectorMediaPipe, DetectorMock)
	}
	if c.Detector.MaxHands < 1 {
		return errors.New("detector.max_hands must be >= 1")
	}
	if c.Detector.MinDetectionConfidence < 0 || c.Detector.MinDetectionConfidence > 1 {
		return errors.New("detector.min_detection_confidence must be between 0 and 1")
	}
	if c.Detector.MinTrackingConfidence < 0 || c.Detector.MinTrackingConfidence > 1 {
		return errors.New("detector.min_tracking_confidence must be between 0 and 1")
	}

	switch c.Audio.Backend {
	case BackendPlugin:
		if c.Audio.Plugin == "" {
			return errors.New("audio.plugin must not be empty")
		}
		if c.Audio.PluginTimeoutMS <= 0 {
			return errors.New("audio.plugin_timeout_ms must be > 0")
		}
	case BackendCamillaDSP:
		if c.Audio.CamillaDSP.WsURL == "" {
			return errors.New("audio.camilladsp.ws_url must not be empty")
		}
		if c.Audio.CamillaDSP.TimeoutMS <= 0 {
			return errors.New("audio.camilladsp.timeout_ms must be > 0")
		}
		if c.Audio.CamillaDSP.MinDB >= c.Audio.CamillaDSP.MaxDB {
			return errors.New("audio.camilladsp.min_db must be < audio.camilladsp.max_db")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("audio.backend must be one of %q, %q, %q", BackendPlugin, BackendCamillaDSP, BackendMemory)
	}

	if err := c.Calibration().Validate(); err != nil {
		return fmt.Errorf("gesture: %w", err)
	}
	if c.Loop.DelayMS < 0 {
		return errors.New("loop.delay_ms must be >= 0")
	}
	if c.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	return nil
}

// Calibration returns the gesture section as a calibration.
func (c *Config) Calibration() gesture.Calibration {
	return gesture.Calibration{
		MinDistance:   c.Gesture.MinDistance,
		MaxDistance:   c.Gesture.MaxDistance,
		MuteThreshold: c.Gesture.MuteThreshold,
	}
}

// LoopDelay returns the per-iteration delay.
func (c *Config) LoopDelay() time.Duration {
	return time.Duration(c.Loop.DelayMS) * time.Millisecond
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(home, p[2:])
	}
	return p
}
