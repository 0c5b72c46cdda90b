package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ayusman/pinchvol/internal/app"
	"github.com/ayusman/pinchvol/internal/audio"
	"github.com/ayusman/pinchvol/internal/capture"
	"github.com/ayusman/pinchvol/internal/config"
	"github.com/ayusman/pinchvol/internal/control"
	"github.com/ayusman/pinchvol/internal/detector"
	"github.com/ayusman/pinchvol/internal/plugin"
	"github.com/ayusman/pinchvol/internal/render"
	"github.com/ayusman/pinchvol/internal/server"
	"github.com/ayusman/pinchvol/internal/store"
	"github.com/ayusman/pinchvol/internal/tray"
)

func main() {
	if err := run(); err != nil {
		slog.Error("pinchvol failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a YAML config file")
	camera := flag.Int("camera", 0, "camera device index")
	backend := flag.String("audio", "", "audio backend: plugin, camilladsp or memory")
	pluginDir := flag.String("plugin-dir", "", "directory containing audio plugins")
	camillaURL := flag.String("camilla-url", "", "CamillaDSP websocket url")
	addr := flag.String("addr", "", "dashboard listen address, empty to disable")
	staticDir := flag.String("static-dir", "", "directory served by the dashboard")
	dbPath := flag.String("db", "", "path to the sqlite database")
	logLevel := flag.String("log-level", "", "log level: error, warn, info or debug")
	noTray := flag.Bool("no-tray", false, "run without the system tray")
	noPreview := flag.Bool("no-preview", false, "run without the preview window")
	autostart := flag.Bool("start", false, "start gesture control immediately")
	flag.Parse()

	// Only flags given on the command line override the config.
	var overrides config.FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "camera":
			overrides.CameraDevice = camera
		case "audio":
			overrides.AudioBackend = backend
		case "plugin-dir":
			overrides.PluginDir = pluginDir
		case "camilla-url":
			overrides.CamillaWsURL = camillaURL
		case "addr":
			overrides.ServerAddr = addr
		case "static-dir":
			overrides.StaticDir = staticDir
		case "db":
			overrides.StorePath = dbPath
		case "log-level":
			overrides.LogLevel = logLevel
		case "no-tray":
			overrides.NoTray = noTray
		case "no-preview":
			overrides.NoPreview = noPreview
		case "start":
			overrides.Autostart = autostart
		}
	})

	cfg, err := loadConfig(*configPath, overrides)
	if err != nil {
		return err
	}

	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	logger.Info("PinchVol - Gesture Volume Control")

	storePath := config.ExpandPath(cfg.Store.Path)
	if err := os.MkdirAll(filepath.Dir(storePath), 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(storePath)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	det, err := newDetector(cfg, logger)
	if err != nil {
		return err
	}
	endpoint, err := newEndpoint(cfg)
	if err != nil {
		return err
	}

	loopConfig := control.Config{
		Camera: capture.NewCamera(capture.Config{
			DeviceID: cfg.Camera.Device,
			Width:    cfg.Camera.Width,
			Height:   cfg.Camera.Height,
			FPS:      cfg.Camera.FPS,
			Mirror:   cfg.Camera.Mirror,
		}),
		Detector:    det,
		Audio:       endpoint,
		Calibration: cfg.Calibration(),
		Delay:       cfg.LoopDelay(),
		Logger:      logger,
	}
	if cfg.UI.Preview {
		loopConfig.Viewer = render.NewWindow(render.WindowTitle)
	}

	a := app.New(app.Config{Loop: loopConfig, Store: st, Logger: logger})
	defer a.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	dashboardURL := ""
	if cfg.Server.Addr != "" {
		webDir := cfg.Server.StaticDir
		if webDir == "" {
			webDir = findDir("web")
		}
		if webDir != "" {
			logger.Info("serving static files", "dir", webDir)
		}
		srv := server.New(server.Config{StaticDir: webDir, App: a, Logger: logger})
		dashboardURL = "http://" + cfg.Server.Addr
		g.Go(func() error { return srv.Run(ctx, cfg.Server.Addr) })
	}

	if cfg.UI.Autostart {
		if err := a.Start(); err != nil {
			logger.Warn("autostart failed", "error", err)
		}
	}

	if cfg.UI.Tray {
		t := tray.New(a, logger)
		t.OnQuit(cancel)
		if dashboardURL != "" {
			t.OnDashboard(func() {
				if err := openBrowser(dashboardURL); err != nil {
					logger.Warn("failed to open dashboard", "url", dashboardURL, "error", err)
				}
			})
		}
		g.Go(func() error {
			<-ctx.Done()
			t.Quit()
			return nil
		})
		// systray needs the main goroutine.
		t.Run()
		cancel()
	} else {
		g.Go(func() error {
			<-ctx.Done()
			return nil
		})
	}

	err = g.Wait()
	logger.Info("shutting down")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// loadConfig layers the config file, environment and flags over the defaults.
func loadConfig(path string, overrides config.FlagOverrides) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	overrides.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newDetector returns the configured hand detector. Without a MediaPipe
// helper it falls back to a detector that never sees a hand.
func newDetector(cfg config.Config, logger *slog.Logger) (detector.Detector, error) {
	if cfg.Detector.Backend == config.DetectorMock {
		return detector.NewMockDetector(), nil
	}

	det, err := detector.NewMediaPipeDetector(detector.Config{
		MaxHands:        cfg.Detector.MaxHands,
		MinConfidence:   cfg.Detector.MinDetectionConfidence,
		MinTrackingConf: cfg.Detector.MinTrackingConfidence,
		ScriptPath:      cfg.Detector.Script,
		PythonPath:      cfg.Detector.Python,
	})
	if errors.Is(err, detector.ErrScriptNotFound) {
		logger.Warn("MediaPipe not available, hand detection disabled", "error", err)
		return detector.NewMockDetector(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("create detector: %w", err)
	}
	return det, nil
}

// newEndpoint returns the configured audio endpoint.
func newEndpoint(cfg config.Config) (audio.Endpoint, error) {
	switch cfg.Audio.Backend {
	case config.BackendPlugin:
		dir := cfg.Audio.PluginDir
		if dir == "" {
			dir = findDir("plugins")
		}
		if dir == "" {
			return nil, errors.New("no plugin directory found; set audio.plugin_dir")
		}
		executor := plugin.NewExecutor(time.Duration(cfg.Audio.PluginTimeoutMS) * time.Millisecond)
		return audio.NewPlugin(plugin.NewManager(config.ExpandPath(dir)), cfg.Audio.Plugin, executor), nil
	case config.BackendCamillaDSP:
		c := cfg.Audio.CamillaDSP
		return audio.NewCamilla(audio.CamillaConfig{
			URL:     c.WsURL,
			MinDB:   c.MinDB,
			MaxDB:   c.MaxDB,
			Timeout: time.Duration(c.TimeoutMS) * time.Millisecond,
		}), nil
	case config.BackendMemory:
		return audio.NewMemory(0.5), nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q", cfg.Audio.Backend)
	}
}

// findDir searches for a directory named name in common locations.
// It checks name, ../name, ../../name and ~/.pinchvol/name.
// Returns the first existing directory or empty string if none found.
func findDir(name string) string {
	for _, p := range []string{name, filepath.Join("..", name), filepath.Join("..", "..", name)} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	homeDirPath := filepath.Join(homeDir, ".pinchvol", name)
	if info, err := os.Stat(homeDirPath); err == nil && info.IsDir() {
		return homeDirPath
	}
	return ""
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
