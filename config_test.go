package canopy

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Driver.FrameRate != 60 {
		t.Errorf("FrameRate = %d, want 60", cfg.Driver.FrameRate)
	}
	if got := cfg.SurfaceRect(); got != (Rect{Width: 800, Height: 600}) {
		t.Errorf("SurfaceRect = %v, want 800x600", got)
	}
	if got, want := cfg.FrameInterval(), time.Second/60; got != want {
		t.Errorf("FrameInterval = %v, want %v", got, want)
	}
}

func TestLoadConfigTOML(t *testing.T) {
	path := writeConfig(t, "canopy.toml", `
debug = true
keep_rendering_seconds = 1.5

[driver]
frame_rate = 30
idle_poll = "250ms"

[surface]
width = 1280
height = 720

[logging]
level = "debug"
format = "json"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Driver.FrameRate != 30 || cfg.Driver.IdlePoll != 250*time.Millisecond {
		t.Errorf("Driver = %+v, want 30fps and 250ms", cfg.Driver)
	}
	if cfg.Surface.Width != 1280 || cfg.Surface.Height != 720 {
		t.Errorf("Surface = %+v, want 1280x720", cfg.Surface)
	}
	if !cfg.Debug || cfg.KeepRenderingSeconds != 1.5 {
		t.Errorf("Debug = %v KeepRenderingSeconds = %v", cfg.Debug, cfg.KeepRenderingSeconds)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoadConfigYAMLKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "canopy.yaml", `
driver:
  frame_rate: 120
  idle_poll: 1s
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Driver.FrameRate != 120 || cfg.Driver.IdlePoll != time.Second {
		t.Errorf("Driver = %+v, want 120fps and 1s", cfg.Driver)
	}
	if cfg.Surface.Width != 800 || cfg.Logging.Level != "info" {
		t.Error("unset sections should keep their defaults")
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		want string
	}{
		{"unsupported extension", "canopy.ini", "x=1", "unsupported extension"},
		{"bad toml", "canopy.toml", "[driver\n", "parse config"},
		{"zero frame rate", "canopy.toml", "[driver]\nframe_rate = 0\n", "frame_rate must be positive"},
	}
	for _, tt := range tests {
		_, err := LoadConfig(writeConfig(t, tt.file, tt.body))
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: err = %v, want it to contain %q", tt.name, err, tt.want)
		}
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing file: err = %v, want a not-exist error", err)
	}
}

func TestConfigOptionsApply(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KeepRenderingSeconds = 2
	um := NewUpdateManager(cfg.Options(nil)...)
	if um.keepRenderingSeconds != 2 {
		t.Errorf("keepRenderingSeconds = %v, want 2", um.keepRenderingSeconds)
	}
	if um.surface != cfg.SurfaceRect() {
		t.Errorf("surface = %v, want %v", um.surface, cfg.SurfaceRect())
	}
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Level: "loud", Format: "console"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug should be disabled at the fallback level")
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be enabled at the fallback level")
	}
}
