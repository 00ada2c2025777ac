package canopy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds the settings for an UpdateManager and its Driver.
type Config struct {
	Driver  DriverConfig  `toml:"driver" yaml:"driver"`
	Surface SurfaceConfig `toml:"surface" yaml:"surface"`
	Logging LoggingConfig `toml:"logging" yaml:"logging"`

	Debug                bool    `toml:"debug" yaml:"debug"`
	KeepRenderingSeconds float32 `toml:"keep_rendering_seconds" yaml:"keep_rendering_seconds"`
}

type DriverConfig struct {
	FrameRate int           `toml:"frame_rate" yaml:"frame_rate"`
	IdlePoll  time.Duration `toml:"idle_poll" yaml:"idle_poll"` // 0 waits for a wake request only
}

type SurfaceConfig struct {
	Width  int `toml:"width" yaml:"width"`
	Height int `toml:"height" yaml:"height"`
}

type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"` // "json" or "console"
}

// DefaultConfig returns the settings used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Driver: DriverConfig{
			FrameRate: 60,
		},
		Surface: SurfaceConfig{
			Width:  800,
			Height: 600,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig reads a TOML or YAML file, chosen by extension, over DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("config %s: unsupported extension", path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Driver.FrameRate <= 0 {
		return nil, fmt.Errorf("config %s: frame_rate must be positive", path)
	}
	return cfg, nil
}

// FrameInterval returns the time between driver ticks.
func (c *Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.Driver.FrameRate)
}

// SurfaceRect returns the configured default surface.
func (c *Config) SurfaceRect() Rect {
	return Rect{Width: c.Surface.Width, Height: c.Surface.Height}
}

// Options converts the config into UpdateManager options.
func (c *Config) Options(logger *zap.Logger) []Option {
	return []Option{
		WithLogger(logger),
		WithDebug(c.Debug),
		WithSurface(c.SurfaceRect()),
		WithKeepRendering(c.KeepRenderingSeconds),
	}
}

// NewLogger builds a zap logger. An unknown level falls back to info.
func NewLogger(cfg LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
