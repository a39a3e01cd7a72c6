// Package config provides configuration loading and management.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/user/framecast/pkg/export"
)

// Config represents the full configuration for framecast.
type Config struct {
	// Input/Output
	URL        string `yaml:"url"`
	OutputPath string `yaml:"output"`

	// Export options
	Width      int               `yaml:"width"`
	Height     int               `yaml:"height"`
	FrameRate  int               `yaml:"frame_rate"`
	BitrateBps int               `yaml:"bitrate"`
	Quality    string            `yaml:"quality"`
	Codec      string            `yaml:"codec"`
	Container  string            `yaml:"container"`
	Background string            `yaml:"background"`
	OutroMs    float64           `yaml:"outro_ms"`
	Metadata   map[string]string `yaml:"metadata"`

	// Surface
	DurationMs   float64 `yaml:"duration_ms"`
	DurationExpr string  `yaml:"duration_expr"`
	SeekExpr     string  `yaml:"seek_expr"`
	Headless     bool    `yaml:"headless"`
	ChromePath   string  `yaml:"chrome_path"`

	// Buffer
	BufferFrames  int   `yaml:"buffer_frames"`
	BufferBytes   int64 `yaml:"buffer_bytes"`
	BufferCleanup bool  `yaml:"buffer_cleanup"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		Width:      1280,
		Height:     720,
		FrameRate:  30,
		BitrateBps: 5_000_000,
		Quality:    "medium",
		Codec:      "av01",
		Container:  "mp4",
		Background: "#000000",
		Headless:   true,
		LogLevel:   "info",
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// ExportOptions converts the configuration into engine options.
func (c Config) ExportOptions() export.Options {
	return export.Options{
		Width:           c.Width,
		Height:          c.Height,
		FrameRate:       c.FrameRate,
		BitrateBps:      c.BitrateBps,
		Quality:         export.Quality(c.Quality),
		VideoCodec:      c.Codec,
		Container:       c.Container,
		BackgroundColor: c.Background,
		OutroMs:         c.OutroMs,
		Metadata:        c.Metadata,
	}
}

// BufferConfig converts the configuration into frame buffer settings.
func (c Config) BufferConfig() export.BufferConfig {
	return export.BufferConfig{
		MaxFrames:   c.BufferFrames,
		MaxBytes:    c.BufferBytes,
		AutoCleanup: c.BufferCleanup,
	}
}
