// Package config loads bpmhelper settings from an optional YAML file
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/james-see/bpmhelper/pkg/editor"
	"github.com/james-see/bpmhelper/pkg/tempo"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when none is given
const DefaultPath = "bpmhelper.yaml"

// Config holds user settings
type Config struct {
	Beats      float64 `yaml:"beats"`
	InitialBPM float64 `yaml:"initial_bpm"`
	BaseBPM    float64 `yaml:"base_bpm"`
	Tolerance  float64 `yaml:"tolerance"`
	LogLevel   string  `yaml:"log_level"`
	Server     Server  `yaml:"server"`
}

// Server holds settings for the HTTP API
type Server struct {
	Port     int           `yaml:"port"`
	Autosave time.Duration `yaml:"autosave"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Beats:      editor.DefaultBeats,
		InitialBPM: editor.DefaultInitialTempo,
		BaseBPM:    tempo.DefaultTempo,
		Tolerance:  tempo.Tolerance,
		LogLevel:   "info",
		Server: Server{
			Port:     8080,
			Autosave: 500 * time.Millisecond,
		},
	}
}

// Load reads the config at path over the defaults. A missing file is not an
// error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that every value is usable
func (c Config) Validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"beats", c.Beats},
		{"initial_bpm", c.InitialBPM},
		{"base_bpm", c.BaseBPM},
		{"tolerance", c.Tolerance},
	} {
		if !(f.value > 0) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%s must be a positive number, got %v", f.name, f.value)
		}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.Autosave < 0 {
		return fmt.Errorf("server.autosave must not be negative")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// EditorSettings converts the config into editor settings
func (c Config) EditorSettings() editor.Settings {
	return editor.Settings{
		Beats:        c.Beats,
		InitialTempo: c.InitialBPM,
		Tolerance:    c.Tolerance,
	}
}

// Level returns the configured log level, falling back to Info
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
