package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/xraph/tally"
)

// Config is the CLI configuration file.
type Config struct {
	Logger   LoggerConfig   `yaml:"logger"`
	Discover DiscoverConfig `yaml:"discover"`
}

// LoggerConfig selects the slog handler.
type LoggerConfig struct {
	JSON  bool   `yaml:"json"`
	Level string `yaml:"level"`
}

// DiscoverConfig holds the discover defaults.
type DiscoverConfig struct {
	Window string `yaml:"window"`
	Limit  int    `yaml:"limit"`
}

func defaultConfig() Config {
	return Config{
		Logger: LoggerConfig{Level: "info"},
		Discover: DiscoverConfig{
			Window: tally.DefaultDiscoverWindow.String(),
			Limit:  tally.DefaultDiscoverLimit,
		},
	}
}

// loadConfig reads the YAML config at path. A missing file yields the
// defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if _, err := cfg.window(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) window() (time.Duration, error) {
	if c.Discover.Window == "" {
		return tally.DefaultDiscoverWindow, nil
	}
	d, err := time.ParseDuration(c.Discover.Window)
	if err != nil {
		return 0, fmt.Errorf("discover window: %w", err)
	}
	return d, tally.ValidateWindow(d)
}

// newLogger builds a JSON or text slog.Logger writing to w.
func newLogger(cfg LoggerConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("logger level: %w", err)
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler), nil
}
