// Package config loads the taskring YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"taskring/internal/logging"
	"taskring/kernel"
)

// Tick source kinds.
const (
	TickSignal = "signal"
	TickTicker = "ticker"
	TickNone   = "none"
)

// Config is the full file configuration. Zero fields keep their defaults.
type Config struct {
	Stack StackConfig `yaml:"stack"`
	Tick  TickConfig  `yaml:"tick"`
	Log   LogConfig   `yaml:"log"`
}

type StackConfig struct {
	Size     int `yaml:"size"`
	Guard    int `yaml:"guard"`
	MaxTasks int `yaml:"max_tasks"`
}

type TickConfig struct {
	// Source is signal (companion process), ticker (in-process) or none.
	Source   string        `yaml:"source"`
	Interval time.Duration `yaml:"interval"`
	// Signal names the signal the companion sends, e.g. SIGUSR1.
	Signal string `yaml:"signal"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Stack: StackConfig{
			Size:     kernel.DefaultStackSize,
			Guard:    kernel.DefaultGuardSize,
			MaxTasks: kernel.DefaultMaxTasks,
		},
		Tick: TickConfig{
			Source:   TickSignal,
			Interval: time.Second,
			Signal:   "SIGUSR1",
		},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatText,
		},
	}
}

// Load reads path over the defaults and validates the result. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.decode(data); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks the configuration for values the scheduler would reject.
func (c Config) Validate() error {
	var errs []error
	if c.Stack.Guard <= 0 {
		errs = append(errs, fmt.Errorf("stack.guard must be positive, got %d", c.Stack.Guard))
	}
	if minSize := kernel.MinStackSize(c.Stack.Guard); c.Stack.Size < minSize {
		errs = append(errs, fmt.Errorf("stack.size %d below minimum %d", c.Stack.Size, minSize))
	}
	if c.Stack.MaxTasks < 2 {
		errs = append(errs, fmt.Errorf("stack.max_tasks must be at least 2, got %d", c.Stack.MaxTasks))
	}
	switch c.Tick.Source {
	case TickSignal, TickTicker:
		if c.Tick.Interval <= 0 {
			errs = append(errs, fmt.Errorf("tick.interval must be positive, got %s", c.Tick.Interval))
		}
	case TickNone:
	default:
		errs = append(errs, fmt.Errorf("tick.source %q is not one of signal, ticker, none", c.Tick.Source))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if err := logging.CheckFormat(c.Log.Format); err != nil {
		errs = append(errs, fmt.Errorf("log.format: %w", err))
	}
	return errors.Join(errs...)
}

// Kernel returns the scheduler settings. Tick source, logger and clock are
// left for the caller.
func (c Config) Kernel() kernel.Config {
	return kernel.Config{
		StackSize: c.Stack.Size,
		GuardSize: c.Stack.Guard,
		MaxTasks:  c.Stack.MaxTasks,
	}
}
