package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"wavegraph/internal/logging"
	"wavegraph/pkg/graph"
)

// Config holds the settings shared by every wavegraph command. Command-line
// flags override file values.
type Config struct {
	Log LogConfig `yaml:"log"`
	Run RunConfig `yaml:"run"`
}

// LogConfig selects the slog level and handler format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RunConfig holds the defaults for pipeline runs.
type RunConfig struct {
	RecursionLimit int           `yaml:"recursion_limit"`
	MaxParallel    int           `yaml:"max_parallel"`
	Timeout        time.Duration `yaml:"timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: logging.FormatText},
		Run: RunConfig{RecursionLimit: graph.DefaultRecursionLimit},
	}
}

// Load reads a YAML config file over the defaults. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "", logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if c.Run.RecursionLimit < 0 {
		errs = append(errs, fmt.Errorf("run.recursion_limit must not be negative, got %d", c.Run.RecursionLimit))
	}
	if c.Run.MaxParallel < 0 {
		errs = append(errs, fmt.Errorf("run.max_parallel must not be negative, got %d", c.Run.MaxParallel))
	}
	if c.Run.Timeout < 0 {
		errs = append(errs, fmt.Errorf("run.timeout must not be negative, got %s", c.Run.Timeout))
	}
	return errors.Join(errs...)
}

// RunOptions converts the run settings into executor options.
func (c Config) RunOptions() []graph.RunOption {
	var opts []graph.RunOption
	if c.Run.RecursionLimit > 0 {
		opts = append(opts, graph.WithRecursionLimit(c.Run.RecursionLimit))
	}
	if c.Run.MaxParallel > 0 {
		opts = append(opts, graph.WithMaxParallel(c.Run.MaxParallel))
	}
	return opts
}
