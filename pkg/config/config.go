// Package config loads the streamtail configuration from YAML or JSON
// files, with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// TailConfig configures which file is tailed and how.
type TailConfig struct {
	// Path is the file to tail. Required.
	Path string `yaml:"path" json:"path"`

	// DelayMillis is the pause between polls, in milliseconds.
	// Default: 1000.
	DelayMillis int `yaml:"delay_millis" json:"delay_millis"`

	// FromEnd starts at the current end of the file.
	FromEnd bool `yaml:"from_end" json:"from_end"`

	// ReOpen closes and reopens the file between polls.
	ReOpen bool `yaml:"re_open" json:"re_open"`

	// BufferSize is the read chunk size in bytes. Default: 4096.
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`
}

// Delay returns the poll delay as a duration.
func (c TailConfig) Delay() time.Duration {
	if c.DelayMillis <= 0 {
		return time.Second
	}
	return time.Duration(c.DelayMillis) * time.Millisecond
}

// ServeConfig configures the optional HTTP surface.
type ServeConfig struct {
	// Listen is the address for the metrics and tail endpoints, e.g.
	// ":9120". Empty disables the server.
	Listen string `yaml:"listen" json:"listen"`

	// TailBufferLines is how many recent lines the /tail endpoint
	// keeps. Default: 100.
	TailBufferLines int `yaml:"tail_buffer_lines" json:"tail_buffer_lines"`
}

// Config is the root streamtail configuration.
type Config struct {
	Tail  TailConfig  `yaml:"tail" json:"tail"`
	Serve ServeConfig `yaml:"serve" json:"serve"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Tail: TailConfig{
			DelayMillis: 1000,
			BufferSize:  4096,
		},
		Serve: ServeConfig{
			TailBufferLines: 100,
		},
	}
}

// Validate checks the configuration for inconsistencies.
func (c Config) Validate() error {
	if c.Tail.Path == "" {
		return fmt.Errorf("config: tail.path is required")
	}
	if c.Tail.DelayMillis < 0 {
		return fmt.Errorf("config: tail.delay_millis cannot be negative")
	}
	if c.Tail.BufferSize < 0 {
		return fmt.Errorf("config: tail.buffer_size cannot be negative")
	}
	if c.Serve.TailBufferLines < 0 {
		return fmt.Errorf("config: serve.tail_buffer_lines cannot be negative")
	}
	return nil
}

// Load loads configuration from a file (YAML or JSON), detecting the
// format by extension, and applies STREAMIO_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if strings.HasSuffix(path, ".json") {
			err = LoadJSON(path, &cfg)
		} else {
			err = LoadYAML(path, &cfg)
		}
		if err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides fields from STREAMIO_* variables. The mapping is
// explicit: an unknown variable name is simply not a knob, while a
// malformed value in a known one is a startup error.
func applyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv("STREAMIO_TAIL_PATH"); ok {
		cfg.Tail.Path = v
	}
	if v, ok := os.LookupEnv("STREAMIO_TAIL_DELAY_MILLIS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: STREAMIO_TAIL_DELAY_MILLIS: %w", err)
		}
		cfg.Tail.DelayMillis = n
	}
	if v, ok := os.LookupEnv("STREAMIO_TAIL_FROM_END"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: STREAMIO_TAIL_FROM_END: %w", err)
		}
		cfg.Tail.FromEnd = b
	}
	if v, ok := os.LookupEnv("STREAMIO_TAIL_RE_OPEN"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: STREAMIO_TAIL_RE_OPEN: %w", err)
		}
		cfg.Tail.ReOpen = b
	}
	if v, ok := os.LookupEnv("STREAMIO_TAIL_BUFFER_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: STREAMIO_TAIL_BUFFER_SIZE: %w", err)
		}
		cfg.Tail.BufferSize = n
	}
	if v, ok := os.LookupEnv("STREAMIO_SERVE_LISTEN"); ok {
		cfg.Serve.Listen = v
	}
	return nil
}
