// Package config defines scheduler configuration and YAML loading.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Mode selects the execution strategy for suspended waits.
type Mode string

const (
	// ModeFibers runs jobs on a fixed pool of suspendable fibers.
	ModeFibers Mode = "fibers"
	// ModeInline runs jobs directly on worker goroutines; waits drain the
	// job queue synchronously instead of suspending.
	ModeInline Mode = "inline"
)

// IsInline reports whether m is the non-suspending fallback mode.
func (m Mode) IsInline() bool { return m == ModeInline }

// Config holds every capacity the scheduler sizes at construction, plus
// CLI-level settings. All capacities are fixed for the scheduler's
// lifetime; exceeding one is an error, never a resize.
type Config struct {
	MaxJobs     int    `yaml:"max_jobs"`     // job queue capacity
	MaxCounters int    `yaml:"max_counters"` // concurrently live batches
	MaxFibers   int    `yaml:"max_fibers"`   // suspendable execution contexts
	Workers     int    `yaml:"workers"`      // worker goroutines (0 = NumCPU)
	Mode        Mode   `yaml:"mode"`         // fibers or inline
	LogLevel    string `yaml:"log_level"`    // debug, info, warn, error
	LogFormat   string `yaml:"log_format"`   // text, json
	TraceDB     string `yaml:"trace_db"`     // run-history sqlite path ("" = disabled)
	Addr        string `yaml:"addr"`         // status server listen address
}

// Default returns sensible defaults.
func Default() Config {
	return Config{
		MaxJobs:     4096,
		MaxCounters: 512,
		MaxFibers:   128,
		Workers:     runtime.NumCPU(),
		Mode:        ModeFibers,
		LogLevel:    "info",
		LogFormat:   "text",
		Addr:        ":8080",
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return cfg, cfg.Validate()
}

// Validate checks capacities and enumerations.
func (c Config) Validate() error {
	if c.MaxJobs <= 0 {
		return fmt.Errorf("max_jobs must be > 0, got %d", c.MaxJobs)
	}
	if c.MaxCounters <= 0 {
		return fmt.Errorf("max_counters must be > 0, got %d", c.MaxCounters)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0, got %d", c.Workers)
	}
	switch c.Mode {
	case ModeFibers:
		if c.MaxFibers <= 0 {
			return fmt.Errorf("max_fibers must be > 0 in fibers mode, got %d", c.MaxFibers)
		}
		if c.MaxFibers < c.Workers {
			// Every worker needs a fiber to host a running job.
			return fmt.Errorf("max_fibers (%d) must be >= workers (%d)", c.MaxFibers, c.Workers)
		}
	case ModeInline:
		// Fibers are unused; any value is accepted.
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", ModeFibers, ModeInline, c.Mode)
	}
	return nil
}
