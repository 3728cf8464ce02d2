// Package config loads runtime settings for the engine binaries.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/plus3/ecscore/timing"
)

// Features toggles optional engine behavior.
type Features struct {
	Parallel            bool `json:"parallel" yaml:"parallel" toml:"parallel"`
	Profiler            bool `json:"profiler" yaml:"profiler" toml:"profiler"`
	SaveLoad            bool `json:"saveload" yaml:"saveload" toml:"saveload"`
	StorageEventControl bool `json:"storage_event_control" yaml:"storage_event_control" toml:"storage_event_control"`
}

// Loop configures the game loop.
type Loop struct {
	TickRate  int     `json:"tick_rate" yaml:"tick_rate" toml:"tick_rate"`
	FixedRate int     `json:"fixed_rate" yaml:"fixed_rate" toml:"fixed_rate"`
	TimeScale float64 `json:"time_scale" yaml:"time_scale" toml:"time_scale"`
	Limiter   string  `json:"limiter" yaml:"limiter" toml:"limiter"`
}

// Log configures the process logger.
type Log struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Pretty bool   `json:"pretty" yaml:"pretty" toml:"pretty"`
}

// Metrics configures the profiler HTTP endpoint.
type Metrics struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`
}

// Config holds runtime parameters. Fields missing from a file keep the
// values of Default.
type Config struct {
	Features Features `json:"features" yaml:"features" toml:"features"`
	Loop     Loop     `json:"loop" yaml:"loop" toml:"loop"`
	Log      Log      `json:"log" yaml:"log" toml:"log"`
	Metrics  Metrics  `json:"metrics" yaml:"metrics" toml:"metrics"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Features: Features{Parallel: true},
		Loop: Loop{
			TickRate:  60,
			FixedRate: timing.DefaultFixedRate,
			TimeScale: 1,
			Limiter:   timing.SleepAndYield.String(),
		},
		Log:     Log{Level: "info"},
		Metrics: Metrics{Addr: ":9090"},
	}
}

var errEmptyPath = errors.New("empty config path")

// Load reads a configuration file based on its extension on top of Default.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errEmptyPath
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// LoadOrDefault is Load, except that an empty path yields Default.
func LoadOrDefault(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Loop.TickRate < 0 {
		errs = append(errs, fmt.Errorf("loop.tick_rate must not be negative, got %d", c.Loop.TickRate))
	}
	if c.Loop.FixedRate <= 0 {
		errs = append(errs, fmt.Errorf("loop.fixed_rate must be positive, got %d", c.Loop.FixedRate))
	}
	if c.Loop.TimeScale < 0 {
		errs = append(errs, fmt.Errorf("loop.time_scale must not be negative, got %g", c.Loop.TimeScale))
	}
	if _, err := timing.ParseLimitStrategy(c.Loop.Limiter); err != nil {
		errs = append(errs, fmt.Errorf("loop.limiter: %w", err))
	}
	if c.Features.Profiler && c.Metrics.Addr == "" {
		errs = append(errs, errors.New("metrics.addr is required when the profiler is enabled"))
	}
	return errors.Join(errs...)
}

// LimitStrategy returns the parsed loop.limiter.
func (c Config) LimitStrategy() timing.LimitStrategy {
	s, _ := timing.ParseLimitStrategy(c.Loop.Limiter)
	return s
}
