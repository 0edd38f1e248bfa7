// Package config loads the RuntimeConfig a psharptest run is driven by,
// from TOML, YAML, or the process environment, layering sources the way
// a typical config.Loader does: defaults, then file, then environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/golobby/cast"
	"gopkg.in/yaml.v3"
)

// RuntimeConfig is every knob psharptest's "test" subcommand exposes,
// collected in one place so it can be populated from a file, the
// environment, or flags without three separate structs.
type RuntimeConfig struct {
	Strategy   string `toml:"strategy" yaml:"strategy"`
	Seed       uint64 `toml:"seed" yaml:"seed"`
	Iterations int    `toml:"iterations" yaml:"iterations"`
	MaxSteps   int    `toml:"max_steps" yaml:"max_steps"`
	MaxChanges int    `toml:"max_priority_changes" yaml:"max_priority_changes"`
	TimeoutSec int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
	Verbose    int    `toml:"verbose" yaml:"verbose"`
	TraceHTTP  string `toml:"trace_http" yaml:"trace_http"`
	Watch      bool   `toml:"watch" yaml:"watch"`
}

// Default returns the configuration psharptest falls back to when
// nothing overrides it.
func Default() RuntimeConfig {
	return RuntimeConfig{
		Strategy:   "random",
		Seed:       1,
		Iterations: 100,
		MaxSteps:   10000,
		MaxChanges: 3,
		TimeoutSec: 120,
		Verbose:    1,
	}
}

// Loader assembles a RuntimeConfig from, in increasing precedence:
// built-in defaults, an optional TOML or YAML file, then environment
// variables prefixed with PSHARP_.
type Loader struct {
	EnvPrefix string
}

// NewLoader returns a Loader using the conventional PSHARP_ environment
// prefix.
func NewLoader() *Loader {
	return &Loader{EnvPrefix: "PSHARP_"}
}

// Load reads path (if non-empty; format inferred from its extension)
// over Default(), then applies environment overrides.
func (l *Loader) Load(path string) (RuntimeConfig, error) {
	cfg := Default()
	if path != "" {
		if err := l.loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := l.applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (l *Loader) loadFile(path string, cfg *RuntimeConfig) error {
	switch {
	case strings.HasSuffix(path, ".toml"):
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("config: decoding toml file %s: %w", path, err)
		}
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("config: reading yaml file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return fmt.Errorf("config: decoding yaml file %s: %w", path, err)
		}
	default:
		return fmt.Errorf("config: unrecognized config file extension: %s", path)
	}
	return nil
}

// applyEnv overrides cfg field-by-field from PSHARP_<FIELD> environment
// variables, coercing string values with golobby/cast rather than
// hand-rolled strconv calls for every field type.
func (l *Loader) applyEnv(cfg *RuntimeConfig) error {
	str := func(name string) (string, bool) {
		v, ok := os.LookupEnv(l.EnvPrefix + name)
		return v, ok
	}
	if v, ok := str("STRATEGY"); ok {
		cfg.Strategy = v
	}
	if v, ok := str("SEED"); ok {
		n, err := cast.ToUint64(v)
		if err != nil {
			return fmt.Errorf("config: %sSEED: %w", l.EnvPrefix, err)
		}
		cfg.Seed = n
	}
	if v, ok := str("ITERATIONS"); ok {
		n, err := cast.ToInt(v)
		if err != nil {
			return fmt.Errorf("config: %sITERATIONS: %w", l.EnvPrefix, err)
		}
		cfg.Iterations = n
	}
	if v, ok := str("MAX_STEPS"); ok {
		n, err := cast.ToInt(v)
		if err != nil {
			return fmt.Errorf("config: %sMAX_STEPS: %w", l.EnvPrefix, err)
		}
		cfg.MaxSteps = n
	}
	if v, ok := str("MAX_PRIORITY_CHANGES"); ok {
		n, err := cast.ToInt(v)
		if err != nil {
			return fmt.Errorf("config: %sMAX_PRIORITY_CHANGES: %w", l.EnvPrefix, err)
		}
		cfg.MaxChanges = n
	}
	if v, ok := str("TIMEOUT_SECONDS"); ok {
		n, err := cast.ToInt(v)
		if err != nil {
			return fmt.Errorf("config: %sTIMEOUT_SECONDS: %w", l.EnvPrefix, err)
		}
		cfg.TimeoutSec = n
	}
	if v, ok := str("VERBOSE"); ok {
		n, err := cast.ToInt(v)
		if err != nil {
			return fmt.Errorf("config: %sVERBOSE: %w", l.EnvPrefix, err)
		}
		cfg.Verbose = n
	}
	if v, ok := str("TRACE_HTTP"); ok {
		cfg.TraceHTTP = v
	}
	if v, ok := str("WATCH"); ok {
		b, err := cast.ToBool(v)
		if err != nil {
			return fmt.Errorf("config: %sWATCH: %w", l.EnvPrefix, err)
		}
		cfg.Watch = b
	}
	return nil
}
