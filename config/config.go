// Package config loads the server configuration and the script data
// files it points at.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"athena/vm"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration file
type Config struct {
	Script  ScriptConfig  `yaml:"script"`
	Storage StorageConfig `yaml:"storage"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Trace   TraceConfig   `yaml:"trace"`

	dir string // directory relative paths resolve against
}

// ScriptConfig controls compilation and execution limits
type ScriptConfig struct {
	ArgCount     string `yaml:"arg_count"`     // error, warning or off
	MissingComma string `yaml:"missing_comma"` // error or warning
	MaxNesting   int    `yaml:"max_nesting"`
	StackLimit   int    `yaml:"stack_limit"`
	TickLimit    int    `yaml:"tick_limit"` // negative disables
	Constants    string `yaml:"constants"`
}

// StorageConfig selects the variable backend
type StorageConfig struct {
	Driver     string        `yaml:"driver"` // memory or sqlite
	DSN        string        `yaml:"dsn"`
	Snapshot   string        `yaml:"snapshot"` // memory only: YAML checkpoint file
	Checkpoint time.Duration `yaml:"checkpoint"`
}

// ServerConfig configures the dialogue server
type ServerConfig struct {
	Listen string `yaml:"listen"`
	NPCs   string `yaml:"npcs"`
}

// LogConfig configures zap
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// TraceConfig configures the execution tracer
type TraceConfig struct {
	Enabled bool     `yaml:"enabled"`
	Filters []string `yaml:"filters"`
}

// Default returns the configuration used for missing keys
func Default() *Config {
	return &Config{
		Script: ScriptConfig{
			ArgCount:     "warning",
			MissingComma: "error",
			MaxNesting:   vm.DefaultMaxNesting,
			StackLimit:   vm.DefaultStackLimit,
			TickLimit:    vm.DefaultTickLimit,
		},
		Storage: StorageConfig{
			Driver:     "memory",
			Checkpoint: 5 * time.Minute,
		},
		Server: ServerConfig{
			Listen: ":6121",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the configuration at path over the defaults
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

// Parse decodes a configuration document over the defaults
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseBytes is Parse over a byte slice
func ParseBytes(data []byte) (*Config, error) {
	return Parse(bytes.NewReader(data))
}

// Validate checks enumerated settings
func (c *Config) Validate() error {
	if _, err := vm.ParseCheckLevel(c.Script.ArgCount); err != nil {
		return fmt.Errorf("script.arg_count: %w", err)
	}
	lvl, err := vm.ParseCheckLevel(c.Script.MissingComma)
	if err != nil {
		return fmt.Errorf("script.missing_comma: %w", err)
	}
	if lvl == vm.CheckOff {
		return fmt.Errorf("script.missing_comma: must be error or warning")
	}
	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn: required for sqlite")
		}
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}
	return nil
}

// Path resolves p against the config file's directory
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

// EngineOptions converts the script section to engine options
func (c *Config) EngineOptions() (vm.Options, error) {
	argCount, err := vm.ParseCheckLevel(c.Script.ArgCount)
	if err != nil {
		return vm.Options{}, err
	}
	missingComma, err := vm.ParseCheckLevel(c.Script.MissingComma)
	if err != nil {
		return vm.Options{}, err
	}
	return vm.Options{
		ArgCount:     argCount,
		MissingComma: missingComma,
		MaxNesting:   c.Script.MaxNesting,
		StackLimit:   c.Script.StackLimit,
		TickLimit:    c.Script.TickLimit,
	}, nil
}
