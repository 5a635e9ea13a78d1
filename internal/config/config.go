// Package config handles lox.toml interpreter configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/xirelogy/go-lox/internal/heap"
)

// FileName is the configuration file looked up by Find.
const FileName = "lox.toml"

// Config represents a lox.toml file.
type Config struct {
	GC  GC  `toml:"gc"`
	VM  VM  `toml:"vm"`
	Log Log `toml:"log"`

	// Path is the file the configuration was read from (set at load time).
	Path string `toml:"-"`
}

// GC tunes the collector.
type GC struct {
	InitialThreshold int  `toml:"initial-threshold"`
	GrowFactor       int  `toml:"grow-factor"`
	Stress           bool `toml:"stress"`
}

// VM tunes execution.
type VM struct {
	InstructionLimit int  `toml:"instruction-limit"`
	Trace            bool `toml:"trace"`
}

// Log configures the commonlog backend.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		GC: GC{
			InitialThreshold: 1024 * 1024,
			GrowFactor:       2,
		},
	}
}

// Load parses the configuration file at path. Unset keys keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}

	c.Path, err = filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	return c, nil
}

// Find walks up from startDir looking for lox.toml and loads the first one
// found. It returns the defaults when there is none.
func Find(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

func (c *Config) validate() error {
	if c.GC.InitialThreshold < 0 {
		return fmt.Errorf("gc.initial-threshold must not be negative")
	}
	if c.GC.GrowFactor < 0 {
		return fmt.Errorf("gc.grow-factor must not be negative")
	}
	if c.VM.InstructionLimit < 0 {
		return fmt.Errorf("vm.instruction-limit must not be negative")
	}
	return nil
}

// HeapConfig converts the [gc] section for heap.New.
func (c *Config) HeapConfig() heap.Config {
	return heap.Config{
		InitialThreshold: c.GC.InitialThreshold,
		GrowFactor:       c.GC.GrowFactor,
		Stress:           c.GC.Stress,
	}
}
