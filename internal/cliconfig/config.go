// Package cliconfig assembles the daemon configuration from its three
// sources with fixed precedence: command-line flags override environment
// variables, which override the TOML config file, which overrides defaults.
package cliconfig

import (
	"fmt"
	"strconv"
	"time"
)

// ModuleConfig declares one subsystem to log.
type ModuleConfig struct {
	Name       string
	RecordSize int
	Interval   time.Duration

	// MaxFileSize and MaxDirSize override the module's persisted size
	// limits when positive; zero keeps whatever is on disk.
	MaxFileSize int64
	MaxDirSize  int64
}

// Config is the daemon configuration.
type Config struct {
	LogRoot  string
	BootFile string
	Debug    bool
	Once     bool
	Modules  []ModuleConfig
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		LogRoot:  "log",
		BootFile: "bootcount.dat",
	}
}

// Validate checks the configuration and fills derived defaults.
func (c *Config) Validate() error {
	if c.LogRoot == "" {
		return fmt.Errorf("log-root is required")
	}
	if c.BootFile == "" {
		return fmt.Errorf("boot-file is required")
	}
	if len(c.Modules) == 0 {
		return fmt.Errorf("at least one [[module]] must be configured")
	}

	seen := make(map[string]bool, len(c.Modules))
	for i := range c.Modules {
		m := &c.Modules[i]
		if m.Name == "" {
			return fmt.Errorf("module %d: name is required", i)
		}
		if seen[m.Name] {
			return fmt.Errorf("module %q declared twice", m.Name)
		}
		seen[m.Name] = true
		if m.RecordSize < 1 {
			return fmt.Errorf("module %q: record_size must be at least 1", m.Name)
		}
		if m.Interval <= 0 {
			m.Interval = time.Second
		}
		if m.MaxFileSize < 0 || m.MaxDirSize < 0 {
			return fmt.Errorf("module %q: size overrides must be positive", m.Name)
		}
	}
	return nil
}

// configSetter applies values from lower-precedence sources while
// respecting flags that were explicitly set on the command line.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

func (s *configSetter) setBoolFromString(flag, value string, dst *bool) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", flag, err)
	}
	*dst = b
	return nil
}
