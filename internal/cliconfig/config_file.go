package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors Config with TOML tags; durations are strings to keep
// the file format friendly.
type fileConfig struct {
	LogRoot  string       `toml:"log_root"`
	BootFile string       `toml:"boot_file"`
	Debug    *bool        `toml:"debug"`
	Once     *bool        `toml:"once"`
	Modules  []fileModule `toml:"module"`
}

type fileModule struct {
	Name        string `toml:"name"`
	RecordSize  int    `toml:"record_size"`
	Interval    string `toml:"interval"`
	MaxFileSize int64  `toml:"max_file_size"`
	MaxDirSize  int64  `toml:"max_dir_size"`
}

// LoadFile parses a TOML config file into a Config without applying
// defaults, flags, or environment. The settings watcher uses it to pick up
// per-module limit changes at runtime.
func LoadFile(path string) (Config, error) {
	var cfg Config
	fc, err := readFileConfig(path)
	if err != nil {
		return cfg, err
	}
	cfg.LogRoot = fc.LogRoot
	cfg.BootFile = fc.BootFile
	if fc.Debug != nil {
		cfg.Debug = *fc.Debug
	}
	if fc.Once != nil {
		cfg.Once = *fc.Once
	}
	cfg.Modules, err = fc.moduleConfigs()
	return cfg, err
}

// ApplyFile merges a config file into cfg, respecting explicitly set flags.
func ApplyFile(cfg *Config, path string, changed map[string]bool) error {
	fc, err := readFileConfig(path)
	if err != nil {
		return err
	}

	s := newConfigSetter(changed)
	s.setString("log-root", fc.LogRoot, &cfg.LogRoot)
	s.setString("boot-file", fc.BootFile, &cfg.BootFile)
	s.setBool("debug", fc.Debug, &cfg.Debug)
	s.setBool("once", fc.Once, &cfg.Once)

	// Modules come only from the file; there is no flag form to respect.
	if len(fc.Modules) > 0 {
		cfg.Modules, err = fc.moduleConfigs()
		if err != nil {
			return err
		}
	}
	return nil
}

func readFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

func (fc fileConfig) moduleConfigs() ([]ModuleConfig, error) {
	mods := make([]ModuleConfig, 0, len(fc.Modules))
	for _, fm := range fc.Modules {
		mc := ModuleConfig{
			Name:        fm.Name,
			RecordSize:  fm.RecordSize,
			MaxFileSize: fm.MaxFileSize,
			MaxDirSize:  fm.MaxDirSize,
		}
		if fm.Interval != "" {
			d, err := time.ParseDuration(fm.Interval)
			if err != nil {
				return nil, fmt.Errorf("module %q: invalid interval: %w", fm.Name, err)
			}
			mc.Interval = d
		}
		mods = append(mods, mc)
	}
	return mods, nil
}

// DefaultConfigPath returns ~/.telemlog/config.toml when the home directory
// is resolvable.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".telemlog", "config.toml")
	}
	return ""
}

// FileExists reports whether a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
