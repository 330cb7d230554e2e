package telemlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const settingsFileName = "settings.cfg"

// Per-module size limits. Defaults are written on first registration; hard
// limits bound EditSetting independently of any per-module configuration.
const (
	DefaultMaxFileSize = 8192
	DefaultMaxDirSize  = 4 << 20

	HardLimitFileSize = 1 << 20
	HardLimitDirSize  = 16 << 20
)

// Setting identifies one of the mutable per-module size limits.
type Setting int

const (
	// MaxFileSize bounds a single data file in bytes.
	MaxFileSize Setting = iota

	// MaxDirSize bounds the module's whole data directory in bytes.
	MaxDirSize
)

// String returns the setting name as used in logs.
func (s Setting) String() string {
	switch s {
	case MaxFileSize:
		return "max_file_size"
	case MaxDirSize:
		return "max_dir_size"
	default:
		return "unknown"
	}
}

// settings is the in-memory copy of settings.cfg. It is authoritative once
// loaded; every mutation is written through before taking effect.
type settings struct {
	maxFileSize int64
	maxDirSize  int64
}

func defaultSettings() settings {
	return settings{maxFileSize: DefaultMaxFileSize, maxDirSize: DefaultMaxDirSize}
}

// fileBudget is the number of data files the directory may retain.
func (s settings) fileBudget() uint64 {
	b := s.maxDirSize / s.maxFileSize
	if b < 1 {
		b = 1
	}
	return uint64(b)
}

// loadSettings reads settings.cfg, creating it with defaults (durably) when
// it does not exist yet.
func loadSettings(dir string) (settings, error) {
	b, err := os.ReadFile(filepath.Join(dir, settingsFileName))
	if err != nil {
		if os.IsNotExist(err) {
			s := defaultSettings()
			return s, writeSettings(dir, s)
		}
		return settings{}, err
	}
	return parseSettings(b)
}

// parseSettings decodes the two-line settings format: line 1 is the max
// file size, line 2 the max directory size, both in bytes.
func parseSettings(b []byte) (settings, error) {
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) < 2 {
		return settings{}, fmt.Errorf("%w: settings file has %d lines, want 2", ErrInvalidSetting, len(lines))
	}
	maxFile, err := strconv.ParseInt(strings.TrimSpace(lines[0]), 10, 64)
	if err != nil {
		return settings{}, fmt.Errorf("%w: bad max file size: %v", ErrInvalidSetting, err)
	}
	maxDir, err := strconv.ParseInt(strings.TrimSpace(lines[1]), 10, 64)
	if err != nil {
		return settings{}, fmt.Errorf("%w: bad max dir size: %v", ErrInvalidSetting, err)
	}
	if maxFile < 1 || maxDir < 1 {
		return settings{}, fmt.Errorf("%w: sizes must be positive", ErrInvalidSetting)
	}
	return settings{maxFileSize: maxFile, maxDirSize: maxDir}, nil
}

// writeSettings rewrites the whole settings file atomically and durably.
func writeSettings(dir string, s settings) error {
	data := fmt.Appendf(nil, "%d\n%d\n", s.maxFileSize, s.maxDirSize)
	return writeFileDurable(filepath.Join(dir, settingsFileName), data)
}
