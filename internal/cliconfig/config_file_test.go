package cliconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleConfig = `
log_root = "/data/log"
boot_file = "/data/bootcount.dat"
debug = true

[[module]]
name = "power"
record_size = 64
interval = "500ms"
max_file_size = 4096

[[module]]
name = "thermal"
record_size = 16
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.LogRoot != "/data/log" || cfg.BootFile != "/data/bootcount.dat" || !cfg.Debug {
		t.Fatalf("unexpected top-level config: %+v", cfg)
	}
	if len(cfg.Modules) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(cfg.Modules))
	}

	power := cfg.Modules[0]
	if power.Name != "power" || power.RecordSize != 64 || power.Interval != 500*time.Millisecond || power.MaxFileSize != 4096 {
		t.Fatalf("unexpected power module: %+v", power)
	}
	if cfg.Modules[1].Interval != 0 {
		t.Fatalf("expected unset interval to stay zero before Validate, got %v", cfg.Modules[1].Interval)
	}
}

func TestLoadFileBadInterval(t *testing.T) {
	bad := `
[[module]]
name = "power"
record_size = 8
interval = "soon"
`
	if _, err := LoadFile(writeConfig(t, bad)); err == nil {
		t.Fatal("expected error for invalid interval")
	}
}

func TestApplyFileRespectsChangedFlags(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	cfg := DefaultConfig()
	cfg.LogRoot = "/flag/log"
	changed := map[string]bool{"log-root": true}

	if err := ApplyFile(&cfg, path, changed); err != nil {
		t.Fatalf("ApplyFile: %v", err)
	}
	if cfg.LogRoot != "/flag/log" {
		t.Fatalf("expected flag log root to win, got %q", cfg.LogRoot)
	}
	if cfg.BootFile != "/data/bootcount.dat" {
		t.Fatalf("expected file boot_file to apply, got %q", cfg.BootFile)
	}
	if len(cfg.Modules) != 2 {
		t.Fatalf("expected modules from file, got %d", len(cfg.Modules))
	}
}

func TestApplyFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	if err := ApplyFile(&cfg, filepath.Join(t.TempDir(), "absent.toml"), nil); err == nil {
		t.Fatal("expected error for missing file")
	}
}
