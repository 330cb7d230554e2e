package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stratoflight/telemlog/pkg/log"
	"github.com/stratoflight/telemlog/pkg/telemlog"
)

func writeModuleConfig(t *testing.T, path string, maxFileSize, maxDirSize int64) {
	t.Helper()
	content := fmt.Sprintf(`
[[module]]
name = "power"
record_size = 8
max_file_size = %d
max_dir_size = %d
`, maxFileSize, maxDirSize)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcherAppliesChangedLimits(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.toml")
	writeModuleConfig(t, cfgPath, 4096, 16384)

	store, err := telemlog.Open(filepath.Join(tmp, "log"))
	if err != nil {
		t.Fatal(err)
	}
	m, err := store.Register("power", 8)
	if err != nil {
		t.Fatal(err)
	}

	w := New(cfgPath, store, log.NewNoopLogger())
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	writeModuleConfig(t, cfgPath, 2048, 8192)

	deadline := time.Now().Add(3 * time.Second)
	for {
		maxFile, maxDir := m.Settings()
		if maxFile == 2048 && maxDir == 8192 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("limits never applied, still %d/%d", maxFile, maxDir)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWatcherSkipsUnregisteredModules(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.toml")
	writeModuleConfig(t, cfgPath, 4096, 16384)

	store, err := telemlog.Open(filepath.Join(tmp, "log"))
	if err != nil {
		t.Fatal(err)
	}

	w := New(cfgPath, store, log.NewNoopLogger())
	// No module registered; applying directly must not panic or register
	// anything as a side effect.
	w.applyOnce()

	if _, err := store.Lookup("power"); err == nil {
		t.Fatal("expected power to stay unregistered")
	}
}

func TestWatcherKeepsOutOfRangeValuesRejected(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.toml")
	writeModuleConfig(t, cfgPath, telemlog.HardLimitFileSize+1, 16384)

	store, err := telemlog.Open(filepath.Join(tmp, "log"))
	if err != nil {
		t.Fatal(err)
	}
	m, err := store.Register("power", 8)
	if err != nil {
		t.Fatal(err)
	}

	w := New(cfgPath, store, log.NewNoopLogger())
	w.applyOnce()

	maxFile, maxDir := m.Settings()
	if maxFile != telemlog.DefaultMaxFileSize {
		t.Fatalf("expected max file size to stay at default, got %d", maxFile)
	}
	if maxDir != 16384 {
		t.Fatalf("expected valid dir size to apply, got %d", maxDir)
	}
}
