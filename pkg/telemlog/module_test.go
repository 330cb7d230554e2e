package telemlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// newScenarioModule registers a module with the limits used throughout
// the rotation and eviction tests: 100-byte records (110-byte frames),
// 1000-byte files, 3000-byte directory budget.
func newScenarioModule(t *testing.T) (*Module, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "log")
	s := openStore(t, root)
	m, err := s.Register("power", 100)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.EditSetting(MaxFileSize, 1000); err != nil {
		t.Fatal(err)
	}
	if err := m.EditSetting(MaxDirSize, 3000); err != nil {
		t.Fatal(err)
	}
	return m, filepath.Join(root, "power")
}

func appendN(t *testing.T, m *Module, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := m.Append([]byte(fmt.Sprintf("record-%03d", i))); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
}

func TestAppendRejectsOversizedPayload(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "log"))
	m, err := s.Register("power", 4)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Append([]byte("12345")); !errors.Is(err, ErrCapacity) {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}
}

func TestRotationHappensBeforeOverflow(t *testing.T) {
	m, dir := newScenarioModule(t)

	// Nine 110-byte frames fit in 1000 bytes; the tenth append rotates.
	appendN(t, m, 9)
	if m.index != 0 {
		t.Fatalf("expected no rotation after 9 appends, index is %d", m.index)
	}

	appendN(t, m, 1)
	if m.index != 1 {
		t.Fatalf("expected exactly one rotation after 10 appends, index is %d", m.index)
	}

	fi, err := os.Stat(filepath.Join(dir, "0.dat"))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() != 9*110 {
		t.Fatalf("expected sealed file of %d bytes, got %d", 9*110, fi.Size())
	}
	if fi.Size() > 1000 {
		t.Fatalf("sealed file exceeds max file size: %d", fi.Size())
	}
}

func TestEvictionKeepsDirectoryBudget(t *testing.T) {
	m, dir := newScenarioModule(t)

	// 30 appends roll through files 0..3; the 3000/1000 budget retains
	// three files, so file 0 is evicted at the rotation that opened file 3.
	appendN(t, m, 30)

	if m.index != 3 {
		t.Fatalf("expected active index 3 after 30 appends, got %d", m.index)
	}
	if _, err := os.Stat(filepath.Join(dir, "0.dat")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected 0.dat to be evicted, stat returned %v", err)
	}
	for i := 1; i <= 3; i++ {
		path := filepath.Join(dir, fmt.Sprintf("%d.dat", i))
		fi, err := os.Stat(path)
		if err != nil {
			t.Fatalf("expected %d.dat to be retained: %v", i, err)
		}
		if fi.Size() > 1000 {
			t.Fatalf("%d.dat exceeds max file size: %d", i, fi.Size())
		}
	}
}

func TestEvictionRemovesOnlyTheOldestPerRotation(t *testing.T) {
	m, dir := newScenarioModule(t)

	// Fill up to the retention limit without exceeding it: files 0..2.
	appendN(t, m, 27)
	for i := 0; i <= 2; i++ {
		if _, err := os.Stat(filepath.Join(dir, fmt.Sprintf("%d.dat", i))); err != nil {
			t.Fatalf("expected %d.dat to exist before eviction: %v", i, err)
		}
	}

	// The next rotation exceeds the budget by exactly one file.
	appendN(t, m, 1)
	if _, err := os.Stat(filepath.Join(dir, "0.dat")); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("expected only 0.dat to be evicted")
	}
	if _, err := os.Stat(filepath.Join(dir, "1.dat")); err != nil {
		t.Fatalf("expected 1.dat to survive: %v", err)
	}
}

func TestQuerySize(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "log"))
	m, err := s.Register("power", 100)
	if err != nil {
		t.Fatal(err)
	}
	if got := m.QuerySize(3); got != 3*110 {
		t.Fatalf("expected QuerySize(3) = 330, got %d", got)
	}
}

func TestIndexSurvivesRestart(t *testing.T) {
	root := filepath.Join(t.TempDir(), "log")
	s := openStore(t, root)
	m, err := s.Register("power", 100)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.EditSetting(MaxFileSize, 1000); err != nil {
		t.Fatal(err)
	}
	appendN(t, m, 10)
	if m.index != 1 {
		t.Fatalf("expected index 1, got %d", m.index)
	}

	s2 := openStore(t, root)
	m2, err := s2.Register("power", 100)
	if err != nil {
		t.Fatal(err)
	}
	if m2.index != 1 {
		t.Fatalf("expected index 1 after restart, got %d", m2.index)
	}
}
