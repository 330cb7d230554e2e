package worker

import (
	"context"
	"encoding/binary"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stratoflight/telemlog/internal/dispatch"
	"github.com/stratoflight/telemlog/pkg/log"
	"github.com/stratoflight/telemlog/pkg/telemlog"
)

func newTestStore(t *testing.T) *telemlog.Store {
	t.Helper()
	s, err := telemlog.Open(filepath.Join(t.TempDir(), "log"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func counterSampler(seq *atomic.Uint64) SampleFunc {
	return func() ([]byte, error) {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, seq.Add(1))
		return buf, nil
	}
}

func TestSupervisorAppendsOnCadence(t *testing.T) {
	store := newTestStore(t)
	var seq atomic.Uint64
	sup := NewSupervisor(store, log.NewNoopLogger(), []ModuleSpec{
		{Name: "power", RecordSize: 8, Interval: 5 * time.Millisecond, Sample: counterSampler(&seq)},
	})

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sup.Stop()

	m, err := store.Lookup("power")
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := m.RetrieveLatest(3); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("expected at least 3 records before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSupervisorLifecycle(t *testing.T) {
	store := newTestStore(t)
	var seq atomic.Uint64
	sup := NewSupervisor(store, log.NewNoopLogger(), []ModuleSpec{
		{Name: "power", RecordSize: 8, Interval: time.Millisecond, Sample: counterSampler(&seq)},
	})

	if got := sup.State(); got != StateStopped {
		t.Fatalf("expected Stopped, got %s", got)
	}
	if err := sup.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := sup.State(); got != StateRunning {
		t.Fatalf("expected Running, got %s", got)
	}
	if err := sup.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	if err := sup.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := sup.State(); got != StateStopped {
		t.Fatalf("expected Stopped after Stop, got %s", got)
	}
}

func TestSupervisorStartFailsOnBadSpec(t *testing.T) {
	store := newTestStore(t)
	var seq atomic.Uint64
	sup := NewSupervisor(store, log.NewNoopLogger(), []ModuleSpec{
		{Name: "power", RecordSize: 0, Interval: time.Millisecond, Sample: counterSampler(&seq)},
	})

	if err := sup.Start(context.Background()); !errors.Is(err, telemlog.ErrInvalidSize) {
		t.Fatalf("expected registration failure, got %v", err)
	}
	if got := sup.State(); got != StateStopped {
		t.Fatalf("expected Stopped after failed start, got %s", got)
	}
}

func TestSupervisorRunOnce(t *testing.T) {
	store := newTestStore(t)
	var seq atomic.Uint64
	sup := NewSupervisor(store, log.NewNoopLogger(), []ModuleSpec{
		{Name: "power", RecordSize: 8, Interval: time.Hour, Sample: counterSampler(&seq)},
		{Name: "thermal", RecordSize: 8, Interval: time.Hour, Sample: counterSampler(&seq)},
	})

	if err := sup.RunOnce(); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	for _, name := range []string{"power", "thermal"} {
		m, err := store.Lookup(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := m.RetrieveLatest(1); err != nil {
			t.Fatalf("expected one record in %s: %v", name, err)
		}
	}
}

func TestSupervisorDrainsCommands(t *testing.T) {
	store := newTestStore(t)
	var seq atomic.Uint64
	var executed atomic.Int32

	d := dispatch.NewDispatcher(dispatch.NewQueue(8))
	d.Register(1, func(dispatch.Command) error {
		executed.Add(1)
		return nil
	})
	if err := d.Queue().Enqueue(dispatch.Command{Op: 1}); err != nil {
		t.Fatal(err)
	}
	if err := d.Queue().Enqueue(dispatch.Command{Op: 1}); err != nil {
		t.Fatal(err)
	}

	sup := NewSupervisor(store, log.NewNoopLogger(), []ModuleSpec{
		{Name: "power", RecordSize: 8, Interval: time.Millisecond, Sample: counterSampler(&seq), Commands: d},
	})
	if err := sup.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer sup.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for executed.Load() != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 executed commands, got %d", executed.Load())
		}
		time.Sleep(time.Millisecond)
	}
}
