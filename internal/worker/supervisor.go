// Package worker runs the datalogger's per-subsystem workers: one goroutine
// per module that samples telemetry on a fixed cadence and appends it to the
// module's log. Appends are best-effort; storage failures are logged and the
// record is dropped so a worker is never blocked by storage pressure.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stratoflight/telemlog/internal/dispatch"
	"github.com/stratoflight/telemlog/pkg/log"
	"github.com/stratoflight/telemlog/pkg/telemlog"
)

// SampleFunc produces one telemetry record for a module. The returned
// payload must not exceed the module's record size.
type SampleFunc func() ([]byte, error)

// ModuleSpec describes one subsystem worker.
type ModuleSpec struct {
	Name       string
	RecordSize int
	Interval   time.Duration
	Sample     SampleFunc

	// Commands, when set, is drained at the start of each cycle before the
	// telemetry sample is taken.
	Commands *dispatch.Dispatcher
}

// Supervisor owns the worker goroutines. Workers observe cancellation
// between iterations only; an in-flight append always runs to completion.
type Supervisor struct {
	store  *telemlog.Store
	logger log.Logger
	specs  []ModuleSpec

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSupervisor creates a supervisor for the given module specs.
func NewSupervisor(store *telemlog.Store, logger log.Logger, specs []ModuleSpec) *Supervisor {
	return &Supervisor{store: store, logger: logger, specs: specs}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start registers every module and launches one worker per spec. It fails
// without starting anything if any registration fails.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStopped {
		return ErrAlreadyRunning
	}
	s.state = StateStarting

	modules, err := s.registerAll()
	if err != nil {
		s.state = StateStopped
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	for i := range s.specs {
		s.wg.Add(1)
		go s.run(ctx, modules[i], s.specs[i])
	}
	s.state = StateRunning
	s.logger.Info("workers started", log.Int("modules", len(s.specs)))
	return nil
}

// Stop cancels the workers and waits for every in-flight iteration to
// finish.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.state = StateStopping
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	s.logger.Info("workers stopped")
	return nil
}

// RunOnce registers every module and appends a single sample for each, for
// smoke-testing a deployment without starting the worker loops.
func (s *Supervisor) RunOnce() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStopped {
		return ErrAlreadyRunning
	}

	modules, err := s.registerAll()
	if err != nil {
		return err
	}
	for i := range s.specs {
		s.logOnce(modules[i], s.specs[i])
	}
	return nil
}

func (s *Supervisor) registerAll() ([]*telemlog.Module, error) {
	modules := make([]*telemlog.Module, len(s.specs))
	for i, spec := range s.specs {
		m, err := s.store.Register(spec.Name, spec.RecordSize)
		if err != nil {
			return nil, err
		}
		modules[i] = m
	}
	return modules, nil
}

func (s *Supervisor) run(ctx context.Context, m *telemlog.Module, spec ModuleSpec) {
	defer s.wg.Done()

	ticker := time.NewTicker(spec.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.drainCommands(spec)
			s.logOnce(m, spec)
		}
	}
}

// drainCommands executes every pending command for this cycle.
func (s *Supervisor) drainCommands(spec ModuleSpec) {
	if spec.Commands == nil {
		return
	}
	for {
		err := spec.Commands.ExecuteNext()
		if errors.Is(err, dispatch.ErrQueueEmpty) {
			return
		}
		if err != nil {
			s.logger.Warn("command failed", log.String("module", spec.Name), log.Err(err))
		}
	}
}

// logOnce samples and appends one record. A failed append is dropped, not
// retried.
func (s *Supervisor) logOnce(m *telemlog.Module, spec ModuleSpec) {
	payload, err := spec.Sample()
	if err != nil {
		s.logger.Warn("telemetry sample failed", log.String("module", spec.Name), log.Err(err))
		return
	}
	if err := m.Append(payload); err != nil {
		if errors.Is(err, telemlog.ErrRotation) {
			// The record landed; only eviction of the oldest file failed.
			s.logger.Warn("rotation incomplete", log.String("module", spec.Name), log.Err(err))
			return
		}
		s.logger.Warn("append dropped", log.String("module", spec.Name), log.Err(err))
	}
}
