package worker

import "errors"

// State is the supervisor's lifecycle state.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

var (
	// ErrAlreadyRunning is returned by Start on a running supervisor.
	ErrAlreadyRunning = errors.New("worker: supervisor already running")

	// ErrNotRunning is returned by Stop on a stopped supervisor.
	ErrNotRunning = errors.New("worker: supervisor not running")
)
