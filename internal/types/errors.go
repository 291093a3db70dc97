package types

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDataset means no candles were available to start a replay.
	ErrEmptyDataset = errors.New("no candles available for replay")
	// ErrStaleTick marks a completion whose mode or account context changed
	// while it was in flight. It is never surfaced to the user.
	ErrStaleTick = errors.New("stale tick")
	// ErrNotActiveMode is returned when a run is requested for a mode that is
	// not currently selected.
	ErrNotActiveMode = errors.New("mode is not active")
)

// StepError wraps a failure during a live or replay step. The owning loop
// is paused when one of these is produced.
type StepError struct {
	Mode  Mode
	Stage string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Mode, e.Stage, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// ServiceError is the single failure shape of the external service boundary.
// Status is zero when no HTTP response was received.
type ServiceError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }
