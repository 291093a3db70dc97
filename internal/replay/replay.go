// Package replay drives the service's stepwise training protocol. The
// replay index is owned by the service; this package only validates and
// relays it.
package replay

import (
	"context"
	"errors"
	"fmt"

	"botview/internal/session"
	"botview/internal/types"
)

var ErrMalformedStep = errors.New("malformed replay step response")

// Stepper is the slice of the service contract the driver needs.
type Stepper interface {
	RunReplayStep(ctx context.Context, accountID int64, symbol string, limit, index, offset int, candles []types.Candle) (types.ReplayStepResult, error)
}

type Request struct {
	AccountID int64
	Symbol    string
	Limit     int
	Index     int
	Offset    int
	Candles   []types.Candle
}

type Driver struct {
	svc Stepper
}

func NewDriver(svc Stepper) *Driver {
	return &Driver{svc: svc}
}

// Step runs one replay step. Any failure comes back as a *types.StepError
// and is never retried here.
func (d *Driver) Step(ctx context.Context, req Request) (types.ReplayStepResult, error) {
	res, err := d.svc.RunReplayStep(ctx, req.AccountID, req.Symbol, req.Limit, req.Index, req.Offset, req.Candles)
	if err != nil {
		return types.ReplayStepResult{}, &types.StepError{Mode: types.ModeTraining, Stage: "step", Err: err}
	}
	if err := Validate(req, res); err != nil {
		return types.ReplayStepResult{}, &types.StepError{Mode: types.ModeTraining, Stage: "step", Err: err}
	}
	return res, nil
}

// Validate rejects responses that would move the index backwards while the
// session continues, or past the data the service could have consumed.
func Validate(req Request, res types.ReplayStepResult) error {
	if res.NextIndex < 0 {
		return fmt.Errorf("%w: negative nextIndex %d", ErrMalformedStep, res.NextIndex)
	}
	if res.TradesExecuted < 0 {
		return fmt.Errorf("%w: negative tradesExecuted %d", ErrMalformedStep, res.TradesExecuted)
	}
	if res.Done {
		// a finished session may report the dataset size, which can sit
		// below the requested index
		return nil
	}
	if res.NextIndex < max(req.Index, session.ReplayFloor) {
		return fmt.Errorf("%w: nextIndex %d behind index %d", ErrMalformedStep, res.NextIndex, req.Index)
	}
	if bound := max(req.Limit, len(req.Candles)); res.NextIndex > bound {
		return fmt.Errorf("%w: nextIndex %d beyond %d", ErrMalformedStep, res.NextIndex, bound)
	}
	return nil
}

// ResetHooks are the stages of a reset, supplied by the owner of the caches.
type ResetHooks interface {
	ResetAccount(ctx context.Context) error
	ClearCaches()
	Refetch(ctx context.Context) error
	CaptureSnapshot(ctx context.Context) error
	ReloadSnapshots(ctx context.Context) error
}

// Reset runs the reset stages strictly in order: service reset, cache
// clear, refetch, snapshot, snapshot reload. The first failure stops the
// sequence so a baseline is never taken from pre-reset state.
func (d *Driver) Reset(ctx context.Context, mode types.Mode, h ResetHooks) error {
	if err := h.ResetAccount(ctx); err != nil {
		return &types.StepError{Mode: mode, Stage: "reset", Err: err}
	}
	h.ClearCaches()
	stages := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"refetch", h.Refetch},
		{"snapshot", h.CaptureSnapshot},
		{"reload", h.ReloadSnapshots},
	}
	for _, s := range stages {
		if err := s.fn(ctx); err != nil {
			return &types.StepError{Mode: mode, Stage: "reset " + s.name, Err: err}
		}
	}
	return nil
}
