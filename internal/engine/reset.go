package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"botview/internal/replay"
	"botview/internal/types"
)

// resetHooks binds the reset stages to one mode activation. Every stage
// aborts with ErrStaleTick once that activation is gone.
type resetHooks struct {
	e       *Engine
	mode    types.Mode
	gen     uint64
	account int64
}

var _ replay.ResetHooks = (*resetHooks)(nil)

func (h *resetHooks) ResetAccount(ctx context.Context) error {
	return h.e.svc.ResetAccount(ctx, h.account)
}

func (h *resetHooks) ClearCaches() {
	e := h.e
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.sm.Current(h.mode, h.gen) {
		return
	}
	e.portfolio = nil
	e.trades = nil
	e.snapshots = nil
	e.baseline = decimal.NullDecimal{}
	e.trainingCandles = nil
	e.sessionID = ""
}

func (h *resetHooks) Refetch(ctx context.Context) error {
	if err := h.e.refresh(ctx, h.mode, h.gen, h.account); err != nil {
		return err
	}
	if h.mode == types.ModeTraining {
		return h.e.loadTrainingCandles(ctx, h.gen)
	}
	return nil
}

func (h *resetHooks) CaptureSnapshot(ctx context.Context) error {
	return h.e.captureSnapshot(ctx, h.mode, h.gen, h.account)
}

func (h *resetHooks) ReloadSnapshots(ctx context.Context) error {
	return h.e.reloadSnapshots(ctx, h.mode, h.gen, h.account)
}
