package engine

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"botview/internal/equity"
	"botview/internal/logger"
	"botview/internal/types"
)

// load fetches everything the view of mode needs: account data, the
// snapshot window and the mode's candles.
func (e *Engine) load(ctx context.Context, mode types.Mode, gen uint64) error {
	e.mu.Lock()
	acct := e.sm.AccountID(mode)
	e.mu.Unlock()

	var errs []error
	if err := e.refresh(ctx, mode, gen, acct); err != nil {
		errs = append(errs, err)
	}
	if err := e.reloadSnapshots(ctx, mode, gen, acct); err != nil {
		errs = append(errs, err)
	}
	if err := e.loadCandles(ctx, mode, gen); err != nil {
		errs = append(errs, err)
	}

	err := errors.Join(errs...)
	if err == nil || errors.Is(err, types.ErrStaleTick) {
		return nil
	}
	logger.ErrorWithErr(ctx, "Initial load failed", err, "mode", mode, "account_id", acct)
	e.setError(mode, gen, err)
	return err
}

// refresh fetches account, portfolio and trades concurrently and applies
// them together.
func (e *Engine) refresh(ctx context.Context, mode types.Mode, gen uint64, acct int64) error {
	var (
		account   types.Account
		portfolio []types.Position
		trades    []types.Trade
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		account, err = e.svc.GetAccount(gctx, acct)
		return err
	})
	g.Go(func() (err error) {
		portfolio, err = e.svc.GetPortfolio(gctx, acct)
		return err
	})
	g.Go(func() (err error) {
		trades, err = e.svc.GetTrades(gctx, acct)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.sm.Current(mode, gen) {
		return types.ErrStaleTick
	}
	e.account = account
	e.portfolio = portfolio
	e.trades = trades
	return nil
}

// reloadSnapshots replaces the snapshot window. An empty window does not
// erase a window a latched baseline came from.
func (e *Engine) reloadSnapshots(ctx context.Context, mode types.Mode, gen uint64, acct int64) error {
	rows, err := e.svc.GetEquitySnapshots(ctx, acct, mode, e.cfg.SnapshotWindow)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.sm.Current(mode, gen) {
		return types.ErrStaleTick
	}
	if len(rows) == 0 {
		if !e.baseline.Valid {
			e.snapshots = nil
		}
		return nil
	}
	e.snapshots = rows
	if !e.baseline.Valid {
		e.baseline = equity.Baseline(rows)
	}
	return nil
}

func (e *Engine) captureSnapshot(ctx context.Context, mode types.Mode, gen uint64, acct int64) error {
	if err := e.svc.CreateEquitySnapshot(ctx, acct, mode); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.sm.Current(mode, gen) {
		return types.ErrStaleTick
	}
	return nil
}

// syncAfterStep runs the post-step stages in order: refresh, snapshot,
// snapshot reload. Each stage starts only after the previous one applied.
func (e *Engine) syncAfterStep(ctx context.Context, mode types.Mode, gen uint64, acct int64) error {
	stages := []struct {
		name string
		fn   func(context.Context, types.Mode, uint64, int64) error
	}{
		{"refresh", e.refresh},
		{"snapshot", e.captureSnapshot},
		{"reload", e.reloadSnapshots},
	}
	for _, s := range stages {
		if err := s.fn(ctx, mode, gen, acct); err != nil {
			if errors.Is(err, types.ErrStaleTick) {
				return err
			}
			return &types.StepError{Mode: mode, Stage: s.name, Err: err}
		}
	}
	return nil
}

func (e *Engine) loadCandles(ctx context.Context, mode types.Mode, gen uint64) error {
	if mode == types.ModeTraining {
		return e.loadTrainingCandles(ctx, gen)
	}
	return e.loadLiveCandles(ctx, gen)
}

// loadTrainingCandles fetches the replay dataset: limit candles starting
// offset candles back.
func (e *Engine) loadTrainingCandles(ctx context.Context, gen uint64) error {
	e.mu.Lock()
	sym := e.symbol
	rp := e.sm.Replay()
	e.mu.Unlock()

	candles, err := e.svc.GetCandles(ctx, sym, rp.Limit, e.cfg.Candles.Interval, rp.Offset)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.sm.Current(types.ModeTraining, gen) || e.symbol != sym {
		return types.ErrStaleTick
	}
	e.trainingCandles = candles
	if len(candles) == 0 {
		logger.Warn(ctx, "Training dataset is empty", "symbol", sym, "limit", rp.Limit, "offset", rp.Offset)
	}
	return nil
}

func (e *Engine) loadLiveCandles(ctx context.Context, gen uint64) error {
	e.mu.Lock()
	sym := e.symbol
	e.mu.Unlock()

	candles, err := e.svc.GetCandles(ctx, sym, e.cfg.Candles.Limit, e.cfg.Candles.Interval, 0)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.sm.Current(types.ModeTrading, gen) || e.symbol != sym {
		return types.ErrStaleTick
	}
	e.setLiveCandles(candles)
	return nil
}

// setLiveCandles replaces the live chart. Caller holds e.mu.
func (e *Engine) setLiveCandles(candles []types.Candle) {
	e.liveCandles = candles
	if n := len(candles); n > 0 {
		e.lastPriceUpdate = candles[n-1].Ts
	}
}
