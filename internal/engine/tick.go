package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"botview/internal/equity"
	"botview/internal/logger"
	"botview/internal/metrics"
	"botview/internal/replay"
	"botview/internal/tradelog"
	"botview/internal/types"
)

// tickContext is what a run tick captures under the lock before its first
// service call.
type tickContext struct {
	mode      types.Mode
	gen       uint64
	account   int64
	symbol    string
	sessionID string
}

// begin returns the tick's context, or false when mode is no longer the
// running active mode.
func (e *Engine) begin(mode types.Mode) (tickContext, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sm.Mode() != mode || !e.sm.Running(mode) {
		return tickContext{}, false
	}
	tc := tickContext{
		mode:    mode,
		gen:     e.sm.Generation(mode),
		account: e.sm.AccountID(mode),
		symbol:  e.symbol,
	}
	if mode == types.ModeTraining {
		tc.sessionID = e.sessionID
	}
	return tc, true
}

// tradingTick: live step, refresh, snapshot, reload.
func (e *Engine) tradingTick(ctx context.Context) {
	tc, ok := e.begin(types.ModeTrading)
	if !ok {
		return
	}

	status, err := e.svc.RunLiveStep(ctx, tc.account, tc.symbol)
	if err != nil {
		e.fail(ctx, tc, &types.StepError{Mode: tc.mode, Stage: "step", Err: err})
		return
	}
	if err := e.syncAfterStep(ctx, tc.mode, tc.gen, tc.account); err != nil {
		e.fail(ctx, tc, err)
		return
	}

	e.mu.Lock()
	if !e.sm.Current(tc.mode, tc.gen) {
		e.mu.Unlock()
		e.stale(ctx, tc)
		return
	}
	// a tick that outlived Pause keeps the paused status line
	if e.sm.Running(tc.mode) {
		e.status = status
	}
	e.lastErr = ""
	entry := e.journalEntryLocked(tc)
	e.mu.Unlock()

	e.finish(ctx, tc, entry)
}

// trainingTick: replay step with the cached index, then refresh, snapshot
// and reload. A done step idles the mode at once; the remaining stages
// still run and the loop is stopped when the tick ends.
func (e *Engine) trainingTick(ctx context.Context) {
	tc, ok := e.begin(types.ModeTraining)
	if !ok {
		return
	}

	e.mu.Lock()
	rp := e.sm.Replay()
	candles := e.trainingCandles
	e.mu.Unlock()

	req := replay.Request{
		AccountID: tc.account,
		Symbol:    tc.symbol,
		Limit:     rp.Limit,
		Index:     rp.Index,
		Offset:    rp.Offset,
		Candles:   candles,
	}
	res, err := e.driver.Step(ctx, req)
	if err != nil {
		e.fail(ctx, tc, err)
		return
	}

	e.mu.Lock()
	if !e.sm.Current(tc.mode, tc.gen) {
		e.mu.Unlock()
		e.stale(ctx, tc)
		return
	}
	running := e.sm.Running(tc.mode)
	e.sm.ApplyReplay(res.NextIndex, res.Done)
	switch {
	case res.Done:
		e.status = StatusTrainingFinished
	case running:
		e.status = fmt.Sprintf("Train: %s | trades +%d | next=%d", res.Signal, res.TradesExecuted, res.NextIndex)
	}
	e.lastErr = ""
	e.mu.Unlock()

	metrics.ReplayIndex(res.NextIndex)
	logger.Step(ctx, tc.symbol, res.Signal, rp.Index, res.NextIndex, res.TradesExecuted, res.Done, "session_id", tc.sessionID)
	if res.Done {
		metrics.Running(string(tc.mode), false)
		logger.ModeChange(ctx, string(tc.mode), "finished", "session_id", tc.sessionID)
	} else {
		// the finished view goes out once the step is journaled
		e.notify()
	}

	if err := e.syncAfterStep(ctx, tc.mode, tc.gen, tc.account); err != nil {
		e.fail(ctx, tc, err)
		return
	}

	e.mu.Lock()
	if !e.sm.Current(tc.mode, tc.gen) {
		e.mu.Unlock()
		e.stale(ctx, tc)
		return
	}
	if !e.sm.Running(tc.mode) {
		e.poll.Stop(string(tc.mode))
	}
	entry := e.journalEntryLocked(tc)
	entry.Index = rp.Index
	entry.NextIndex = res.NextIndex
	entry.Signal = res.Signal
	entry.TradesExecuted = res.TradesExecuted
	entry.Done = res.Done
	e.mu.Unlock()

	e.finish(ctx, tc, entry)
}

// marketTick reloads the live chart and the latest price of every held
// symbol. Failures are logged and never pause anything.
func (e *Engine) marketTick(ctx context.Context) {
	e.mu.Lock()
	if e.sm.Mode() != types.ModeTrading {
		e.mu.Unlock()
		return
	}
	gen := e.sm.Generation(types.ModeTrading)
	sym := e.symbol
	held := make([]string, 0, len(e.portfolio))
	for _, p := range e.portfolio {
		if p.Quantity.IsPositive() && p.Symbol != sym {
			held = append(held, p.Symbol)
		}
	}
	e.mu.Unlock()

	var candles []types.Candle
	quotes := make([]decimal.NullDecimal, len(held))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		candles, err = e.svc.GetCandles(gctx, sym, e.cfg.Candles.Limit, e.cfg.Candles.Interval, 0)
		return err
	})
	for i, s := range held {
		g.Go(func() error {
			cs, err := e.svc.GetCandles(gctx, s, 1, e.cfg.Candles.Interval, 0)
			if err != nil {
				logger.Warn(gctx, "Price update failed", "symbol", s, "error", err)
				return nil
			}
			if n := len(cs); n > 0 {
				quotes[i] = decimal.NewNullDecimal(cs[n-1].Close)
			}
			return nil
		})
	}
	err := g.Wait()

	e.mu.Lock()
	if !e.sm.Current(types.ModeTrading, gen) || e.symbol != sym {
		e.mu.Unlock()
		metrics.Tick(loopMarket, "stale")
		return
	}
	if err == nil {
		e.setLiveCandles(candles)
	}
	for i, s := range held {
		if quotes[i].Valid {
			e.prices[s] = quotes[i].Decimal
		}
	}
	e.mu.Unlock()

	if err != nil {
		if ctx.Err() == nil {
			logger.Warn(ctx, "Live candle update failed", "symbol", sym, "error", err)
		}
		metrics.Tick(loopMarket, "failed")
	} else {
		metrics.Tick(loopMarket, "ok")
	}
	e.notify()
}

// fail pauses the tick's mode and surfaces err, unless the tick is stale
// or was canceled by a stop.
func (e *Engine) fail(ctx context.Context, tc tickContext, err error) {
	if errors.Is(err, types.ErrStaleTick) || ctx.Err() != nil {
		e.stale(ctx, tc)
		return
	}

	e.mu.Lock()
	if !e.sm.Current(tc.mode, tc.gen) {
		e.mu.Unlock()
		e.stale(ctx, tc)
		return
	}
	e.poll.Stop(string(tc.mode))
	e.sm.Pause(tc.mode)
	e.lastErr = err.Error()
	entry := e.journalEntryLocked(tc)
	entry.Error = err.Error()
	e.mu.Unlock()

	logger.ErrorWithErr(ctx, "Tick failed, mode paused", err, "mode", tc.mode, "symbol", tc.symbol)
	metrics.Tick(string(tc.mode), "failed")
	metrics.Running(string(tc.mode), false)
	e.journal(ctx, entry)
	e.notify()
}

func (e *Engine) stale(ctx context.Context, tc tickContext) {
	logger.Debug(ctx, "Discarding stale tick", "mode", tc.mode, "generation", tc.gen)
	metrics.Tick(string(tc.mode), "stale")
}

func (e *Engine) finish(ctx context.Context, tc tickContext, entry tradelog.Entry) {
	metrics.Tick(string(tc.mode), "ok")
	metrics.Equity(string(tc.mode), entry.Equity, entry.PnL)
	e.journal(ctx, entry)
	e.notify()
}

// journalEntryLocked records the equity picture after a tick. Caller holds
// e.mu.
func (e *Engine) journalEntryLocked(tc tickContext) tradelog.Entry {
	sum := equity.Summarize(e.account, e.portfolio, e.trades, e.baseline, e.priceForLocked(e.chartLocked()))
	return tradelog.Entry{
		Mode:      string(tc.mode),
		Symbol:    tc.symbol,
		AccountID: tc.account,
		SessionID: tc.sessionID,
		Equity:    sum.Equity,
		PnL:       sum.PnL,
		Status:    e.status,
	}
}

func (e *Engine) journal(ctx context.Context, entry tradelog.Entry) {
	if err := tradelog.Append(entry); err != nil {
		logger.Warn(ctx, "Journal write failed", "error", err)
	}
}
