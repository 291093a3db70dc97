// Package engine coordinates the client: it owns the caches fetched from
// the service, runs the polling loops through the session state machine
// and builds the view model.
//
// All engine state sits behind one mutex. Service calls are made without
// holding it; every mutation after a call re-acquires the lock and checks
// the mode generation first, so work started under an earlier mode or
// symbol is dropped instead of applied.
package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"botview/internal/align"
	"botview/internal/interfaces"
	"botview/internal/logger"
	"botview/internal/metrics"
	"botview/internal/poller"
	"botview/internal/replay"
	"botview/internal/session"
	"botview/internal/store"
	"botview/internal/types"
)

// loopMarket refreshes live candles and held-symbol prices in TRADING mode
// regardless of the run flag. The run loops are named after their mode.
const loopMarket = "MARKET"

// StatusTrainingFinished is the status line once a replay reaches the end
// of its dataset.
const StatusTrainingFinished = "Training finished"

var ErrUnknownSymbol = errors.New("unknown symbol")

type Option func(*Engine)

// WithClock drives the polling loops from clk.
func WithClock(clk clock.Clock) Option {
	return func(e *Engine) { e.clk = clk }
}

type Engine struct {
	cfg      *store.Config
	svc      interfaces.Service
	driver   *replay.Driver
	clk      clock.Clock
	poll     *poller.Poller
	strategy align.Strategy

	mu      sync.Mutex
	sm      *session.Machine
	symbol  string
	symbols []string

	// caches of the active mode's account
	account   types.Account
	portfolio []types.Position
	trades    []types.Trade
	snapshots []types.EquitySnapshot
	// baseline is latched from the first non-empty snapshot window after
	// activation and cleared on mode switch and reset
	baseline decimal.NullDecimal

	liveCandles     []types.Candle
	trainingCandles []types.Candle
	prices          map[string]decimal.Decimal
	lastPriceUpdate int64

	sessionID string
	status    string
	lastErr   string

	subMu   sync.Mutex
	subs    map[int]func(types.View)
	nextSub int
}

var _ interfaces.Engine = (*Engine)(nil)

func newEngine(cfg *store.Config, svc interfaces.Service, opts ...Option) (*Engine, error) {
	strategy, err := align.ParseStrategy(cfg.Alignment)
	if err != nil {
		return nil, err
	}
	sm, err := session.New(session.Options{
		TradingAccount:  cfg.Accounts.Trading,
		TrainingAccount: cfg.Accounts.Training,
		Limit:           cfg.Training.Limit,
		Offset:          cfg.Training.Offset,
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		svc:      svc,
		driver:   replay.NewDriver(svc),
		strategy: strategy,
		sm:       sm,
		symbol:   cfg.DefaultSymbol,
		symbols:  slices.Clone(cfg.Symbols),
		prices:   map[string]decimal.Decimal{},
		subs:     map[int]func(types.View){},
	}
	for _, o := range opts {
		o(e)
	}
	if e.clk == nil {
		e.clk = clock.New()
	}
	e.poll = poller.New(e.clk, poller.WithSkipHook(metrics.TickSkipped))
	return e, nil
}

// Open loads the active mode's data and starts the market loop.
func (e *Engine) Open(ctx context.Context) error {
	syms, _ := e.Symbols(ctx)
	logger.Info(ctx, "Symbols loaded", "count", len(syms))

	e.mu.Lock()
	mode := e.sm.Mode()
	gen := e.sm.Generation(mode)
	if mode == types.ModeTrading {
		e.poll.Start(loopMarket, e.cfg.MarketPeriod(), e.marketTick)
	}
	e.mu.Unlock()

	err := e.load(ctx, mode, gen)
	e.notify()
	return err
}

// SelectMode makes mode active. The previous mode's loop is stopped before
// any state changes; its in-flight tick becomes stale.
func (e *Engine) SelectMode(ctx context.Context, mode types.Mode) error {
	e.mu.Lock()
	prev := e.sm.Mode()
	if prev == mode {
		e.mu.Unlock()
		return nil
	}
	e.poll.Stop(string(prev))
	if prev == types.ModeTrading {
		e.poll.Stop(loopMarket)
	}
	e.sm.SelectMode(mode)
	metrics.Running(string(prev), false)
	e.clearModeCaches()
	e.status = ""
	e.lastErr = ""
	gen := e.sm.Generation(mode)
	if mode == types.ModeTrading {
		e.poll.Start(loopMarket, e.cfg.MarketPeriod(), e.marketTick)
	}
	e.mu.Unlock()

	logger.ModeChange(ctx, string(mode), "selected", "previous", prev)

	err := e.load(ctx, mode, gen)
	e.notify()
	return err
}

// clearModeCaches drops everything tied to the previous account.
// Caller holds e.mu.
func (e *Engine) clearModeCaches() {
	e.account = types.Account{}
	e.portfolio = nil
	e.trades = nil
	e.snapshots = nil
	e.baseline = decimal.NullDecimal{}
	e.liveCandles = nil
	e.trainingCandles = nil
	e.prices = map[string]decimal.Decimal{}
	e.lastPriceUpdate = 0
}

// Start runs the active mode. TRAINING fetches its dataset first when none
// is cached and refuses to start on an empty one.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	mode := e.sm.Mode()
	gen := e.sm.Generation(mode)
	needCandles := mode == types.ModeTraining && len(e.trainingCandles) == 0
	e.mu.Unlock()

	if needCandles {
		if err := e.loadTrainingCandles(ctx, gen); err != nil && !errors.Is(err, types.ErrStaleTick) {
			e.setError(mode, gen, err)
			return err
		}
	}

	e.mu.Lock()
	if !e.sm.Current(mode, gen) {
		e.mu.Unlock()
		return types.ErrStaleTick
	}
	if err := e.sm.Start(mode, len(e.trainingCandles)); err != nil {
		e.lastErr = err.Error()
		e.mu.Unlock()
		e.notify()
		return err
	}
	if mode == types.ModeTraining && (e.sessionID == "" || e.sm.Replay().Index == session.ReplayFloor) {
		e.sessionID = uuid.NewString()
	}
	e.lastErr = ""
	e.status = ""
	e.startLoop(mode)
	sid := e.sessionID
	e.mu.Unlock()

	metrics.Running(string(mode), true)
	logger.ModeChange(ctx, string(mode), "started", "session_id", sid)
	e.notify()
	return nil
}

// startLoop registers the run loop of mode. Caller holds e.mu.
func (e *Engine) startLoop(mode types.Mode) {
	if mode == types.ModeTraining {
		e.poll.Start(string(mode), e.cfg.TrainingPeriod(), e.trainingTick)
		return
	}
	e.poll.Start(string(mode), e.cfg.TradingPeriod(), e.tradingTick)
}

// Pause stops the active mode's loop, then marks it idle.
func (e *Engine) Pause(ctx context.Context) {
	e.mu.Lock()
	mode := e.sm.Mode()
	e.poll.Stop(string(mode))
	e.sm.Pause(mode)
	if mode == types.ModeTraining {
		e.status = "Training paused"
	} else {
		e.status = "Paused"
	}
	e.mu.Unlock()

	metrics.Running(string(mode), false)
	logger.ModeChange(ctx, string(mode), "paused")
	e.notify()
}

func (e *Engine) Toggle(ctx context.Context) error {
	e.mu.Lock()
	running := e.sm.Running(e.sm.Mode())
	e.mu.Unlock()

	if running {
		e.Pause(ctx)
		return nil
	}
	return e.Start(ctx)
}

// Reset clears the active account on the service and re-establishes the
// baseline from a fresh post-reset snapshot.
func (e *Engine) Reset(ctx context.Context) error {
	op := logger.StartOperation(ctx, "engine.reset")
	ctx = op.Context()

	e.mu.Lock()
	mode := e.sm.Mode()
	e.poll.Stop(string(mode))
	e.sm.Reset()
	gen := e.sm.Generation(mode)
	acct := e.sm.AccountID(mode)
	e.mu.Unlock()
	metrics.Running(string(mode), false)

	err := e.driver.Reset(ctx, mode, &resetHooks{e: e, mode: mode, gen: gen, account: acct})
	if errors.Is(err, types.ErrStaleTick) {
		op.End("outcome", "stale")
		return nil
	}

	e.mu.Lock()
	if e.sm.Current(mode, gen) {
		if err != nil {
			e.lastErr = err.Error()
			e.status = "Reset failed"
		} else {
			e.lastErr = ""
			e.status = "Reset: OK"
		}
	}
	e.mu.Unlock()
	e.notify()

	if err != nil {
		op.EndWithError(err, "mode", string(mode))
		return err
	}
	op.End("mode", string(mode))
	return nil
}

// SetSymbol switches the charted symbol. The active loop is paused and
// symbol-scoped candles are dropped.
func (e *Engine) SetSymbol(ctx context.Context, symbol string) error {
	e.mu.Lock()
	if !slices.Contains(e.symbols, symbol) {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	if symbol == e.symbol {
		e.mu.Unlock()
		return nil
	}
	mode := e.sm.Mode()
	e.poll.Stop(string(mode))
	e.sm.Invalidate(mode)
	e.symbol = symbol
	e.liveCandles = nil
	e.trainingCandles = nil
	e.lastPriceUpdate = 0
	e.sessionID = ""
	e.status = ""
	gen := e.sm.Generation(mode)
	e.mu.Unlock()

	metrics.Running(string(mode), false)
	logger.Info(ctx, "Symbol changed", "symbol", symbol, "mode", mode)

	err := e.loadCandles(ctx, mode, gen)
	if errors.Is(err, types.ErrStaleTick) {
		err = nil
	}
	if err != nil {
		e.setError(mode, gen, err)
	}
	e.notify()
	return err
}

// SetTrainingLimit resizes the replay window while training is idle. The
// cached dataset is refetched at the new size.
func (e *Engine) SetTrainingLimit(ctx context.Context, limit int) error {
	e.mu.Lock()
	if err := e.sm.SetLimit(limit); err != nil {
		e.mu.Unlock()
		return err
	}
	e.trainingCandles = nil
	mode := e.sm.Mode()
	gen := e.sm.Generation(mode)
	e.mu.Unlock()

	var err error
	if mode == types.ModeTraining {
		err = e.loadTrainingCandles(ctx, gen)
		if errors.Is(err, types.ErrStaleTick) {
			err = nil
		}
	}
	e.notify()
	return err
}

// Symbols returns the service's symbol list, falling back to the
// configured one when the service has none.
func (e *Engine) Symbols(ctx context.Context) ([]string, error) {
	syms, err := e.svc.GetSymbols(ctx)
	if err != nil {
		logger.Warn(ctx, "Symbol list unavailable, using configured symbols", "error", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err == nil && len(syms) > 0 {
		if !slices.Contains(syms, e.symbol) {
			syms = append(syms, e.symbol)
		}
		e.symbols = syms
	}
	return slices.Clone(e.symbols), nil
}

func (e *Engine) View() types.View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewLocked()
}

// Subscribe registers fn to receive the view after every change. fn runs
// on the goroutine that made the change and must not block.
func (e *Engine) Subscribe(fn func(types.View)) (cancel func()) {
	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.subMu.Unlock()

	return func() {
		e.subMu.Lock()
		delete(e.subs, id)
		e.subMu.Unlock()
	}
}

func (e *Engine) notify() {
	e.subMu.Lock()
	fns := make([]func(types.View), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.subMu.Unlock()
	if len(fns) == 0 {
		return
	}

	v := e.View()
	for _, fn := range fns {
		fn(v)
	}
}

// Close stops every loop and waits for in-flight ticks.
func (e *Engine) Close(ctx context.Context) error {
	e.poll.Close()

	e.mu.Lock()
	mode := e.sm.Mode()
	e.sm.Pause(types.ModeTrading)
	e.sm.Pause(types.ModeTraining)
	e.mu.Unlock()

	metrics.Running(string(types.ModeTrading), false)
	metrics.Running(string(types.ModeTraining), false)
	logger.ModeChange(ctx, string(mode), "closed")
	return nil
}

// setError surfaces err if gen is still current for mode.
func (e *Engine) setError(mode types.Mode, gen uint64, err error) {
	e.mu.Lock()
	if e.sm.Current(mode, gen) {
		e.lastErr = err.Error()
	}
	e.mu.Unlock()
	e.notify()
}
