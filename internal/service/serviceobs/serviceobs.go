package serviceobs

import (
	"context"
	"time"

	"botview/internal/interfaces"
	"botview/internal/logger"
	"botview/internal/metrics"
	"botview/internal/trace"
	"botview/internal/types"
)

// observableService wraps a Service with tracing, logging and request metrics
type observableService struct {
	svc interfaces.Service
}

var _ interfaces.Service = (*observableService)(nil)

func Wrap(svc interfaces.Service) interfaces.Service {
	return &observableService{svc: svc}
}

// finish records the outcome of one call
func finish(ctx context.Context, op string, start time.Time, err error, args ...any) {
	d := time.Since(start)
	metrics.Request(op, err, d)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 2, "Service call failed", err, append([]any{"op", op, "duration_ms", d.Milliseconds()}, args...)...)
		return
	}
	logger.DebugSkip(ctx, 2, "Service call completed", append([]any{"op", op, "duration_ms", d.Milliseconds()}, args...)...)
}

func (o *observableService) GetAccount(ctx context.Context, accountID int64) (types.Account, error) {
	ctx, span := trace.StartSpan(ctx, "service.GetAccount")
	defer span.End()

	start := time.Now()
	acct, err := o.svc.GetAccount(ctx, accountID)
	finish(ctx, "getAccount", start, err, "account_id", accountID)
	return acct, err
}

func (o *observableService) GetPortfolio(ctx context.Context, accountID int64) ([]types.Position, error) {
	ctx, span := trace.StartSpan(ctx, "service.GetPortfolio")
	defer span.End()

	start := time.Now()
	rows, err := o.svc.GetPortfolio(ctx, accountID)
	finish(ctx, "getPortfolio", start, err, "account_id", accountID, "positions", len(rows))
	return rows, err
}

func (o *observableService) GetTrades(ctx context.Context, accountID int64) ([]types.Trade, error) {
	ctx, span := trace.StartSpan(ctx, "service.GetTrades")
	defer span.End()

	start := time.Now()
	rows, err := o.svc.GetTrades(ctx, accountID)
	finish(ctx, "getTrades", start, err, "account_id", accountID, "trades", len(rows))
	return rows, err
}

func (o *observableService) GetCandles(ctx context.Context, symbol string, limit int, interval string, offset int) ([]types.Candle, error) {
	ctx, span := trace.StartSpan(ctx, "service.GetCandles")
	defer span.End()

	start := time.Now()
	rows, err := o.svc.GetCandles(ctx, symbol, limit, interval, offset)
	finish(ctx, "getCandles", start, err, "symbol", symbol, "limit", limit, "offset", offset, "candles", len(rows))
	return rows, err
}

func (o *observableService) GetSymbols(ctx context.Context) ([]string, error) {
	ctx, span := trace.StartSpan(ctx, "service.GetSymbols")
	defer span.End()

	start := time.Now()
	syms, err := o.svc.GetSymbols(ctx)
	finish(ctx, "getSymbols", start, err, "count", len(syms))
	return syms, err
}

func (o *observableService) RunLiveStep(ctx context.Context, accountID int64, symbol string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "service.RunLiveStep")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Running live step", "account_id", accountID, "symbol", symbol)

	start := time.Now()
	status, err := o.svc.RunLiveStep(ctx, accountID, symbol)
	finish(ctx, "runLiveStep", start, err, "symbol", symbol, "status", status)
	return status, err
}

func (o *observableService) RunReplayStep(ctx context.Context, accountID int64, symbol string, limit, index, offset int, candles []types.Candle) (types.ReplayStepResult, error) {
	ctx, span := trace.StartSpan(ctx, "service.RunReplayStep")
	defer span.End()

	start := time.Now()
	res, err := o.svc.RunReplayStep(ctx, accountID, symbol, limit, index, offset, candles)
	finish(ctx, "runReplayStep", start, err,
		"symbol", symbol,
		"index", index,
		"next_index", res.NextIndex,
		"signal", res.Signal,
		"done", res.Done,
	)
	return res, err
}

func (o *observableService) ResetAccount(ctx context.Context, accountID int64) error {
	ctx, span := trace.StartSpan(ctx, "service.ResetAccount")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Resetting account", "account_id", accountID)

	start := time.Now()
	err := o.svc.ResetAccount(ctx, accountID)
	finish(ctx, "resetAccount", start, err, "account_id", accountID)
	return err
}

func (o *observableService) CreateEquitySnapshot(ctx context.Context, accountID int64, mode types.Mode) error {
	ctx, span := trace.StartSpan(ctx, "service.CreateEquitySnapshot")
	defer span.End()

	start := time.Now()
	err := o.svc.CreateEquitySnapshot(ctx, accountID, mode)
	finish(ctx, "createEquitySnapshot", start, err, "account_id", accountID, "mode", mode)
	return err
}

func (o *observableService) GetEquitySnapshots(ctx context.Context, accountID int64, mode types.Mode, limit int) ([]types.EquitySnapshot, error) {
	ctx, span := trace.StartSpan(ctx, "service.GetEquitySnapshots")
	defer span.End()

	start := time.Now()
	rows, err := o.svc.GetEquitySnapshots(ctx, accountID, mode, limit)
	finish(ctx, "getEquitySnapshots", start, err, "account_id", accountID, "mode", mode, "snapshots", len(rows))
	return rows, err
}

func (o *observableService) Ping(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "service.Ping")
	defer span.End()

	start := time.Now()
	err := o.svc.Ping(ctx)
	finish(ctx, "ping", start, err)
	return err
}
