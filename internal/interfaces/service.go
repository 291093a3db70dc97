package interfaces

import (
	"context"

	"botview/internal/types"
)

// Service is the external trading service. Implementations normalize
// payloads before returning them and report every failure as a
// *types.ServiceError.
type Service interface {
	GetAccount(ctx context.Context, accountID int64) (types.Account, error)
	GetPortfolio(ctx context.Context, accountID int64) ([]types.Position, error)
	// GetTrades returns newest first.
	GetTrades(ctx context.Context, accountID int64) ([]types.Trade, error)
	GetCandles(ctx context.Context, symbol string, limit int, interval string, offset int) ([]types.Candle, error)
	GetSymbols(ctx context.Context) ([]string, error)
	RunLiveStep(ctx context.Context, accountID int64, symbol string) (string, error)
	RunReplayStep(ctx context.Context, accountID int64, symbol string, limit, index, offset int, candles []types.Candle) (types.ReplayStepResult, error)
	ResetAccount(ctx context.Context, accountID int64) error
	CreateEquitySnapshot(ctx context.Context, accountID int64, mode types.Mode) error
	// GetEquitySnapshots returns newest first, at most limit rows.
	GetEquitySnapshots(ctx context.Context, accountID int64, mode types.Mode, limit int) ([]types.EquitySnapshot, error)
	Ping(ctx context.Context) error
}
