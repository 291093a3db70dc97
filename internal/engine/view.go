package engine

import (
	"strings"

	"github.com/shopspring/decimal"

	"botview/internal/align"
	"botview/internal/equity"
	"botview/internal/session"
	"botview/internal/types"
)

// chartLocked returns the candles on screen: the live window in TRADING,
// the replayed prefix [0, index] of the dataset in TRAINING.
func (e *Engine) chartLocked() []types.Candle {
	if e.sm.Mode() == types.ModeTrading {
		return e.liveCandles
	}
	n := min(e.sm.Replay().Index+1, len(e.trainingCandles))
	return e.trainingCandles[:n]
}

// priceForLocked prefers the chart's latest close for the charted symbol,
// then the last polled quote.
func (e *Engine) priceForLocked(chart []types.Candle) types.PriceFunc {
	sym := e.symbol
	var last decimal.NullDecimal
	if n := len(chart); n > 0 {
		last = decimal.NewNullDecimal(chart[n-1].Close)
	}
	prices := e.prices
	return func(symbol string) (decimal.Decimal, bool) {
		if symbol == sym && last.Valid {
			return last.Decimal, true
		}
		p, ok := prices[symbol]
		return p, ok
	}
}

func (e *Engine) viewLocked() types.View {
	mode := e.sm.Mode()
	chart := e.chartLocked()
	priceFor := e.priceForLocked(chart)

	symbolTrades := make([]types.Trade, 0, len(e.trades))
	for _, t := range e.trades {
		if t.Symbol == "" || strings.EqualFold(t.Symbol, e.symbol) {
			symbolTrades = append(symbolTrades, t)
		}
	}

	v := types.View{
		Mode:            mode,
		Symbol:          e.symbol,
		AccountID:       e.sm.AccountID(mode),
		Running:         e.sm.Running(mode),
		Candles:         append([]types.Candle{}, chart...),
		Markers:         align.Markers(chart, symbolTrades, e.strategy, e.cfg.MaxMarkers),
		Summary:         equity.Summarize(e.account, e.portfolio, e.trades, e.baseline, priceFor),
		Holdings:        equity.Holdings(e.portfolio, priceFor),
		Curve:           equity.Curve(e.snapshots),
		TradeCount:      len(e.trades),
		LastTradeTs:     lastTradeTs(e.trades),
		LastPriceUpdate: e.lastPriceUpdate,
		Status:          e.status,
		Error:           e.lastErr,
	}
	if mode == types.ModeTraining {
		v.SessionID = e.sessionID
		v.Progress = e.progressLocked()
	}
	return v
}

// progressLocked reports how far the replay has advanced through its
// window. The dataset range shows once training has started or moved.
func (e *Engine) progressLocked() types.Progress {
	rp := e.sm.Replay()
	p := types.Progress{
		Started: e.sm.Running(types.ModeTraining) || len(e.trades) > 0,
		Limit:   rp.Limit,
	}
	if p.Started {
		p.Now = min(rp.Index, rp.Limit)
		if rp.Limit > 0 {
			p.Percent = float64(p.Now) / float64(rp.Limit) * 100
		}
	}
	if n := len(e.trainingCandles); n > 0 && (p.Started || rp.Index > session.ReplayFloor) {
		p.RangeStart = e.trainingCandles[0].Ts
		p.RangeEnd = e.trainingCandles[n-1].Ts
	}
	return p
}

// lastTradeTs is the time of the newest trade with a usable timestamp.
func lastTradeTs(trades []types.Trade) int64 {
	for _, t := range trades {
		if t.TsValid {
			return t.Ts
		}
	}
	return 0
}
