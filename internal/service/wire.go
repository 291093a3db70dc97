package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"botview/internal/logger"
	"botview/internal/timex"
	"botview/internal/types"
)

// Wire shapes as the service sends them. Time fields arrive under several
// names and in several encodings; everything is normalized here once.

type wireCandle struct {
	Timestamp json.RawMessage     `json:"timestamp"`
	Ts        json.RawMessage     `json:"ts"`
	Time      json.RawMessage     `json:"time"`
	Open      decimal.NullDecimal `json:"open"`
	High      decimal.NullDecimal `json:"high"`
	Low       decimal.NullDecimal `json:"low"`
	Close     decimal.NullDecimal `json:"close"`
	Volume    decimal.NullDecimal `json:"volume"`
}

type wireTrade struct {
	ID        int64               `json:"id"`
	Timestamp json.RawMessage     `json:"timestamp"`
	Ts        json.RawMessage     `json:"ts"`
	Time      json.RawMessage     `json:"time"`
	Side      string              `json:"side"`
	Symbol    string              `json:"symbol"`
	Quantity  decimal.NullDecimal `json:"quantity"`
	Price     decimal.NullDecimal `json:"price"`
	PnL       decimal.NullDecimal `json:"pnl"`
	Mode      string              `json:"mode"`
}

type wireSnapshot struct {
	Timestamp        json.RawMessage     `json:"timestamp"`
	Ts               json.RawMessage     `json:"ts"`
	Time             json.RawMessage     `json:"time"`
	CreatedAt        json.RawMessage     `json:"created_at"`
	TotalEquity      decimal.NullDecimal `json:"total_equity"`
	TotalEquityCamel decimal.NullDecimal `json:"totalEquity"`
}

type wireAccount struct {
	ID               int64               `json:"id"`
	CashBalance      decimal.NullDecimal `json:"cash_balance"`
	CashBalanceCamel decimal.NullDecimal `json:"cashBalance"`
}

type wirePosition struct {
	Symbol        string              `json:"symbol"`
	Quantity      decimal.NullDecimal `json:"quantity"`
	AvgEntryPrice decimal.NullDecimal `json:"avg_entry_price"`
	UpdatedAt     json.RawMessage     `json:"updated_at"`
}

// candles drops rows without a usable time or close; the aligner cannot
// place them and the chart cannot draw them.
func candles(ctx context.Context, in []wireCandle) []types.Candle {
	out := make([]types.Candle, 0, len(in))
	dropped := 0
	for _, w := range in {
		ts, err := timex.First(w.Timestamp, w.Ts, w.Time)
		if err != nil || !w.Close.Valid {
			dropped++
			continue
		}
		out = append(out, types.Candle{
			Ts:     ts,
			Open:   w.Open.Decimal,
			High:   w.High.Decimal,
			Low:    w.Low.Decimal,
			Close:  w.Close.Decimal,
			Volume: w.Volume.Decimal,
		})
	}
	if dropped > 0 {
		logger.Warn(ctx, "Dropped candles without usable time or close", "dropped", dropped, "kept", len(out))
	}
	return out
}

func trades(in []wireTrade) []types.Trade {
	out := make([]types.Trade, 0, len(in))
	for _, w := range in {
		ts, err := timex.First(w.Timestamp, w.Ts, w.Time)
		mode, _ := types.ParseMode(w.Mode)
		out = append(out, types.Trade{
			ID:       w.ID,
			Ts:       ts,
			TsValid:  err == nil,
			Side:     types.Side(strings.ToUpper(strings.TrimSpace(w.Side))),
			Symbol:   w.Symbol,
			Quantity: w.Quantity.Decimal,
			Price:    w.Price.Decimal,
			PnL:      w.PnL,
			Mode:     mode,
		})
	}
	return out
}

func snapshots(in []wireSnapshot) []types.EquitySnapshot {
	out := make([]types.EquitySnapshot, 0, len(in))
	for _, w := range in {
		ts, err := timex.First(w.Timestamp, w.Ts, w.Time, w.CreatedAt)
		eq := w.TotalEquity
		if !eq.Valid {
			eq = w.TotalEquityCamel
		}
		if !eq.Valid {
			// a snapshot without a value cannot serve as a baseline
			continue
		}
		out = append(out, types.EquitySnapshot{Ts: ts, TsValid: err == nil, TotalEquity: eq.Decimal})
	}
	return out
}

func account(w wireAccount) types.Account {
	cash := w.CashBalance
	if !cash.Valid {
		cash = w.CashBalanceCamel
	}
	return types.Account{ID: w.ID, CashBalance: cash.Decimal}
}

func positions(in []wirePosition) []types.Position {
	out := make([]types.Position, 0, len(in))
	for _, w := range in {
		p := types.Position{
			Symbol:        w.Symbol,
			Quantity:      w.Quantity.Decimal,
			AvgEntryPrice: w.AvgEntryPrice.Decimal,
		}
		if ts, err := timex.FromJSON(w.UpdatedAt); err == nil {
			p.UpdatedAt = ts
		}
		out = append(out, p)
	}
	return out
}

// wireCandleOut is what the replay step endpoint expects in its body.
type wireCandleOut struct {
	Timestamp int64       `json:"timestamp"`
	Close     json.Number `json:"close"`
}

func candlesOut(in []types.Candle) []wireCandleOut {
	out := make([]wireCandleOut, len(in))
	for i, c := range in {
		out[i] = wireCandleOut{Timestamp: c.Ts, Close: json.Number(c.Close.String())}
	}
	return out
}
