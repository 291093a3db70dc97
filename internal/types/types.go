package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Mode selects which account and polling loop the client drives.
type Mode string

const (
	ModeTrading  Mode = "TRADING"
	ModeTraining Mode = "TRAINING"
)

// ParseMode accepts any casing of TRADING or TRAINING.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToUpper(strings.TrimSpace(s))) {
	case ModeTrading:
		return ModeTrading, true
	case ModeTraining:
		return ModeTraining, true
	}
	return "", false
}

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Candle is a fixed-interval price sample. Ts is canonical epoch milliseconds.
type Candle struct {
	Ts     int64           `json:"timestamp"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

// Trade is one executed fill as reported by the service. TsValid is false
// when the payload carried no usable time; such trades never align.
type Trade struct {
	ID       int64               `json:"id,omitempty"`
	Ts       int64               `json:"timestamp"`
	TsValid  bool                `json:"-"`
	Side     Side                `json:"side"`
	Symbol   string              `json:"symbol"`
	Quantity decimal.Decimal     `json:"quantity"`
	Price    decimal.Decimal     `json:"price"`
	PnL      decimal.NullDecimal `json:"pnl"`
	Mode     Mode                `json:"mode,omitempty"`
}

type EquitySnapshot struct {
	Ts          int64           `json:"timestamp"`
	TsValid     bool            `json:"-"`
	TotalEquity decimal.Decimal `json:"total_equity"`
}

type Account struct {
	ID          int64           `json:"id"`
	CashBalance decimal.Decimal `json:"cash_balance"`
}

type Position struct {
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
	UpdatedAt     int64           `json:"updated_at,omitempty"`
}

// ReplayStepResult is the service's answer to one training step.
// NextIndex is authoritative.
type ReplayStepResult struct {
	Signal         string `json:"signal"`
	TradesExecuted int    `json:"tradesExecuted"`
	NextIndex      int    `json:"nextIndex"`
	Done           bool   `json:"done"`
}

// PriceFunc resolves the latest known price of a symbol.
type PriceFunc func(symbol string) (decimal.Decimal, bool)
