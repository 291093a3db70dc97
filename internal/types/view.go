package types

import "github.com/shopspring/decimal"

// Marker is a trade overlaid on the price chart. It is anchored at the
// matched candle's close; the trade's own fields ride along for display.
type Marker struct {
	CandleIndex int                 `json:"candleIndex"`
	CandleTs    int64               `json:"candleTs"`
	Anchor      decimal.Decimal     `json:"anchor"`
	TradeTs     int64               `json:"tradeTs"`
	Side        Side                `json:"side"`
	Symbol      string              `json:"symbol"`
	Price       decimal.Decimal     `json:"price"`
	Quantity    decimal.Decimal     `json:"quantity"`
	PnL         decimal.NullDecimal `json:"pnl"`
}

type Holding struct {
	Symbol   string              `json:"symbol"`
	Quantity decimal.Decimal     `json:"quantity"`
	Price    decimal.NullDecimal `json:"price"`
	Value    decimal.NullDecimal `json:"value"`
}

// EquitySummary is the accountant's output. Null fields mean "unavailable",
// which is distinct from zero.
type EquitySummary struct {
	Cash       decimal.Decimal     `json:"cash"`
	Holdings   decimal.Decimal     `json:"holdings"`
	Equity     decimal.Decimal     `json:"equity"`
	Baseline   decimal.NullDecimal `json:"baseline"`
	PnL        decimal.NullDecimal `json:"pnl"`
	Realized   decimal.Decimal     `json:"realized"`
	Unrealized decimal.NullDecimal `json:"unrealized"`
}

type CurvePoint struct {
	Ts     int64           `json:"ts"`
	Equity decimal.Decimal `json:"equity"`
}

type EquityCurve struct {
	Points []CurvePoint        `json:"points"`
	Start  decimal.NullDecimal `json:"start"`
	Now    decimal.NullDecimal `json:"now"`
	Min    decimal.NullDecimal `json:"min"`
	Max    decimal.NullDecimal `json:"max"`
}

type Progress struct {
	Started    bool    `json:"started"`
	Now        int     `json:"now"`
	Limit      int     `json:"limit"`
	Percent    float64 `json:"percent"`
	RangeStart int64   `json:"rangeStart,omitempty"`
	RangeEnd   int64   `json:"rangeEnd,omitempty"`
}

// View is the renderer-neutral picture of the client at one instant.
type View struct {
	Mode            Mode          `json:"mode"`
	Symbol          string        `json:"symbol"`
	AccountID       int64         `json:"accountId"`
	Running         bool          `json:"running"`
	SessionID       string        `json:"sessionId,omitempty"`
	Candles         []Candle      `json:"candles"`
	Markers         []Marker      `json:"markers"`
	Summary         EquitySummary `json:"summary"`
	Holdings        []Holding     `json:"holdings"`
	Curve           EquityCurve   `json:"curve"`
	Progress        Progress      `json:"progress"`
	TradeCount      int           `json:"tradeCount"`
	LastTradeTs     int64         `json:"lastTradeTs,omitempty"`
	LastPriceUpdate int64         `json:"lastPriceUpdate,omitempty"`
	Status          string        `json:"status"`
	Error           string        `json:"error,omitempty"`
}
