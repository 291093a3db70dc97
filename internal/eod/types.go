package eod

import "github.com/shopspring/decimal"

// sessionRow aggregates the journal lines of one replay session, or of one
// mode's live ticks when no session id is present.
type sessionRow struct {
	Mode           string
	SessionID      string
	Symbol         string
	Steps          int
	Failures       int
	TradesExecuted int
	FirstIndex     int
	LastIndex      int
	Finished       bool
	FirstEquity    decimal.Decimal
	LastEquity     decimal.Decimal
	LastPnL        decimal.NullDecimal
	seenEquity     bool
}

type rowKey struct {
	mode, session, symbol string
}
