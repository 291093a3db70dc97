// Package equity derives portfolio value and PnL from account, portfolio,
// trade and snapshot series. It never mutates its inputs.
package equity

import (
	"sort"

	"github.com/shopspring/decimal"

	"botview/internal/types"
)

// Equity returns cash plus the marked value of every position. A symbol
// without a price contributes nothing.
func Equity(account types.Account, portfolio []types.Position, priceFor types.PriceFunc) decimal.Decimal {
	return account.CashBalance.Add(HoldingsValue(portfolio, priceFor))
}

func HoldingsValue(portfolio []types.Position, priceFor types.PriceFunc) decimal.Decimal {
	total := decimal.Zero
	for _, p := range portfolio {
		if priceFor == nil {
			break
		}
		px, ok := priceFor(p.Symbol)
		if !ok {
			continue
		}
		total = total.Add(p.Quantity.Mul(px))
	}
	return total
}

// Holdings lists each position with its price and value. Rows without a
// price carry null price and value.
func Holdings(portfolio []types.Position, priceFor types.PriceFunc) []types.Holding {
	out := make([]types.Holding, 0, len(portfolio))
	for _, p := range portfolio {
		h := types.Holding{Symbol: p.Symbol, Quantity: p.Quantity}
		if priceFor != nil {
			if px, ok := priceFor(p.Symbol); ok {
				h.Price = decimal.NewNullDecimal(px)
				h.Value = decimal.NewNullDecimal(p.Quantity.Mul(px))
			}
		}
		out = append(out, h)
	}
	return out
}

// Baseline is the total equity of the oldest snapshot in a newest-first
// window.
func Baseline(snapshots []types.EquitySnapshot) decimal.NullDecimal {
	if len(snapshots) == 0 {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(snapshots[len(snapshots)-1].TotalEquity)
}

// PnL is equity minus baseline, or null when there is no baseline yet.
func PnL(equity decimal.Decimal, baseline decimal.NullDecimal) decimal.NullDecimal {
	if !baseline.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(equity.Sub(baseline.Decimal))
}

// Realized sums the pnl of SELL trades. BUY rows and rows without a pnl are
// ignored.
func Realized(trades []types.Trade) decimal.Decimal {
	total := decimal.Zero
	for _, t := range trades {
		if t.Side != types.SideSell || !t.PnL.Valid {
			continue
		}
		total = total.Add(t.PnL.Decimal)
	}
	return total
}

func Unrealized(pnl decimal.NullDecimal, realized decimal.Decimal) decimal.NullDecimal {
	if !pnl.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(pnl.Decimal.Sub(realized))
}

// Summarize computes the full equity picture against an explicit baseline.
func Summarize(account types.Account, portfolio []types.Position, trades []types.Trade,
	baseline decimal.NullDecimal, priceFor types.PriceFunc) types.EquitySummary {
	holdings := HoldingsValue(portfolio, priceFor)
	eq := account.CashBalance.Add(holdings)
	pnl := PnL(eq, baseline)
	realized := Realized(trades)
	return types.EquitySummary{
		Cash:       account.CashBalance,
		Holdings:   holdings,
		Equity:     eq,
		Baseline:   baseline,
		PnL:        pnl,
		Realized:   realized,
		Unrealized: Unrealized(pnl, realized),
	}
}

// Curve orders snapshots chronologically for charting. Snapshots without a
// usable time are dropped; equal times keep their relative order.
func Curve(snapshots []types.EquitySnapshot) types.EquityCurve {
	pts := make([]types.CurvePoint, 0, len(snapshots))
	for _, s := range snapshots {
		if !s.TsValid {
			continue
		}
		pts = append(pts, types.CurvePoint{Ts: s.Ts, Equity: s.TotalEquity})
	}
	// newest-first input: reverse before the stable sort so ties stay
	// chronological
	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Ts < pts[j].Ts })

	c := types.EquityCurve{Points: pts}
	if len(pts) == 0 {
		return c
	}
	lo, hi := pts[0].Equity, pts[0].Equity
	for _, p := range pts[1:] {
		lo = decimal.Min(lo, p.Equity)
		hi = decimal.Max(hi, p.Equity)
	}
	c.Start = decimal.NewNullDecimal(pts[0].Equity)
	c.Now = decimal.NewNullDecimal(pts[len(pts)-1].Equity)
	c.Min = decimal.NewNullDecimal(lo)
	c.Max = decimal.NewNullDecimal(hi)
	return c
}
