package equity

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botview/internal/types"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func prices(m map[string]string) types.PriceFunc {
	return func(sym string) (decimal.Decimal, bool) {
		v, ok := m[sym]
		if !ok {
			return decimal.Zero, false
		}
		return d(v), true
	}
}

func TestEquityMissingPriceContributesZero(t *testing.T) {
	acct := types.Account{CashBalance: d("1000")}
	pf := []types.Position{
		{Symbol: "BTCUSDT", Quantity: d("0.5")},
		{Symbol: "ETHUSDT", Quantity: d("2")},
	}
	got := Equity(acct, pf, prices(map[string]string{"BTCUSDT": "40000"}))
	assert.True(t, got.Equal(d("21000")), got.String())

	assert.True(t, Equity(acct, pf, nil).Equal(d("1000")))
}

func TestEquityLinearInCash(t *testing.T) {
	pf := []types.Position{{Symbol: "SOLUSDT", Quantity: d("3.3")}}
	px := prices(map[string]string{"SOLUSDT": "101.17"})
	for _, delta := range []string{"0.01", "1", "12345.6789", "-50"} {
		base := Equity(types.Account{CashBalance: d("999.99")}, pf, px)
		shifted := Equity(types.Account{CashBalance: d("999.99").Add(d(delta))}, pf, px)
		assert.True(t, shifted.Sub(base).Equal(d(delta)), delta)
	}
}

func TestBaselineIsOldestSnapshot(t *testing.T) {
	snaps := []types.EquitySnapshot{
		{Ts: 1000, TsValid: true, TotalEquity: d("1050")},
		{Ts: 0, TsValid: true, TotalEquity: d("1000")},
	}
	b := Baseline(snaps)
	require.True(t, b.Valid)
	assert.True(t, b.Decimal.Equal(d("1000")))

	pnl := PnL(d("1080"), b)
	require.True(t, pnl.Valid)
	assert.True(t, pnl.Decimal.Equal(d("80")))
}

func TestPnLUnavailableWithoutBaseline(t *testing.T) {
	assert.False(t, Baseline(nil).Valid)
	s := Summarize(types.Account{CashBalance: d("500")}, nil, nil, decimal.NullDecimal{}, nil)
	assert.False(t, s.PnL.Valid)
	assert.False(t, s.Unrealized.Valid)
	assert.True(t, s.Equity.Equal(d("500")))
}

func TestRealizedCountsOnlySells(t *testing.T) {
	trades := []types.Trade{
		{Side: types.SideSell, PnL: decimal.NewNullDecimal(d("12.5"))},
		{Side: types.SideBuy, PnL: decimal.NewNullDecimal(d("99"))},
		{Side: types.SideSell},
		{Side: types.SideSell, PnL: decimal.NewNullDecimal(d("-2.5"))},
	}
	assert.True(t, Realized(trades).Equal(d("10")))
}

func TestDecomposition(t *testing.T) {
	acct := types.Account{CashBalance: d("800.10")}
	pf := []types.Position{{Symbol: "BNBUSDT", Quantity: d("0.75")}}
	trades := []types.Trade{
		{Side: types.SideSell, PnL: decimal.NewNullDecimal(d("3.21"))},
		{Side: types.SideSell, PnL: decimal.NewNullDecimal(d("-1.07"))},
	}
	s := Summarize(acct, pf, trades, decimal.NewNullDecimal(d("1000")), prices(map[string]string{"BNBUSDT": "310.4"}))
	require.True(t, s.PnL.Valid)
	require.True(t, s.Unrealized.Valid)
	assert.True(t, s.Realized.Add(s.Unrealized.Decimal).Equal(s.PnL.Decimal))
}

func TestHoldingsRows(t *testing.T) {
	pf := []types.Position{
		{Symbol: "BTCUSDT", Quantity: d("0.1")},
		{Symbol: "ETHUSDT", Quantity: d("1")},
	}
	rows := Holdings(pf, prices(map[string]string{"BTCUSDT": "30000"}))
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Value.Valid)
	assert.True(t, rows[0].Value.Decimal.Equal(d("3000")))
	assert.False(t, rows[1].Value.Valid)
}

func TestCurveIsChronological(t *testing.T) {
	snaps := []types.EquitySnapshot{
		{Ts: 3000, TsValid: true, TotalEquity: d("990")},
		{Ts: 2000, TsValid: true, TotalEquity: d("1100")},
		{TsValid: false, TotalEquity: d("5")},
		{Ts: 1000, TsValid: true, TotalEquity: d("1000")},
	}
	c := Curve(snaps)
	require.Len(t, c.Points, 3)
	assert.Equal(t, []int64{1000, 2000, 3000}, []int64{c.Points[0].Ts, c.Points[1].Ts, c.Points[2].Ts})
	assert.True(t, c.Start.Decimal.Equal(d("1000")))
	assert.True(t, c.Now.Decimal.Equal(d("990")))
	assert.True(t, c.Min.Decimal.Equal(d("990")))
	assert.True(t, c.Max.Decimal.Equal(d("1100")))

	assert.False(t, Curve(nil).Now.Valid)
}
