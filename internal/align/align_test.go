package align

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botview/internal/types"
)

func candles(pairs ...int64) []types.Candle {
	out := make([]types.Candle, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, types.Candle{Ts: pairs[i], Close: decimal.NewFromInt(pairs[i+1])})
	}
	return out
}

func trade(ts int64, side types.Side, price int64) types.Trade {
	return types.Trade{
		Ts:       ts,
		TsValid:  true,
		Side:     side,
		Symbol:   "BTCUSDT",
		Quantity: decimal.NewFromInt(1),
		Price:    decimal.NewFromInt(price),
	}
}

func TestBucketIndexBoundaries(t *testing.T) {
	cs := candles(0, 100, 60000, 110, 120000, 105)

	assert.Equal(t, 0, BucketIndex(cs, 59999))
	assert.Equal(t, 1, BucketIndex(cs, 60000))
	assert.Equal(t, 2, BucketIndex(cs, 120000))
	assert.Equal(t, 2, BucketIndex(cs, 999999))
	assert.Equal(t, -1, BucketIndex(cs, -1))
	assert.Equal(t, -1, BucketIndex(nil, 10))
}

func TestBucketIndexNeverOutOfBounds(t *testing.T) {
	cs := candles(1000, 1, 2000, 2, 2000, 3, 5000, 4, 9000, 5)
	for ts := cs[0].Ts; ts <= cs[len(cs)-1].Ts; ts += 250 {
		i := BucketIndex(cs, ts)
		require.GreaterOrEqual(t, i, 0)
		require.Less(t, i, len(cs))
		assert.LessOrEqual(t, cs[i].Ts, ts)
	}
}

func TestNearestIndex(t *testing.T) {
	cs := candles(0, 100, 60000, 110, 120000, 105)

	assert.Equal(t, 1, NearestIndex(cs, 59999))
	assert.Equal(t, 0, NearestIndex(cs, 30000), "ties keep the earlier index")
	assert.Equal(t, 2, NearestIndex(cs, 500000))
	assert.Equal(t, -1, NearestIndex(nil, 1))

	unordered := candles(120000, 1, 0, 2, 60000, 3)
	assert.Equal(t, 2, NearestIndex(unordered, 61000))
}

func TestMarkersAnchorAtCandleClose(t *testing.T) {
	cs := candles(0, 100, 60000, 110, 120000, 105)
	trades := []types.Trade{trade(59999, types.SideBuy, 109)}

	ms := Markers(cs, trades, StrategyAuto, 0)
	require.Len(t, ms, 1)
	assert.Equal(t, 0, ms[0].CandleIndex)
	assert.True(t, ms[0].Anchor.Equal(decimal.NewFromInt(100)))
	assert.True(t, ms[0].Price.Equal(decimal.NewFromInt(109)))
	assert.Equal(t, types.SideBuy, ms[0].Side)
}

func TestMarkersSkipUnmatchedAndInvalid(t *testing.T) {
	cs := candles(1000, 100, 2000, 110)
	bad := trade(1500, types.SideSell, 1)
	bad.TsValid = false
	trades := []types.Trade{bad, trade(10, types.SideBuy, 1), trade(1500, types.SideSell, 1)}

	ms := Markers(cs, trades, StrategyBucket, 0)
	require.Len(t, ms, 1)
	assert.Equal(t, int64(1500), ms[0].TradeTs)
}

func TestMarkersCapTakesNewestFirst(t *testing.T) {
	cs := candles(0, 1, 1000, 2)
	trades := make([]types.Trade, 0, 50)
	for i := 49; i >= 0; i-- {
		trades = append(trades, trade(int64(i*10), types.SideBuy, 1))
	}

	ms := Markers(cs, trades, StrategyAuto, DefaultMaxMarkers)
	require.Len(t, ms, DefaultMaxMarkers)
	assert.Equal(t, int64(490), ms[0].TradeTs)
	assert.Equal(t, int64(200), ms[len(ms)-1].TradeTs)
}

func TestAutoFallsBackToNearestOnUnorderedSeries(t *testing.T) {
	cs := candles(60000, 110, 0, 100)
	assert.False(t, Sorted(cs))
	assert.Equal(t, 1, Index(cs, 100, StrategyAuto))
	assert.Equal(t, 0, Index(cs, 59000, StrategyAuto))
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("Nearest")
	require.NoError(t, err)
	assert.Equal(t, StrategyNearest, s)

	s, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyAuto, s)

	_, err = ParseStrategy("fuzzy")
	assert.Error(t, err)
}
