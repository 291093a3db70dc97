// Package align maps trades onto the candle they executed in.
package align

import (
	"fmt"
	"sort"
	"strings"

	"botview/internal/types"
)

// DefaultMaxMarkers bounds the overlay independent of trade history length.
const DefaultMaxMarkers = 30

type Strategy string

const (
	// StrategyAuto uses bucket containment on ordered series and falls back
	// to nearest-match otherwise.
	StrategyAuto    Strategy = "auto"
	StrategyBucket  Strategy = "bucket"
	StrategyNearest Strategy = "nearest"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyAuto:
		return StrategyAuto, nil
	case StrategyBucket:
		return StrategyBucket, nil
	case StrategyNearest:
		return StrategyNearest, nil
	}
	return "", fmt.Errorf("unknown alignment strategy %q", s)
}

// BucketIndex returns i with candles[i].Ts <= t < candles[i+1].Ts. A time
// before the first candle yields -1; at or after the last candle yields the
// last index. candles must be non-decreasing by Ts.
func BucketIndex(candles []types.Candle, t int64) int {
	if len(candles) == 0 || t < candles[0].Ts {
		return -1
	}
	// first candle strictly after t; the bucket is the one before it
	i := sort.Search(len(candles), func(i int) bool { return candles[i].Ts > t })
	return i - 1
}

// NearestIndex returns the index minimizing |candles[i].Ts - t|. Ties keep
// the earlier index. Works on unordered series.
func NearestIndex(candles []types.Candle, t int64) int {
	best, bestDist := -1, int64(0)
	for i, c := range candles {
		d := c.Ts - t
		if d < 0 {
			d = -d
		}
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Sorted reports whether candles are non-decreasing by Ts.
func Sorted(candles []types.Candle) bool {
	for i := 1; i < len(candles); i++ {
		if candles[i].Ts < candles[i-1].Ts {
			return false
		}
	}
	return true
}

// Index resolves t with the given strategy.
func Index(candles []types.Candle, t int64, s Strategy) int {
	switch s {
	case StrategyBucket:
		return BucketIndex(candles, t)
	case StrategyNearest:
		return NearestIndex(candles, t)
	}
	if Sorted(candles) {
		return BucketIndex(candles, t)
	}
	return NearestIndex(candles, t)
}

// Markers walks trades newest-first and emits at most limit markers. Trades
// with no usable timestamp or no matching candle are skipped.
func Markers(candles []types.Candle, trades []types.Trade, s Strategy, limit int) []types.Marker {
	if limit <= 0 {
		limit = DefaultMaxMarkers
	}
	if len(candles) == 0 || len(trades) == 0 {
		return []types.Marker{}
	}
	if s == StrategyAuto {
		if Sorted(candles) {
			s = StrategyBucket
		} else {
			s = StrategyNearest
		}
	}

	out := make([]types.Marker, 0, min(limit, len(trades)))
	for _, tr := range trades {
		if len(out) == limit {
			break
		}
		if !tr.TsValid {
			continue
		}
		i := Index(candles, tr.Ts, s)
		if i < 0 {
			continue
		}
		c := candles[i]
		out = append(out, types.Marker{
			CandleIndex: i,
			CandleTs:    c.Ts,
			Anchor:      c.Close,
			TradeTs:     tr.Ts,
			Side:        tr.Side,
			Symbol:      tr.Symbol,
			Price:       tr.Price,
			Quantity:    tr.Quantity,
			PnL:         tr.PnL,
		})
	}
	return out
}
