package eod

import (
	"encoding/csv"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botview/internal/tradelog"
)

func TestSummarizeDayGroupsBySession(t *testing.T) {
	tradelog.SetDir(t.TempDir())
	t.Cleanup(func() { tradelog.SetDir("") })

	entries := []tradelog.Entry{
		{Mode: "TRAINING", Symbol: "BTCUSDT", SessionID: "a", Index: 21, NextIndex: 22, TradesExecuted: 1, Equity: decimal.NewFromInt(1000)},
		{Mode: "TRAINING", Symbol: "BTCUSDT", SessionID: "a", Index: 22, Error: "TRAINING step failed: boom"},
		{Mode: "TRAINING", Symbol: "BTCUSDT", SessionID: "a", Index: 22, NextIndex: 23, TradesExecuted: 2, Done: true,
			Equity: decimal.NewFromInt(1050), PnL: decimal.NewNullDecimal(decimal.NewFromInt(50))},
		{Mode: "TRADING", Symbol: "ETHUSDT", Status: "ok", Equity: decimal.NewFromInt(500)},
	}
	for _, e := range entries {
		require.NoError(t, tradelog.Append(e))
	}

	path, err := NewSummarizer().SummarizeDay(time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, recs, 4)
	assert.Equal(t, "mode", recs[0][0])

	trading := recs[1]
	assert.Equal(t, []string{"TRADING", "", "ETHUSDT", "1", "0", "0"}, trading[:6])
	assert.Equal(t, "", trading[11])

	training := recs[2]
	assert.Equal(t, []string{"TRAINING", "a", "BTCUSDT", "2", "1", "3", "21", "23", "true", "1000.00", "1050.00", "50.00"}, training)

	assert.Equal(t, []string{"TOTAL", "", "", "3", "1", "3"}, recs[3][:6])
}

func TestSummarizeDayWithoutJournal(t *testing.T) {
	tradelog.SetDir(t.TempDir())
	t.Cleanup(func() { tradelog.SetDir("") })

	path, err := NewSummarizer().SummarizeToday()
	require.NoError(t, err)
	assert.Empty(t, path)
}
