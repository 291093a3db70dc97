package eod

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"botview/internal/tradelog"
)

type eodSummarizer struct{}

// SummarizeDay folds the day's step journal into one CSV row per session.
// An empty or missing journal yields "" and no file.
func (s *eodSummarizer) SummarizeDay(t time.Time) (string, error) {
	rows, err := aggregate(tradelog.Path(t))
	if err != nil || len(rows) == 0 {
		return "", err
	}

	outPath := eodCSVPath(t)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	headers := []string{"mode", "session_id", "symbol", "steps", "failures", "trades_executed", "first_index", "last_index", "finished", "first_equity", "last_equity", "last_pnl"}
	if err := w.Write(headers); err != nil {
		return "", err
	}

	var steps, failures, trades int
	for _, r := range rows {
		pnl := ""
		if r.LastPnL.Valid {
			pnl = r.LastPnL.Decimal.StringFixed(2)
		}
		rec := []string{
			r.Mode, r.SessionID, r.Symbol,
			strconv.Itoa(r.Steps), strconv.Itoa(r.Failures), strconv.Itoa(r.TradesExecuted),
			strconv.Itoa(r.FirstIndex), strconv.Itoa(r.LastIndex),
			strconv.FormatBool(r.Finished),
			r.FirstEquity.StringFixed(2), r.LastEquity.StringFixed(2), pnl,
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
		steps += r.Steps
		failures += r.Failures
		trades += r.TradesExecuted
	}
	_ = w.Write([]string{"TOTAL", "", "", strconv.Itoa(steps), strconv.Itoa(failures), strconv.Itoa(trades), "", "", "", "", "", ""})
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return outPath, nil
}

func (s *eodSummarizer) SummarizeToday() (string, error) { return s.SummarizeDay(utcNow()) }

func aggregate(path string) ([]*sessionRow, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	aggs := map[rowKey]*sessionRow{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e tradelog.Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		k := rowKey{mode: e.Mode, session: e.SessionID, symbol: e.Symbol}
		r := aggs[k]
		if r == nil {
			r = &sessionRow{Mode: e.Mode, SessionID: e.SessionID, Symbol: e.Symbol, FirstIndex: e.Index}
			aggs[k] = r
		}
		if e.Error != "" {
			r.Failures++
			continue
		}
		r.Steps++
		r.TradesExecuted += e.TradesExecuted
		if e.NextIndex > 0 {
			r.LastIndex = e.NextIndex
		}
		if e.Done {
			r.Finished = true
		}
		if !r.seenEquity {
			r.FirstEquity = e.Equity
			r.seenEquity = true
		}
		r.LastEquity = e.Equity
		r.LastPnL = e.PnL
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	rows := make([]*sessionRow, 0, len(aggs))
	for _, r := range aggs {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Mode != rows[j].Mode {
			return rows[i].Mode < rows[j].Mode
		}
		if rows[i].SessionID != rows[j].SessionID {
			return rows[i].SessionID < rows[j].SessionID
		}
		return rows[i].Symbol < rows[j].Symbol
	})
	return rows, nil
}
