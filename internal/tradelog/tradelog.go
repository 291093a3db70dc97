// Package tradelog is the step journal: one JSON line per tick outcome,
// one file per UTC day.
package tradelog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	mu  sync.Mutex
	dir string
)

// Entry is one journal line. Equity and PnL are what the client showed
// after the tick; PnL is null while no baseline exists.
type Entry struct {
	Time           string              `json:"time"`
	Mode           string              `json:"mode"`
	Symbol         string              `json:"symbol"`
	AccountID      int64               `json:"accountId"`
	SessionID      string              `json:"sessionId,omitempty"`
	Index          int                 `json:"index,omitempty"`
	NextIndex      int                 `json:"nextIndex,omitempty"`
	Signal         string              `json:"signal,omitempty"`
	TradesExecuted int                 `json:"tradesExecuted"`
	Done           bool                `json:"done,omitempty"`
	Equity         decimal.Decimal     `json:"equity"`
	PnL            decimal.NullDecimal `json:"pnl"`
	Status         string              `json:"status,omitempty"`
	Error          string              `json:"error,omitempty"`
}

// SetDir points the journal at d. BOTVIEW_LOG_DIR is used when d is empty.
func SetDir(d string) {
	mu.Lock()
	defer mu.Unlock()
	dir = d
}

func logDir() string {
	if dir != "" {
		return dir
	}
	if v := os.Getenv("BOTVIEW_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

// Dir returns the directory the journal writes to.
func Dir() string {
	mu.Lock()
	defer mu.Unlock()
	return logDir()
}

func dailyFilepath(t time.Time) string {
	return filepath.Join(logDir(), "journal", t.UTC().Format("2006-01-02")+".jsonl")
}

// Path returns the journal file for the UTC day containing t.
func Path(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()
	return dailyFilepath(t)
}

func Append(e Entry) error {
	mu.Lock()
	defer mu.Unlock()
	now := time.Now().UTC()
	e.Time = now.Format(timeLayout)
	p := dailyFilepath(now)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// ParseTime reads an Entry.Time value.
func ParseTime(s string) (time.Time, error) {
	return time.ParseInLocation(timeLayout, s, time.UTC)
}

// CompressOlder gzips journal files not modified within retentionDays and
// removes the originals.
func CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	root := filepath.Join(Dir(), "journal")
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".jsonl" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		// already compressed by an earlier run
		if _, err := os.Stat(gz); err == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err != nil {
			_ = os.Remove(gz)
			return nil
		}
		_ = os.Remove(p)
		return nil
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		_ = out.Close()
		return err
	}
	if err := gw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
