package eod

import (
	"path/filepath"
	"time"

	"botview/internal/tradelog"
)

func utcNow() time.Time {
	return time.Now().UTC()
}

func eodCSVPath(t time.Time) string {
	return filepath.Join(tradelog.Dir(), "eod", t.UTC().Format("2006-01-02")+".csv")
}
