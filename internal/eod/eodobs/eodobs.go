package eodobs

import (
	"context"
	"time"

	"botview/internal/interfaces"
	"botview/internal/logger"
	"botview/internal/trace"
)

type observableEodSummarizer struct {
	summarizer interfaces.EodSummarizer
}

var _ interfaces.EodSummarizer = (*observableEodSummarizer)(nil)

func Wrap(summarizer interfaces.EodSummarizer) interfaces.EodSummarizer {
	return &observableEodSummarizer{
		summarizer: summarizer,
	}
}

func (oes *observableEodSummarizer) SummarizeDay(t time.Time) (string, error) {
	ctx, span := trace.StartSpan(context.Background(), "eod.SummarizeDay")
	defer span.End()

	day := t.UTC().Format("2006-01-02")
	logger.InfoSkip(ctx, 1, "Starting session summary", "date", day)

	csvPath, err := oes.summarizer.SummarizeDay(t)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Session summary failed", err, "date", day)
		return "", err
	}

	if csvPath == "" {
		logger.InfoSkip(ctx, 1, "No journal entries to summarize", "date", day)
		return "", nil
	}

	logger.InfoSkip(ctx, 1, "Session summary written", "date", day, "csv_path", csvPath)
	return csvPath, nil
}

func (oes *observableEodSummarizer) SummarizeToday() (string, error) {
	ctx, span := trace.StartSpan(context.Background(), "eod.SummarizeToday")
	defer span.End()

	csvPath, err := oes.summarizer.SummarizeToday()
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Today's session summary failed", err)
		return "", err
	}

	logger.InfoSkip(ctx, 1, "Today's session summary done", "csv_path", csvPath)
	return csvPath, nil
}
