package main

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/joho/godotenv"

	"botview/internal/engine"
	"botview/internal/engine/engineobs"
	"botview/internal/eod"
	"botview/internal/eod/eodobs"
	"botview/internal/interfaces"
	"botview/internal/logger"
	"botview/internal/service"
	"botview/internal/service/serviceobs"
	"botview/internal/store"
	"botview/internal/trace"
	"botview/internal/tradelog"
	"botview/internal/types"
)

// initializeSystem initializes logger, tracer, and the session summarizer
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	eod.SetDefaultSummarizer(eodobs.Wrap(eod.NewSummarizer()))
	return nil
}

func loadConfig(ctx context.Context) (*store.Config, error) {
	path := os.Getenv("BOTVIEW_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// prepareJournal points the step journal at the configured directory and
// compresses days past retention.
func prepareJournal(ctx context.Context, cfg *store.Config) {
	tradelog.SetDir(cfg.Journal.Dir)
	if cfg.Journal.RetentionDays <= 0 {
		return
	}
	if err := tradelog.CompressOlder(cfg.Journal.RetentionDays); err != nil {
		logger.Warn(ctx, "Failed to compress old journals", "error", err)
	}
}

// initializeService builds the service client and waits for it to answer.
// Startup continues when it never does: every tick surfaces the failure.
func initializeService(ctx context.Context, cfg *store.Config) interfaces.Service {
	svc := serviceobs.Wrap(service.New(cfg.Service.URL, cfg.ServiceTimeout()))

	if err := service.WaitReady(ctx, svc, cfg.ReadyWait()); err != nil {
		logger.Warn(ctx, "Trading service not reachable, continuing", "url", cfg.Service.URL, "error", err)
	}
	return svc
}

func initializeEngine(ctx context.Context, cfg *store.Config, svc interfaces.Service) (interfaces.Engine, error) {
	eng, err := engine.New(cfg, svc)
	if err != nil {
		return nil, err
	}
	eng = engineobs.Wrap(eng)

	if err := eng.Open(ctx); err != nil {
		logger.Warn(ctx, "Initial load incomplete", "error", err)
	}
	return eng, nil
}

// watchTrainingFinished writes the session summary each time a replay runs
// to the end of its dataset.
func watchTrainingFinished(eng interfaces.Engine) (cancel func()) {
	var finished atomic.Bool
	return eng.Subscribe(func(v types.View) {
		done := v.Mode == types.ModeTraining && !v.Running && v.Status == engine.StatusTrainingFinished
		if prev := finished.Swap(done); done && !prev {
			go func() { _, _ = eod.SummarizeToday() }()
		}
	})
}
