package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"botview/internal/eod"
	"botview/internal/handlers"
	"botview/internal/logger"
	"botview/internal/trace"
)

func main() {
	if err := initializeSystem(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx)
	if err != nil {
		os.Exit(1)
	}
	prepareJournal(ctx, cfg)

	svc := initializeService(ctx, cfg)
	eng, err := initializeEngine(ctx, cfg, svc)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to create engine", err)
		os.Exit(1)
	}

	hub := handlers.NewHub()
	go hub.Run(ctx)
	defer hub.Follow(eng)()
	defer watchTrainingFinished(eng)()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handlers.NewRouter(eng, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info(ctx, "Server starting", "listen", cfg.Listen, "service_url", cfg.Service.URL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorWithErr(ctx, "Server failed", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info(context.Background(), "Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "HTTP shutdown incomplete", "error", err)
	}
	if err := eng.Close(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "Engine close failed", "error", err)
	}
	_, _ = eod.SummarizeToday()
	_ = trace.Shutdown(shutdownCtx)
}
