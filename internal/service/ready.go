package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"botview/internal/logger"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// WaitReady pings the service with exponential backoff until it answers,
// maxWait elapses or ctx ends. It gates startup only; ticks are never
// retried.
func WaitReady(ctx context.Context, p Pinger, maxWait time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = maxWait

	attempt := 0
	operation := func() error {
		attempt++
		if err := p.Ping(ctx); err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			logger.Warn(ctx, "Service not ready", "attempt", attempt, "error", err)
			return err
		}
		return nil
	}
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return err
	}
	logger.Info(ctx, "Service ready", "attempts", attempt)
	return nil
}
