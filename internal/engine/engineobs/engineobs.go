package engineobs

import (
	"context"
	"time"

	"botview/internal/interfaces"
	"botview/internal/logger"
	"botview/internal/trace"
	"botview/internal/types"
)

type observableEngine struct {
	engine interfaces.Engine
}

var _ interfaces.Engine = (*observableEngine)(nil)

func Wrap(eng interfaces.Engine) interfaces.Engine {
	return &observableEngine{
		engine: eng,
	}
}

// control runs one control operation inside a span and logs its outcome.
func control(ctx context.Context, name string, fn func(context.Context) error, args ...any) error {
	ctx, span := trace.StartSpan(ctx, "engine."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	args = append(args, "duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 2, "Engine "+name+" failed", err, args...)
		return err
	}
	logger.InfoSkip(ctx, 2, "Engine "+name+" completed", args...)
	return nil
}

func (oe *observableEngine) Open(ctx context.Context) error {
	return control(ctx, "Open", oe.engine.Open)
}

func (oe *observableEngine) SelectMode(ctx context.Context, mode types.Mode) error {
	return control(ctx, "SelectMode", func(ctx context.Context) error {
		return oe.engine.SelectMode(ctx, mode)
	}, "mode", mode)
}

func (oe *observableEngine) Start(ctx context.Context) error {
	return control(ctx, "Start", oe.engine.Start)
}

func (oe *observableEngine) Pause(ctx context.Context) {
	_ = control(ctx, "Pause", func(ctx context.Context) error {
		oe.engine.Pause(ctx)
		return nil
	})
}

func (oe *observableEngine) Toggle(ctx context.Context) error {
	return control(ctx, "Toggle", oe.engine.Toggle)
}

func (oe *observableEngine) Reset(ctx context.Context) error {
	return control(ctx, "Reset", oe.engine.Reset)
}

func (oe *observableEngine) SetSymbol(ctx context.Context, symbol string) error {
	return control(ctx, "SetSymbol", func(ctx context.Context) error {
		return oe.engine.SetSymbol(ctx, symbol)
	}, "symbol", symbol)
}

func (oe *observableEngine) SetTrainingLimit(ctx context.Context, limit int) error {
	return control(ctx, "SetTrainingLimit", func(ctx context.Context) error {
		return oe.engine.SetTrainingLimit(ctx, limit)
	}, "limit", limit)
}

func (oe *observableEngine) Symbols(ctx context.Context) ([]string, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Symbols")
	defer span.End()

	syms, err := oe.engine.Symbols(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Engine Symbols failed", err)
		return nil, err
	}
	logger.DebugSkip(ctx, 1, "Engine Symbols completed", "count", len(syms))
	return syms, nil
}

func (oe *observableEngine) View() types.View {
	return oe.engine.View()
}

func (oe *observableEngine) Subscribe(fn func(types.View)) (cancel func()) {
	return oe.engine.Subscribe(fn)
}

func (oe *observableEngine) Close(ctx context.Context) error {
	return control(ctx, "Close", oe.engine.Close)
}
