package interfaces

import (
	"context"

	"botview/internal/types"
)

// Engine is the control surface of the client.
type Engine interface {
	Open(ctx context.Context) error
	SelectMode(ctx context.Context, mode types.Mode) error
	Start(ctx context.Context) error
	Pause(ctx context.Context)
	Toggle(ctx context.Context) error
	Reset(ctx context.Context) error
	SetSymbol(ctx context.Context, symbol string) error
	SetTrainingLimit(ctx context.Context, limit int) error
	Symbols(ctx context.Context) ([]string, error)
	View() types.View
	Subscribe(fn func(types.View)) (cancel func())
	Close(ctx context.Context) error
}
