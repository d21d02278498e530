package converter

import (
	"context"
	"errors"
)

// ErrInvalidInput is returned (possibly wrapped) by an Engine when the SVG
// itself cannot be converted. Any other error is treated as an engine fault.
var ErrInvalidInput = errors.New("invalid svg input")

// Engine turns SVG text into G-code text. Implementations must honour ctx
// cancellation, as conversions may be slow.
type Engine interface {
	Convert(ctx context.Context, svg string) (string, error)
}

// EngineFunc adapts a plain function to the Engine interface.
type EngineFunc func(ctx context.Context, svg string) (string, error)

// Convert calls f(ctx, svg).
func (f EngineFunc) Convert(ctx context.Context, svg string) (string, error) {
	return f(ctx, svg)
}
