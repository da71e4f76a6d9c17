package ports

import (
	"context"

	"github.com/aretw0/stepgraph/pkg/domain"
)

// Surface is a rendering collaborator, typically a drag-and-drop canvas.
// Apply must not block the editor for long; slow surfaces should buffer.
type Surface interface {
	Apply(ctx context.Context, cmd domain.CanvasCommand)
}

// SurfaceFunc adapts a function to the Surface interface.
type SurfaceFunc func(ctx context.Context, cmd domain.CanvasCommand)

// Apply calls f(ctx, cmd).
func (f SurfaceFunc) Apply(ctx context.Context, cmd domain.CanvasCommand) { f(ctx, cmd) }
