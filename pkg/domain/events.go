package domain

import "context"

// EditorHooks defines callbacks for editor observability.
// Any field may be nil.
type EditorHooks struct {
	// OnCommand fires for every canvas command produced by a successful mutation.
	OnCommand func(context.Context, CanvasCommand)
	// OnRejected fires when an operation fails and the graph is left unchanged.
	OnRejected func(ctx context.Context, op string, err error)
	// OnSaved fires after the store accepted the document.
	OnSaved func(ctx context.Context, doc FlowDocument)
}
