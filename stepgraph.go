package stepgraph

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/aretw0/stepgraph/internal/editor"
	"github.com/aretw0/stepgraph/internal/validator"
	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/aretw0/stepgraph/pkg/ports"
)

// Layout places loaded steps on the canvas.
type Layout = editor.Layout

// DefaultLayout is the layout used when none is configured.
var DefaultLayout = editor.DefaultLayout

// ErrNoStore is returned by Open and Save when the editor has no document store.
var ErrNoStore = errors.New("no document store configured")

// Editor is one editing session over a single flow document.
// It owns the graph between an explicit Open/LoadDocument and Save.
// Editor is not safe for concurrent use; see pkg/session for multi-session hosting.
type Editor struct {
	store        ports.DocumentStore
	graph        *editor.Graph
	surfaces     []ports.Surface
	hooks        domain.EditorHooks
	logger       *slog.Logger
	layout       *Layout
	requireSteps bool
	dirty        bool
}

// Option defines a functional option for configuring the Editor.
type Option func(*Editor)

// WithLogger sets a custom structured logger for the editor.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = logger
	}
}

// WithHooks registers observability hooks.
func WithHooks(hooks domain.EditorHooks) Option {
	return func(e *Editor) {
		e.hooks = hooks
	}
}

// WithSurface adds a rendering surface. It may be given more than once.
func WithSurface(s ports.Surface) Option {
	return func(e *Editor) {
		e.surfaces = append(e.surfaces, s)
	}
}

// WithLayout overrides the layout used when documents are loaded.
func WithLayout(l Layout) Option {
	return func(e *Editor) {
		e.layout = &l
	}
}

// WithRequireSteps makes loading a document without steps fail with domain.ErrEmptyDocument.
func WithRequireSteps() Option {
	return func(e *Editor) {
		e.requireSteps = true
	}
}

// New creates an editor with an empty canvas. The store may be nil for
// detached editing, in which case Open and Save fail with ErrNoStore.
func New(store ports.DocumentStore, opts ...Option) *Editor {
	e := &Editor{
		store: store,
		graph: editor.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e
}

// Name returns the name of the loaded flow.
func (e *Editor) Name() string { return e.graph.Name() }

// Dirty reports whether the graph changed since it was loaded or saved.
func (e *Editor) Dirty() bool { return e.dirty }

// Open fetches a document from the store and loads it.
func (e *Editor) Open(ctx context.Context, name string) error {
	if e.store == nil {
		return e.reject(ctx, "open", ErrNoStore)
	}
	doc, err := e.store.Get(ctx, name)
	if err != nil {
		return e.reject(ctx, "open", asStoreError("get", name, err))
	}
	return e.LoadDocument(ctx, doc)
}

// LoadDocument replaces the canvas with the given document.
func (e *Editor) LoadDocument(ctx context.Context, doc domain.FlowDocument) error {
	var opts []editor.LoadOption
	if e.requireSteps {
		opts = append(opts, editor.RequireSteps())
	}
	if e.layout != nil {
		opts = append(opts, editor.WithLayout(*e.layout))
	}
	if err := e.graph.Load(doc, opts...); err != nil {
		return e.reject(ctx, "load", err)
	}

	e.dirty = false
	e.logger.Debug("Document loaded", "flow", doc.Name, "steps", len(doc.Steps))

	e.emit(ctx, domain.CanvasCommand{Op: domain.CanvasClear})
	for _, n := range e.graph.Nodes() {
		e.emit(ctx, domain.CanvasCommand{Op: domain.CanvasAddNode, Node: &n})
	}
	for _, edge := range e.graph.Edges() {
		e.emit(ctx, domain.CanvasCommand{Op: domain.CanvasAddEdge, Edge: &edge})
	}
	return nil
}

// AddNode drops an unconnected palette placeholder on the canvas.
func (e *Editor) AddNode(ctx context.Context, kind domain.NodeKind, pos domain.Position) (domain.GraphNode, error) {
	n, err := e.graph.AddNode(kind, pos)
	if err != nil {
		return domain.GraphNode{}, e.reject(ctx, "add_node", err)
	}
	e.changed(ctx, domain.CanvasCommand{Op: domain.CanvasAddNode, Node: &n})
	return n, nil
}

// AddStep adds an unconnected node bound to the step.
func (e *Editor) AddStep(ctx context.Context, step domain.Step, pos domain.Position) (domain.GraphNode, error) {
	n, err := e.graph.AddStep(step, pos)
	if err != nil {
		return domain.GraphNode{}, e.reject(ctx, "add_step", err)
	}
	e.changed(ctx, domain.CanvasCommand{Op: domain.CanvasAddNode, Node: &n})
	return n, nil
}

// Connect links an output port to an input port.
func (e *Editor) Connect(ctx context.Context, from domain.NodeID, fromPort string, to domain.NodeID, toPort string) (domain.Edge, error) {
	edge, err := e.graph.Connect(from, fromPort, to, toPort)
	if err != nil {
		return domain.Edge{}, e.reject(ctx, "connect", err)
	}
	e.changed(ctx, domain.CanvasCommand{Op: domain.CanvasAddEdge, Edge: &edge})
	return edge, nil
}

// RemoveNode deletes a node and the edges touching it. It returns how many edges were removed.
func (e *Editor) RemoveNode(ctx context.Context, id domain.NodeID) (int, error) {
	node, ok := e.graph.Node(id)
	removed, err := e.graph.RemoveNode(id)
	if err != nil {
		return 0, e.reject(ctx, "remove_node", err)
	}

	cmds := make([]domain.CanvasCommand, 0, len(removed)+1)
	for _, edge := range removed {
		cmds = append(cmds, domain.CanvasCommand{Op: domain.CanvasRemoveEdge, Edge: &edge})
	}
	if ok {
		cmds = append(cmds, domain.CanvasCommand{Op: domain.CanvasRemoveNode, Node: &node})
	}
	e.changed(ctx, cmds...)
	return len(removed), nil
}

// RemoveEdge deletes a single connection.
func (e *Editor) RemoveEdge(ctx context.Context, id domain.EdgeID) error {
	edge, err := e.graph.RemoveEdge(id)
	if err != nil {
		return e.reject(ctx, "remove_edge", err)
	}
	e.changed(ctx, domain.CanvasCommand{Op: domain.CanvasRemoveEdge, Edge: &edge})
	return nil
}

// Move repositions a node. Positions have no effect on the saved document,
// so moving does not mark the editor dirty.
func (e *Editor) Move(ctx context.Context, id domain.NodeID, pos domain.Position) error {
	n, err := e.graph.Move(id, pos)
	if err != nil {
		return e.reject(ctx, "move_node", err)
	}
	e.emit(ctx, domain.CanvasCommand{Op: domain.CanvasMoveNode, Node: &n})
	return nil
}

// BindStep attaches step content to a node.
func (e *Editor) BindStep(ctx context.Context, id domain.NodeID, step domain.Step) (domain.GraphNode, error) {
	n, err := e.graph.BindStep(id, step)
	if err != nil {
		return domain.GraphNode{}, e.reject(ctx, "bind_step", err)
	}
	e.changed(ctx, domain.CanvasCommand{Op: domain.CanvasBindStep, Node: &n})
	return n, nil
}

// Node returns a copy of a node.
func (e *Editor) Node(id domain.NodeID) (domain.GraphNode, bool) { return e.graph.Node(id) }

// Nodes returns copies of all nodes in insertion order.
func (e *Editor) Nodes() []domain.GraphNode { return e.graph.Nodes() }

// Edges returns all edges in insertion order.
func (e *Editor) Edges() []domain.Edge { return e.graph.Edges() }

// Document collapses the graph into its step list without saving it.
func (e *Editor) Document() (domain.FlowDocument, error) {
	return e.graph.ToDocument()
}

// Save serializes, validates and writes the document in a single store round trip.
// Orders that do not strictly increase are renumbered from 1 before validation.
// It never retries. On failure the graph is left untouched so the caller may retry.
func (e *Editor) Save(ctx context.Context) error {
	if e.store == nil {
		return e.reject(ctx, "save", ErrNoStore)
	}

	doc, err := e.graph.ToDocument()
	if err != nil {
		return e.reject(ctx, "save", err)
	}
	doc = editor.Normalize(doc)
	if err := validator.ValidateDocument(doc); err != nil {
		return e.reject(ctx, "save", err)
	}

	if err := e.store.Save(ctx, doc); err != nil {
		return e.reject(ctx, "save", asStoreError("save", doc.Name, err))
	}

	e.dirty = false
	e.logger.Info("Document saved", "flow", doc.Name, "steps", len(doc.Steps))
	if e.hooks.OnSaved != nil {
		e.hooks.OnSaved(ctx, doc)
	}
	return nil
}

func (e *Editor) changed(ctx context.Context, cmds ...domain.CanvasCommand) {
	e.dirty = true
	for _, cmd := range cmds {
		e.emit(ctx, cmd)
	}
}

func (e *Editor) emit(ctx context.Context, cmd domain.CanvasCommand) {
	for _, s := range e.surfaces {
		s.Apply(ctx, cmd)
	}
	if e.hooks.OnCommand != nil {
		e.hooks.OnCommand(ctx, cmd)
	}
}

func (e *Editor) reject(ctx context.Context, op string, err error) error {
	e.logger.Warn("Operation rejected", "op", op, "flow", e.graph.Name(), "err", err)
	if e.hooks.OnRejected != nil {
		e.hooks.OnRejected(ctx, op, err)
	}
	return err
}

// asStoreError wraps a store failure unless the adapter already reported one.
func asStoreError(op, name string, err error) error {
	var se *domain.StoreError
	if errors.As(err, &se) {
		return err
	}
	return &domain.StoreError{Op: op, Document: name, Err: err}
}
