package editor

import (
	"fmt"
	"slices"

	"github.com/aretw0/stepgraph/pkg/domain"
)

// Layout places loaded steps along a horizontal axis.
type Layout struct {
	Origin  domain.Position
	Spacing float64
}

// DefaultLayout matches the spacing of the canvas palette.
var DefaultLayout = Layout{Origin: domain.Position{X: 100, Y: 100}, Spacing: 250}

// At returns the position of the i-th (0-based) loaded step.
func (l Layout) At(i int) domain.Position {
	return domain.Position{X: l.Origin.X + float64(i)*l.Spacing, Y: l.Origin.Y}
}

// LoadOption configures a single Load call.
type LoadOption func(*loadConfig)

type loadConfig struct {
	requireSteps bool
	layout       *Layout
}

// RequireSteps makes Load reject a document without steps.
func RequireSteps() LoadOption {
	return func(c *loadConfig) { c.requireSteps = true }
}

// WithLayout overrides the graph layout for this load.
func WithLayout(l Layout) LoadOption {
	return func(c *loadConfig) { c.layout = &l }
}

// Graph is the in-memory node/edge model of one flow.
// Every mutating method either succeeds or leaves the graph unchanged.
// Graph is not safe for concurrent use.
type Graph struct {
	name        string
	description string

	nodes map[domain.NodeID]*domain.GraphNode
	order []domain.NodeID // insertion order
	edges []domain.Edge   // insertion order

	nextNode domain.NodeID
	nextEdge domain.EdgeID
	layout   Layout

	// edited is set by any mutation that can change the step list.
	// An unedited graph gives back the loaded document unchanged.
	edited   bool
	nilSteps bool
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[domain.NodeID]*domain.GraphNode),
		nextNode: 1,
		nextEdge: 1,
		layout:   DefaultLayout,
	}
}

// Name returns the name of the loaded document.
func (g *Graph) Name() string { return g.name }

// Load replaces the whole graph with one node per step, chained in document order.
func (g *Graph) Load(doc domain.FlowDocument, opts ...LoadOption) error {
	cfg := loadConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.requireSteps && len(doc.Steps) == 0 {
		return fmt.Errorf("load %q: %w", doc.Name, domain.ErrEmptyDocument)
	}

	seen := make(map[string]struct{}, len(doc.Steps))
	for _, s := range doc.Steps {
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("load %q: %w: %q", doc.Name, domain.ErrDuplicateStep, s.ID)
		}
		seen[s.ID] = struct{}{}
	}

	layout := g.layout
	if cfg.layout != nil {
		layout = *cfg.layout
	}

	// Build into a fresh graph so a failure never leaves a half-loaded canvas.
	next := New()
	next.layout = layout
	next.name = doc.Name
	next.description = doc.Description
	next.nilSteps = doc.Steps == nil

	var prev domain.NodeID
	for i, s := range doc.Steps {
		step := s.Clone()
		id := next.insertNode(domain.GraphNode{
			Kind:     domain.KindStep,
			Position: layout.At(i),
			Step:     &step,
		})
		if i > 0 {
			next.insertEdge(prev, domain.DefaultOutput, id, domain.DefaultInput)
		}
		prev = id
	}

	*g = *next
	return nil
}

// AddNode inserts an unconnected palette placeholder.
func (g *Graph) AddNode(kind domain.NodeKind, pos domain.Position) (domain.GraphNode, error) {
	if !slices.Contains(domain.PaletteKinds, kind) {
		return domain.GraphNode{}, fmt.Errorf("add node: %w: %q", domain.ErrUnknownKind, kind)
	}
	id := g.insertNode(domain.GraphNode{Kind: kind, Position: pos})
	g.edited = true
	return g.nodes[id].Clone(), nil
}

// AddStep inserts an unconnected node bound to the step.
func (g *Graph) AddStep(step domain.Step, pos domain.Position) (domain.GraphNode, error) {
	if err := g.checkStepID(0, step.ID); err != nil {
		return domain.GraphNode{}, fmt.Errorf("add step: %w", err)
	}
	s := step.Clone()
	id := g.insertNode(domain.GraphNode{Kind: domain.KindStep, Position: pos, Step: &s})
	g.edited = true
	return g.nodes[id].Clone(), nil
}

// Connect adds a directed edge from an output port to an input port.
func (g *Graph) Connect(from domain.NodeID, fromPort string, to domain.NodeID, toPort string) (domain.Edge, error) {
	src, ok := g.nodes[from]
	if !ok {
		return domain.Edge{}, fmt.Errorf("connect: %w: %d", domain.ErrNodeNotFound, from)
	}
	dst, ok := g.nodes[to]
	if !ok {
		return domain.Edge{}, fmt.Errorf("connect: %w: %d", domain.ErrNodeNotFound, to)
	}
	if !src.Kind.HasOutput(fromPort) {
		return domain.Edge{}, fmt.Errorf("connect: %w: %s has no output %q", domain.ErrUnknownPort, src.Kind, fromPort)
	}
	if !dst.Kind.HasInput(toPort) {
		return domain.Edge{}, fmt.Errorf("connect: %w: %s has no input %q", domain.ErrUnknownPort, dst.Kind, toPort)
	}
	if from == to {
		return domain.Edge{}, fmt.Errorf("connect %d: %w", from, domain.ErrSelfLoop)
	}

	candidate := domain.Edge{From: from, FromPort: fromPort, To: to, ToPort: toPort}
	for _, e := range g.edges {
		if e.SameEnds(candidate) {
			return domain.Edge{}, fmt.Errorf("connect %d->%d: %w", from, to, domain.ErrDuplicateEdge)
		}
	}
	for _, e := range g.edges {
		if e.From == from && e.FromPort == fromPort {
			return domain.Edge{}, fmt.Errorf("connect %d.%s: %w (edge %d)", from, fromPort, domain.ErrPortInUse, e.ID)
		}
	}
	if g.reachable(to, from) {
		return domain.Edge{}, fmt.Errorf("connect %d->%d: %w", from, to, domain.ErrCycleDetected)
	}

	g.edited = true
	return g.insertEdge(from, fromPort, to, toPort), nil
}

// RemoveNode deletes the node and exactly the edges touching it.
// It returns the removed edges.
func (g *Graph) RemoveNode(id domain.NodeID) ([]domain.Edge, error) {
	if _, ok := g.nodes[id]; !ok {
		return nil, fmt.Errorf("remove node: %w: %d", domain.ErrNodeNotFound, id)
	}

	var removed []domain.Edge
	kept := g.edges[:0:0]
	for _, e := range g.edges {
		if e.From == id || e.To == id {
			removed = append(removed, e)
			continue
		}
		kept = append(kept, e)
	}

	g.edges = kept
	delete(g.nodes, id)
	g.order = slices.DeleteFunc(g.order, func(n domain.NodeID) bool { return n == id })
	g.edited = true
	return removed, nil
}

// RemoveEdge deletes a single edge.
func (g *Graph) RemoveEdge(id domain.EdgeID) (domain.Edge, error) {
	i := slices.IndexFunc(g.edges, func(e domain.Edge) bool { return e.ID == id })
	if i < 0 {
		return domain.Edge{}, fmt.Errorf("remove edge: %w: %d", domain.ErrEdgeNotFound, id)
	}
	e := g.edges[i]
	g.edges = slices.Delete(g.edges, i, i+1)
	g.edited = true
	return e, nil
}

// Move updates the canvas position of a node.
func (g *Graph) Move(id domain.NodeID, pos domain.Position) (domain.GraphNode, error) {
	n, ok := g.nodes[id]
	if !ok {
		return domain.GraphNode{}, fmt.Errorf("move: %w: %d", domain.ErrNodeNotFound, id)
	}
	n.Position = pos
	return n.Clone(), nil
}

// BindStep attaches step content to a node, turning it into a step node.
// Binding is rejected when an existing edge uses a port the step kind lacks.
func (g *Graph) BindStep(id domain.NodeID, step domain.Step) (domain.GraphNode, error) {
	n, ok := g.nodes[id]
	if !ok {
		return domain.GraphNode{}, fmt.Errorf("bind step: %w: %d", domain.ErrNodeNotFound, id)
	}
	if err := g.checkStepID(id, step.ID); err != nil {
		return domain.GraphNode{}, fmt.Errorf("bind step: %w", err)
	}
	for _, e := range g.edges {
		if e.From == id && !domain.KindStep.HasOutput(e.FromPort) {
			return domain.GraphNode{}, fmt.Errorf("bind step: %w: edge %d uses %q", domain.ErrUnknownPort, e.ID, e.FromPort)
		}
		if e.To == id && !domain.KindStep.HasInput(e.ToPort) {
			return domain.GraphNode{}, fmt.Errorf("bind step: %w: edge %d uses %q", domain.ErrUnknownPort, e.ID, e.ToPort)
		}
	}

	s := step.Clone()
	n.Kind = domain.KindStep
	n.Step = &s
	g.edited = true
	return n.Clone(), nil
}

// Node returns a copy of the node.
func (g *Graph) Node(id domain.NodeID) (domain.GraphNode, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return domain.GraphNode{}, false
	}
	return n.Clone(), true
}

// Nodes returns copies of all nodes in insertion order.
func (g *Graph) Nodes() []domain.GraphNode {
	out := make([]domain.GraphNode, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id].Clone())
	}
	return out
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []domain.Edge {
	return slices.Clone(g.edges)
}

// ToDocument collapses the graph into the linear step sequence.
// A graph that was only loaded (and perhaps moved) yields the loaded document as is.
// After edits, orders are kept when strictly increasing along the path, otherwise renumbered from 1.
func (g *Graph) ToDocument() (domain.FlowDocument, error) {
	doc := domain.FlowDocument{Name: g.name, Description: g.description}
	if !g.nilSteps || g.edited {
		doc.Steps = []domain.Step{}
	}
	if len(g.nodes) == 0 {
		return doc, nil
	}

	incoming := make(map[domain.NodeID]int, len(g.nodes))
	outgoing := make(map[domain.NodeID][]domain.Edge, len(g.nodes))
	for _, e := range g.edges {
		incoming[e.To]++
		outgoing[e.From] = append(outgoing[e.From], e)
	}

	var roots []domain.NodeID
	for _, id := range g.order {
		if incoming[id] == 0 {
			roots = append(roots, id)
		}
	}
	switch {
	case len(roots) == 0:
		return domain.FlowDocument{}, fmt.Errorf("to document: %w: no start node", domain.ErrCycleDetected)
	case len(roots) > 1:
		return domain.FlowDocument{}, fmt.Errorf("to document: %w: %v", domain.ErrMultipleRoots, roots)
	}

	visited := make(map[domain.NodeID]bool, len(g.nodes))
	cur := roots[0]
	for {
		if visited[cur] {
			return domain.FlowDocument{}, fmt.Errorf("to document: %w at node %d", domain.ErrCycleDetected, cur)
		}
		visited[cur] = true

		n := g.nodes[cur]
		out := outgoing[cur]
		if len(out) > 1 {
			return domain.FlowDocument{}, fmt.Errorf("to document: %w: node %d has %d outgoing edges", domain.ErrAmbiguousBranch, cur, len(out))
		}
		if !n.Bound() {
			return domain.FlowDocument{}, fmt.Errorf("to document: %w: node %d (%s)", domain.ErrUnboundNode, cur, n.Kind)
		}
		doc.Steps = append(doc.Steps, n.Step.Clone())
		if len(out) == 0 {
			break
		}
		cur = out[0].To
	}

	if len(visited) < len(g.nodes) {
		var missing []domain.NodeID
		for _, id := range g.order {
			if !visited[id] {
				missing = append(missing, id)
			}
		}
		return domain.FlowDocument{}, fmt.Errorf("to document: %w: %v", domain.ErrDisconnected, missing)
	}

	if g.edited {
		return Normalize(doc), nil
	}
	return doc, nil
}

// Normalize returns doc in storable form: a non-nil step list with strictly
// increasing orders. Orders that already increase are kept; otherwise steps
// are renumbered from 1. doc is not modified.
func Normalize(doc domain.FlowDocument) domain.FlowDocument {
	out := doc.Clone()
	if out.Steps == nil {
		out.Steps = []domain.Step{}
	}
	if !increasing(out.Steps) {
		for i := range out.Steps {
			out.Steps[i].Order = i + 1
		}
	}
	return out
}

func increasing(steps []domain.Step) bool {
	for i := 1; i < len(steps); i++ {
		if steps[i].Order <= steps[i-1].Order {
			return false
		}
	}
	return true
}

func (g *Graph) insertNode(n domain.GraphNode) domain.NodeID {
	n.ID = g.nextNode
	g.nextNode++
	g.nodes[n.ID] = &n
	g.order = append(g.order, n.ID)
	return n.ID
}

func (g *Graph) insertEdge(from domain.NodeID, fromPort string, to domain.NodeID, toPort string) domain.Edge {
	e := domain.Edge{ID: g.nextEdge, From: from, FromPort: fromPort, To: to, ToPort: toPort}
	g.nextEdge++
	g.edges = append(g.edges, e)
	return e
}

// reachable reports whether target can be reached from start by following edges.
func (g *Graph) reachable(start, target domain.NodeID) bool {
	visited := make(map[domain.NodeID]bool)
	stack := []domain.NodeID{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == target {
			return true
		}
		if visited[cur] {
			continue
		}
		visited[cur] = true
		for _, e := range g.edges {
			if e.From == cur && !visited[e.To] {
				stack = append(stack, e.To)
			}
		}
	}
	return false
}

// checkStepID rejects an empty step ID or one already bound to a node other than self.
func (g *Graph) checkStepID(self domain.NodeID, stepID string) error {
	if stepID == "" {
		return fmt.Errorf("%w: empty step id", domain.ErrInvalidStep)
	}
	for _, id := range g.order {
		n := g.nodes[id]
		if id != self && n.Bound() && n.Step.ID == stepID {
			return fmt.Errorf("%w: %q is bound to node %d", domain.ErrDuplicateStep, stepID, id)
		}
	}
	return nil
}
