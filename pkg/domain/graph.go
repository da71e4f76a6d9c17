package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// NodeKind classifies a canvas node.
type NodeKind string

const (
	KindMessage   NodeKind = "message"
	KindInput     NodeKind = "input"
	KindCondition NodeKind = "condition"
	KindAction    NodeKind = "action"
	KindTransfer  NodeKind = "transfer"
	KindStep      NodeKind = "step"
)

// PaletteKinds are the placeholder kinds a user can drop on the canvas.
var PaletteKinds = []NodeKind{KindMessage, KindInput, KindCondition, KindAction, KindTransfer}

// ParseNodeKind validates a kind name.
func ParseNodeKind(s string) (NodeKind, error) {
	k := NodeKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindMessage, KindInput, KindCondition, KindAction, KindTransfer, KindStep:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Ports returns how many input and output ports a node of this kind has.
func (k NodeKind) Ports() (inputs, outputs int) {
	switch k {
	case KindCondition:
		return 1, 2
	case KindTransfer:
		return 1, 0
	default:
		return 1, 1
	}
}

// Default port names used for linear step chains.
const (
	DefaultOutput = "output_1"
	DefaultInput  = "input_1"
)

// InputPort returns the name of the n-th (1-based) input port.
func InputPort(n int) string { return "input_" + strconv.Itoa(n) }

// OutputPort returns the name of the n-th (1-based) output port.
func OutputPort(n int) string { return "output_" + strconv.Itoa(n) }

// HasInput reports whether the kind declares the named input port.
func (k NodeKind) HasInput(port string) bool {
	in, _ := k.Ports()
	return portIndex(port, "input_", in)
}

// HasOutput reports whether the kind declares the named output port.
func (k NodeKind) HasOutput(port string) bool {
	_, out := k.Ports()
	return portIndex(port, "output_", out)
}

func portIndex(port, prefix string, count int) bool {
	rest, ok := strings.CutPrefix(port, prefix)
	if !ok {
		return false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return false
	}
	// "output_01" is not a port name.
	return n >= 1 && n <= count && strconv.Itoa(n) == rest
}

// Position is a canvas coordinate. It has no effect on flow behavior.
type Position struct {
	X float64 `json:"x" yaml:"x" mapstructure:"x"`
	Y float64 `json:"y" yaml:"y" mapstructure:"y"`
}

// NodeID identifies a node on the canvas. IDs are never reused within a graph.
type NodeID int

// EdgeID identifies an edge on the canvas.
type EdgeID int

// GraphNode is a canvas node. Step is set only when Kind is KindStep.
type GraphNode struct {
	ID       NodeID   `json:"id"`
	Position Position `json:"position"`
	Kind     NodeKind `json:"kind"`
	Step     *Step    `json:"step,omitempty"`
}

// Bound reports whether the node carries step content.
func (n GraphNode) Bound() bool {
	return n.Kind == KindStep && n.Step != nil
}

// Label returns the display label of the node.
func (n GraphNode) Label() string {
	if n.Bound() {
		return n.Step.ID
	}
	return string(n.Kind)
}

// Clone returns a deep copy of the node.
func (n GraphNode) Clone() GraphNode {
	if n.Step != nil {
		s := n.Step.Clone()
		n.Step = &s
	}
	return n
}

// Edge is a directed connection from an output port to an input port.
type Edge struct {
	ID       EdgeID `json:"id"`
	From     NodeID `json:"from"`
	FromPort string `json:"from_port"`
	To       NodeID `json:"to"`
	ToPort   string `json:"to_port"`
}

// SameEnds reports whether both edges join the same ports.
func (e Edge) SameEnds(o Edge) bool {
	return e.From == o.From && e.FromPort == o.FromPort && e.To == o.To && e.ToPort == o.ToPort
}
