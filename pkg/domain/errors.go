package domain

import (
	"errors"
	"fmt"
)

// Graph mutation errors. The rejected operation leaves the graph unchanged.
var (
	// ErrEmptyDocument is returned when a caller requires at least one step and the document has none.
	ErrEmptyDocument = errors.New("empty document")

	// ErrDuplicateEdge is returned when the identical (from,port)->(to,port) edge already exists.
	ErrDuplicateEdge = errors.New("duplicate edge")

	// ErrCycleDetected is returned when a connection would make the flow cyclic.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrSelfLoop is a cycle of length one. It matches ErrCycleDetected with errors.Is.
	ErrSelfLoop = fmt.Errorf("%w: self-loop", ErrCycleDetected)

	ErrNodeNotFound  = errors.New("node not found")
	ErrEdgeNotFound  = errors.New("edge not found")
	ErrUnknownPort   = errors.New("unknown port")
	ErrPortInUse     = errors.New("output port already connected")
	ErrDuplicateStep = errors.New("duplicate step id")
	ErrUnknownKind   = errors.New("unknown node kind")
)

// Serialization errors returned when the graph cannot collapse into a step list.
var (
	// ErrMultipleRoots is returned when more than one node has no incoming edge.
	ErrMultipleRoots = errors.New("multiple roots")

	// ErrDisconnected is returned when some node is unreachable from the root.
	ErrDisconnected = errors.New("disconnected node")

	// ErrAmbiguousBranch is returned when a node on the path has more than one outgoing edge.
	ErrAmbiguousBranch = errors.New("ambiguous branch")

	// ErrUnboundNode is returned when a palette placeholder without step content is on the path.
	ErrUnboundNode = errors.New("node is not bound to a step")
)

// ErrInvalidStep is returned when a step fails validation before save.
var ErrInvalidStep = errors.New("invalid step")

// ErrDocumentNotFound is returned when a flow document cannot be found in the store.
var ErrDocumentNotFound = errors.New("document not found")

// ErrSessionNotFound is returned when an editing session ID is unknown.
var ErrSessionNotFound = errors.New("session not found")

// ErrStore is matched by every StoreError.
var ErrStore = errors.New("store error")

// StoreError reports a failed round trip to the document store.
type StoreError struct {
	Op       string // "get" or "save"
	Document string
	Err      error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Document, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is reports ErrStore as a match so callers can branch on the kind.
func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}
