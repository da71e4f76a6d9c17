package domain

// CanvasOp names a structural change on the rendering surface.
type CanvasOp string

const (
	CanvasClear      CanvasOp = "clear"
	CanvasAddNode    CanvasOp = "add_node"
	CanvasRemoveNode CanvasOp = "remove_node"
	CanvasMoveNode   CanvasOp = "move_node"
	CanvasBindStep   CanvasOp = "bind_step"
	CanvasAddEdge    CanvasOp = "add_edge"
	CanvasRemoveEdge CanvasOp = "remove_edge"
)

// CanvasCommand is emitted by the editor after a successful mutation.
// Node is set for node operations, Edge for edge operations.
type CanvasCommand struct {
	Op   CanvasOp   `json:"op"`
	Node *GraphNode `json:"node,omitempty"`
	Edge *Edge      `json:"edge,omitempty"`
}
