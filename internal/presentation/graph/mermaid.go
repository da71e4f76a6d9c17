package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/stepgraph/pkg/domain"
)

// GraphOverlay contains editing state to visualize on the graph.
type GraphOverlay struct {
	Placeholders bool          // style unbound palette nodes
	Selected     domain.NodeID // 0 means none
}

const maxLabel = 32

// GenerateMermaid produces a Mermaid flowchart syntax string from canvas nodes and edges.
// It applies semantic styling:
// - Step with input: [/Parallelogram/]
// - Condition: {Rhombus}
// - Action: [[Subroutine]]
// - Transfer: ([Stadium])
// - Default: [Rectangle]
// It also applies overlay styles (Placeholder/Selected) if provided.
func GenerateMermaid(nodes []domain.GraphNode, edges []domain.Edge, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for _, node := range nodes {
		opener, closer := "[", "]"

		switch {
		case node.Kind == domain.KindStep && node.Step != nil && node.Step.Input != nil:
			opener, closer = "[/", "/]"
		case node.Kind == domain.KindCondition:
			opener, closer = "{", "}"
		case node.Kind == domain.KindAction:
			opener, closer = "[[", "]]"
		case node.Kind == domain.KindTransfer:
			opener, closer = "([", "])"
		}

		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", mermaidID(node.ID), opener, label(node), closer)
	}

	for _, e := range edges {
		arrow := "-->"
		if e.FromPort != domain.DefaultOutput {
			arrow = fmt.Sprintf("-- \"%s\" -->", e.FromPort)
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", mermaidID(e.From), arrow, mermaidID(e.To))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef placeholder fill:#f5f5f5,stroke:#9e9e9e,stroke-dasharray:5 5,color:#000;\n")
		sb.WriteString("    classDef selected fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		if overlay.Placeholders {
			for _, node := range nodes {
				if !node.Bound() {
					fmt.Fprintf(&sb, "    class %s placeholder;\n", mermaidID(node.ID))
				}
			}
		}
		if overlay.Selected != 0 {
			fmt.Fprintf(&sb, "    class %s selected;\n", mermaidID(overlay.Selected))
		}
	}

	return sb.String()
}

func mermaidID(id domain.NodeID) string {
	return fmt.Sprintf("n%d", id)
}

func label(node domain.GraphNode) string {
	if !node.Bound() {
		return fmt.Sprintf("%s #%d", node.Kind, node.ID)
	}
	text := node.Step.Summary()
	if r := []rune(text); len(r) > maxLabel {
		text = string(r[:maxLabel-1]) + "…"
	}
	// Escape double quotes for Mermaid labels
	text = strings.ReplaceAll(text, "\"", "'")
	return fmt.Sprintf("%s <br/> %s", node.Step.ID, text)
}
