package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// NewRenderer returns a function that renders markdown using glamour.
// A width of zero keeps glamour's default word wrap.
func NewRenderer(width int) func(string) (string, error) {
	opts := []glamour.TermRendererOption{
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)

	return func(markdown string) (string, error) {
		if err != nil {
			return markdown, err
		}
		return r.Render(markdown)
	}
}

// IsInteractive reports whether stdout is attached to a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// TerminalWidth returns the stdout width, or 0 when it cannot be determined.
func TerminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return w
}

// DocumentMarkdown describes a flow document as markdown.
func DocumentMarkdown(doc domain.FlowDocument) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", doc.Name)
	if doc.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", doc.Description)
	}
	if len(doc.Steps) == 0 {
		sb.WriteString("_No steps._\n")
		return sb.String()
	}

	for i, s := range doc.Steps {
		fmt.Fprintf(&sb, "%d. **%s** `%s`", i+1, s.ID, s.MessageType())
		if s.InputType() != domain.InputNone {
			fmt.Fprintf(&sb, " / `%s`", s.InputType())
		}
		if s.Retry != nil {
			fmt.Fprintf(&sb, " (retries: %d)", s.Retry.MaxRetries)
		}
		fmt.Fprintf(&sb, "\n   %s\n", s.Summary())

		switch in := s.Input.(type) {
		case domain.OptionsInput:
			for _, o := range in.Options {
				fmt.Fprintf(&sb, "   - %s\n", o)
			}
		case domain.ButtonsInput:
			for _, b := range in.Buttons {
				fmt.Fprintf(&sb, "   - [%s]\n", b.Title)
			}
		case domain.FlowInput:
			fmt.Fprintf(&sb, "   - flow `%s`, screen `%s`, button \"%s\"\n", in.Flow, in.Screen, in.CTA)
			for _, m := range in.FieldMapping {
				fmt.Fprintf(&sb, "   - %s → %s\n", m.FlowField, m.Variable)
			}
		}
	}
	return sb.String()
}
