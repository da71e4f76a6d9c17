package stepgraph

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aretw0/stepgraph/internal/presentation/graph"
	"github.com/aretw0/stepgraph/internal/presentation/tui"
	"github.com/aretw0/stepgraph/pkg/domain"
)

// Runner drives an Editor from a line-oriented command stream.
// This allows for easy testing and integration with different frontends (CLI, TUI, etc).
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Headless bool
	Renderer ContentRenderer
}

// ContentRenderer is a function that transforms markdown before outputting it.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)

// NewRunner creates a new Runner. Input and Output must be set before Run.
func NewRunner() *Runner {
	return &Runner{}
}

const runnerHelp = `Commands:
  nodes                              list nodes
  edges                              list edges
  add <kind> [x y]                   add a placeholder (message, input, condition, action, transfer)
  bind <node> <step_id> <text...>    give a node a text step
  connect <from> <to> [out] [in]     connect output_1 -> input_1 unless ports are given
  rm <node>                          remove a node and its edges
  unlink <edge>                      remove an edge
  move <node> <x> <y>                reposition a node
  doc                                show the serialized document
  graph                              print the Mermaid diagram
  save                               write the document to the store
  help                               show this help
  quit | exit                        leave the editor`

// errQuit ends the loop without an error.
var errQuit = errors.New("quit")

// Run reads commands until EOF or quit. Rejected operations are printed and the loop continues.
func (r *Runner) Run(ctx context.Context, ed *Editor) error {
	if r.Input == nil {
		return fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return fmt.Errorf("output writer must be set (use os.Stdout)")
	}

	lines := bufio.NewScanner(r.Input)
	if !r.Headless {
		fmt.Fprintf(r.Output, "--- Editing %q (type 'help') ---\n", ed.Name())
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !r.Headless {
			fmt.Fprint(r.Output, "> ")
		}
		if !lines.Scan() {
			if err := lines.Err(); err != nil {
				return fmt.Errorf("input error: %w", err)
			}
			return nil
		}

		fields := strings.Fields(lines.Text())
		if len(fields) == 0 {
			continue
		}

		err := r.dispatch(ctx, ed, fields)
		if errors.Is(err, errQuit) {
			if ed.Dirty() {
				fmt.Fprintln(r.Output, "Unsaved changes discarded.")
			}
			fmt.Fprintln(r.Output, "Bye!")
			return nil
		}
		if err != nil {
			fmt.Fprintf(r.Output, "error: %v\n", err)
		}
	}
}

func (r *Runner) dispatch(ctx context.Context, ed *Editor, f []string) error {
	switch f[0] {
	case "quit", "exit":
		return errQuit

	case "help":
		fmt.Fprintln(r.Output, runnerHelp)

	case "nodes":
		for _, n := range ed.Nodes() {
			fmt.Fprintf(r.Output, "#%d %s %s (%g,%g)\n", n.ID, n.Kind, n.Label(), n.Position.X, n.Position.Y)
		}

	case "edges":
		for _, e := range ed.Edges() {
			fmt.Fprintf(r.Output, "e%d: %d.%s -> %d.%s\n", e.ID, e.From, e.FromPort, e.To, e.ToPort)
		}

	case "add":
		if len(f) != 2 && len(f) != 4 {
			return fmt.Errorf("usage: add <kind> [x y]")
		}
		kind, err := domain.ParseNodeKind(f[1])
		if err != nil {
			return err
		}
		var pos domain.Position
		if len(f) == 4 {
			if pos, err = parsePosition(f[2], f[3]); err != nil {
				return err
			}
		}
		n, err := ed.AddNode(ctx, kind, pos)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.Output, "added #%d\n", n.ID)

	case "bind":
		if len(f) < 4 {
			return fmt.Errorf("usage: bind <node> <step_id> <text...>")
		}
		id, err := parseNode(f[1])
		if err != nil {
			return err
		}
		step := domain.Step{ID: f[2], Message: domain.TextMessage{Text: strings.Join(f[3:], " ")}}
		if _, err := ed.BindStep(ctx, id, step); err != nil {
			return err
		}
		fmt.Fprintf(r.Output, "bound #%d to %s\n", id, step.ID)

	case "connect":
		if len(f) < 3 || len(f) > 5 {
			return fmt.Errorf("usage: connect <from> <to> [out] [in]")
		}
		from, err := parseNode(f[1])
		if err != nil {
			return err
		}
		to, err := parseNode(f[2])
		if err != nil {
			return err
		}
		out, in := domain.DefaultOutput, domain.DefaultInput
		if len(f) > 3 {
			out = f[3]
		}
		if len(f) > 4 {
			in = f[4]
		}
		e, err := ed.Connect(ctx, from, out, to, in)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.Output, "connected e%d\n", e.ID)

	case "rm":
		if len(f) != 2 {
			return fmt.Errorf("usage: rm <node>")
		}
		id, err := parseNode(f[1])
		if err != nil {
			return err
		}
		n, err := ed.RemoveNode(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.Output, "removed #%d and %d edges\n", id, n)

	case "unlink":
		if len(f) != 2 {
			return fmt.Errorf("usage: unlink <edge>")
		}
		v, err := strconv.Atoi(strings.TrimPrefix(f[1], "e"))
		if err != nil {
			return fmt.Errorf("invalid edge id %q", f[1])
		}
		if err := ed.RemoveEdge(ctx, domain.EdgeID(v)); err != nil {
			return err
		}
		fmt.Fprintf(r.Output, "removed e%d\n", v)

	case "move":
		if len(f) != 4 {
			return fmt.Errorf("usage: move <node> <x> <y>")
		}
		id, err := parseNode(f[1])
		if err != nil {
			return err
		}
		pos, err := parsePosition(f[2], f[3])
		if err != nil {
			return err
		}
		return ed.Move(ctx, id, pos)

	case "doc":
		doc, err := ed.Document()
		if err != nil {
			return err
		}
		r.print(tui.DocumentMarkdown(doc))

	case "graph":
		fmt.Fprint(r.Output, graph.GenerateMermaid(ed.Nodes(), ed.Edges(), &graph.GraphOverlay{Placeholders: true}))

	case "save":
		if err := ed.Save(ctx); err != nil {
			return err
		}
		fmt.Fprintln(r.Output, "saved")

	default:
		return fmt.Errorf("unknown command %q (type 'help')", f[0])
	}
	return nil
}

func (r *Runner) print(markdown string) {
	output := markdown
	if r.Renderer != nil {
		if rendered, err := r.Renderer(markdown); err == nil {
			output = rendered
		}
	}
	fmt.Fprintln(r.Output, strings.TrimSpace(output))
}

func parseNode(s string) (domain.NodeID, error) {
	v, err := strconv.Atoi(strings.TrimPrefix(s, "#"))
	if err != nil {
		return 0, fmt.Errorf("invalid node id %q", s)
	}
	return domain.NodeID(v), nil
}

func parsePosition(xs, ys string) (domain.Position, error) {
	x, err := strconv.ParseFloat(xs, 64)
	if err != nil {
		return domain.Position{}, fmt.Errorf("invalid x %q", xs)
	}
	y, err := strconv.ParseFloat(ys, 64)
	if err != nil {
		return domain.Position{}, fmt.Errorf("invalid y %q", ys)
	}
	return domain.Position{X: x, Y: y}, nil
}
