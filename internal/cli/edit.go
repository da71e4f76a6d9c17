package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/stepgraph"
	"github.com/aretw0/stepgraph/internal/presentation/tui"
	"github.com/aretw0/stepgraph/pkg/domain"
)

// EditOptions contains the configuration for an interactive editing session.
type EditOptions struct {
	Flow     string
	Headless bool
	Input    io.Reader
	Output   io.Writer
}

// OpenEditor opens flow from the store, or starts an empty flow of that name
// when the store does not have it yet.
func OpenEditor(ctx context.Context, svc *Services, flow string) (*stepgraph.Editor, bool, error) {
	ed := stepgraph.New(svc.Store, svc.EditorOptions()...)
	err := ed.Open(ctx, flow)
	if err == nil {
		return ed, true, nil
	}
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		return nil, false, err
	}
	if err := ed.LoadDocument(ctx, domain.FlowDocument{Name: flow}); err != nil {
		return nil, false, err
	}
	return ed, false, nil
}

// RunEdit edits one flow from a line-oriented command stream until quit, EOF
// or an interrupt signal.
func RunEdit(svc *Services, opts EditOptions) error {
	if opts.Input == nil || opts.Output == nil {
		return fmt.Errorf("input and output must be set")
	}
	if !opts.Headless {
		tui.PrintBanner(opts.Output, stepgraph.Version)
	}

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	ed, found, err := OpenEditor(sigCtx, svc, opts.Flow)
	if err != nil {
		return fmt.Errorf("failed to open flow %q: %w", opts.Flow, err)
	}
	if !opts.Headless {
		if found {
			printSystemMessage(opts.Output, "Loaded '%s' with %d steps.", opts.Flow, len(ed.Nodes()))
		} else {
			printSystemMessage(opts.Output, "Starting new flow '%s'.", opts.Flow)
		}
	}

	r := stepgraph.NewRunner()
	r.Input = opts.Input
	r.Output = opts.Output
	r.Headless = opts.Headless
	if !opts.Headless && tui.IsInteractive() {
		r.Renderer = tui.NewRenderer(tui.TerminalWidth())
	}

	// The runner blocks on input, so a signal must not wait for the next line.
	done := make(chan error, 1)
	go func() { done <- r.Run(sigCtx, ed) }()

	select {
	case err = <-done:
	case <-sigCtx.Done():
		err = sigCtx.Err()
	}

	if sig := sigCtx.Signal(); sig != nil {
		fmt.Fprintln(opts.Output)
		if ed.Dirty() {
			printSystemMessage(opts.Output, "Interrupted with unsaved changes to '%s'.", opts.Flow)
		} else {
			printSystemMessage(opts.Output, "Interrupted.")
		}
		svc.Logger.Info("Edit interrupted", "flow", opts.Flow, "signal", sig.String())
	}
	return handleExecutionError(err)
}
