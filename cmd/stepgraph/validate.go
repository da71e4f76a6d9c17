package main

import (
	"context"
	"fmt"

	"github.com/aretw0/stepgraph"
	"github.com/aretw0/stepgraph/internal/validator"
	"github.com/aretw0/stepgraph/pkg/ports"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <flow>...",
	Short: "Check flows for consistency",
	Long: `Loads each flow, checks every step payload and the document rules,
and confirms the flow survives a round trip through the canvas graph.
With no arguments every stored flow is checked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := setup(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		ctx := cmd.Context()
		names := args
		if len(names) == 0 {
			if names, err = svc.Store.List(ctx); err != nil {
				return fmt.Errorf("failed to list flows: %w", err)
			}
		}

		out := cmd.OutOrStdout()
		failed := 0
		for _, name := range names {
			if err := validateFlow(ctx, svc.Store, name); err != nil {
				fmt.Fprintf(out, "✗ %s: %v\n", name, err)
				failed++
				continue
			}
			fmt.Fprintf(out, "✓ %s\n", name)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d flows failed validation", failed, len(names))
		}
		fmt.Fprintln(out, "All flows are valid! ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// validateFlow checks one stored flow and its graph round trip.
func validateFlow(ctx context.Context, store ports.DocumentStore, name string) error {
	doc, err := store.Get(ctx, name)
	if err != nil {
		return err
	}
	if err := validator.ValidateDocument(doc); err != nil {
		return err
	}

	ed := stepgraph.New(nil)
	if err := ed.LoadDocument(ctx, doc); err != nil {
		return err
	}
	_, err = ed.Document()
	return err
}
