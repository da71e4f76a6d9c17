package main

import (
	"fmt"

	"github.com/aretw0/stepgraph"
	"github.com/aretw0/stepgraph/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <flow>",
	Short: "Export the flow graph visualization",
	Long:  `Loads a flow onto the canvas and outputs a Mermaid diagram (graph LR) of its nodes and edges.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := setup(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		ed := stepgraph.New(svc.Store, svc.EditorOptions()...)
		if err := ed.Open(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to open flow %q: %w", args[0], err)
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(ed.Nodes(), ed.Edges(), nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
