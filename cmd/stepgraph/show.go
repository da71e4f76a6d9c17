package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/stepgraph/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <flow>",
	Short: "Print a flow's steps",
	Long:  `Prints the ordered steps of a stored flow, rendered for the terminal when stdout is interactive.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonMode, _ := cmd.Flags().GetBool("json")

		svc, err := setup(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		doc, err := svc.Store.Get(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to load flow %q: %w", args[0], err)
		}

		out := cmd.OutOrStdout()
		if jsonMode {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		}

		md := tui.DocumentMarkdown(doc)
		if tui.IsInteractive() {
			if rendered, err := tui.NewRenderer(tui.TerminalWidth())(md); err == nil {
				md = rendered
			}
		}
		fmt.Fprintln(out, strings.TrimSpace(md))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().Bool("json", false, "Print the document as JSON")
}
