package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "List stored flows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := setup(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		names, err := svc.Store.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list flows: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(names) == 0 {
			fmt.Fprintln(out, "No flows found.")
			return nil
		}
		for _, name := range names {
			fmt.Fprintln(out, "- "+name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(flowsCmd)
}
