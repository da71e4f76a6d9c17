package main

import (
	"fmt"
	"os"

	"github.com/aretw0/stepgraph/internal/cli"
	"github.com/aretw0/stepgraph/internal/config"
	"github.com/spf13/cobra"
)

// editCmd represents the edit command
var editCmd = &cobra.Command{
	Use:   "edit <flow>",
	Short: "Edit a flow interactively",
	Long: `Opens a flow on the canvas and reads editing commands from the terminal.
A flow that does not exist yet starts empty. Type 'help' for the command list.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		headless, _ := cmd.Flags().GetBool("headless")

		svc, err := setup(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		if svc.Config.Store.Kind == config.StoreMemory && !headless {
			fmt.Fprintln(cmd.ErrOrStderr(), "Warning: memory store in use, saved flows are lost on exit.")
		}

		return cli.RunEdit(svc, cli.EditOptions{
			Flow:     args[0],
			Headless: headless,
			Input:    os.Stdin,
			Output:   cmd.OutOrStdout(),
		})
	},
}

func init() {
	rootCmd.AddCommand(editCmd)
	editCmd.Flags().Bool("headless", false, "Run in headless mode (no banner or prompts, strict IO)")
}
