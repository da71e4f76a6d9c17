package main

import (
	"fmt"
	"os"

	"github.com/aretw0/stepgraph/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stepgraph",
	Short: "stepgraph edits chatbot flows as step lists or canvas graphs",
	Long: `stepgraph is the editing model behind a visual chatbot-flow builder.
Flows are stored as ordered step lists and edited as graphs of nodes and edges.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("env-file", "", "Path to a dotenv file with STEPGRAPH_ overrides")
	rootCmd.PersistentFlags().String("dir", "", "Directory of the flow store (overrides store.path)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
}

// setup loads the configuration and opens the configured store.
func setup(cmd *cobra.Command) (*cli.Services, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")
	dir, _ := cmd.Flags().GetString("dir")
	level, _ := cmd.Flags().GetString("log-level")

	cfg, err := cli.LoadConfig(cfgPath, envFile, dir, level)
	if err != nil {
		return nil, err
	}
	logger, err := cli.NewLogger(cmd.ErrOrStderr(), cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return cli.Setup(cfg, logger)
}
