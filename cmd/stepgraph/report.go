package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aretw0/stepgraph/internal/presentation/tui"
	"github.com/aretw0/stepgraph/pkg/report"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Aggregate chatbot sessions into the analytics report",
	Long: `Reads session records from a YAML file and prints session counts, completions,
agent transfers and message totals grouped by date, flow or response type.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("sessions")
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		groupBy, _ := cmd.Flags().GetString("group-by")
		jsonMode, _ := cmd.Flags().GetBool("json")

		src, err := loadSessions(path)
		if err != nil {
			return err
		}
		f, err := report.ParseFilter(time.Now(), from, to, groupBy)
		if err != nil {
			return err
		}
		res, err := report.Run(cmd.Context(), src, f)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonMode {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		md := tui.ReportMarkdown(res)
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
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().String("sessions", "", "YAML file of session records")
	reportCmd.Flags().String("from", "", "First day of the report (YYYY-MM-DD, default 30 days ago)")
	reportCmd.Flags().String("to", "", "Last day of the report (YYYY-MM-DD, default today)")
	reportCmd.Flags().String("group-by", "", "Grouping: date, flow or response_type (default date)")
	reportCmd.Flags().Bool("json", false, "Print the report as JSON")
	_ = reportCmd.MarkFlagRequired("sessions")
}

// loadSessions reads session records for reporting. An empty path yields no source.
func loadSessions(path string) (report.Source, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sessions: %w", err)
	}
	defer f.Close()

	src, err := report.LoadSessions(f)
	if err != nil {
		return nil, err
	}
	return src, nil
}
