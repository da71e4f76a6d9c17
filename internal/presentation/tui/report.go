package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/stepgraph/pkg/report"
)

// ReportMarkdown lays a report out as a markdown table followed by its summary.
func ReportMarkdown(res report.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Chatbot report\n\n%s to %s, grouped by %s\n\n",
		res.Filter.FromDate.Format(report.DateLayout),
		res.Filter.ToDate.Format(report.DateLayout),
		res.Filter.GroupBy)

	if len(res.Rows) == 0 {
		sb.WriteString("_No sessions in this period._\n")
		return sb.String()
	}

	labels := make([]string, len(res.Columns))
	for i, c := range res.Columns {
		labels[i] = c.Label
	}
	fmt.Fprintf(&sb, "| %s |\n", strings.Join(labels, " | "))
	fmt.Fprintf(&sb, "|%s\n", strings.Repeat(" --- |", len(labels)))
	for _, r := range res.Rows {
		group := r.Group
		if group == "" {
			group = report.UnknownGroup
		}
		fmt.Fprintf(&sb, "| %s | %d | %d | %d | %.2f%% | %d | %.1f |\n",
			group, r.TotalSessions, r.Completed, r.AgentTransfers, r.CompletionRate, r.TotalMessages, r.AvgMessages)
	}

	s := res.Summary
	fmt.Fprintf(&sb, "\n**Total sessions:** %d · **Completed:** %d · **Agent transfers:** %d · **Completion rate:** %.1f%% · **Messages:** %d\n",
		s.TotalSessions, s.Completed, s.AgentTransfers, s.CompletionRate, s.TotalMessages)
	return sb.String()
}
