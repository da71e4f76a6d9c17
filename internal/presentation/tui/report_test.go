package tui

import (
	"testing"
	"time"

	"github.com/aretw0/stepgraph/pkg/report"
	"github.com/stretchr/testify/assert"
)

func TestReportMarkdown(t *testing.T) {
	day := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	f := report.Filter{FromDate: day.AddDate(0, 0, -1), ToDate: day, GroupBy: report.GroupFlow}

	res := report.Aggregate(f, []report.SessionRecord{
		{ID: "s1", Flow: "welcome", Status: report.StatusCompleted, MessageCount: 4, CreatedAt: day},
		{ID: "s2", Flow: "", Status: report.StatusActive, MessageCount: 2, CreatedAt: day},
	})

	md := ReportMarkdown(res)
	assert.Contains(t, md, "2024-03-09 to 2024-03-10, grouped by flow")
	assert.Contains(t, md, "| Flow | Total Sessions |")
	assert.Contains(t, md, "| welcome | 1 | 1 | 0 | 100.00% | 4 | 4.0 |")
	assert.Contains(t, md, "| Unknown | 1 | 0 | 0 | 0.00% | 2 | 2.0 |")
	assert.Contains(t, md, "**Total sessions:** 2")
	assert.Contains(t, md, "**Completion rate:** 50.0%")

	empty := ReportMarkdown(report.Aggregate(f, nil))
	assert.Contains(t, empty, "_No sessions in this period._")
}
