package report

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// UnknownGroup labels sessions without a value for the grouping column.
const UnknownGroup = "Unknown"

// ChartRows caps how many rows the chart shows.
const ChartRows = 30

// Row is one aggregated group.
type Row struct {
	Group          string  `json:"group_field"`
	TotalSessions  int     `json:"total_sessions"`
	Completed      int     `json:"completed"`
	AgentTransfers int     `json:"agent_transfers"`
	CompletionRate float64 `json:"completion_rate"`
	TotalMessages  int     `json:"total_messages"`
	AvgMessages    float64 `json:"avg_messages"`
}

// Dataset is one chart series.
type Dataset struct {
	Name   string `json:"name"`
	Values []int  `json:"values"`
}

// Chart is the report chart: a line over dates, bars otherwise.
type Chart struct {
	Type     string    `json:"type"`
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
	Colors   []string  `json:"colors"`
}

// Summary totals the whole window.
type Summary struct {
	TotalSessions  int     `json:"total_sessions"`
	Completed      int     `json:"completed"`
	AgentTransfers int     `json:"agent_transfers"`
	CompletionRate float64 `json:"completion_rate"`
	TotalMessages  int     `json:"total_messages"`
}

// Column describes a report column.
type Column struct {
	Label     string `json:"label"`
	Fieldname string `json:"fieldname"`
	Fieldtype string `json:"fieldtype"`
}

// Result is a complete report.
type Result struct {
	Filter  Filter   `json:"filter"`
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
	// Chart is nil when there are no rows.
	Chart   *Chart  `json:"chart,omitempty"`
	Summary Summary `json:"summary"`
}

// Run validates the filter, reads the sessions and aggregates them.
func Run(ctx context.Context, src Source, f Filter) (Result, error) {
	if err := f.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid filter: %w", err)
	}
	sessions, err := src.Sessions(ctx, f)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load sessions: %w", err)
	}
	return Aggregate(f, sessions), nil
}

// Aggregate builds the report from sessions already known to be inside the window.
func Aggregate(f Filter, sessions []SessionRecord) Result {
	groupBy := f.group()
	f.GroupBy = groupBy

	index := make(map[string]int)
	var rows []Row
	var sum Summary
	for _, s := range sessions {
		key := groupKey(groupBy, s)
		i, ok := index[key]
		if !ok {
			i = len(rows)
			index[key] = i
			rows = append(rows, Row{Group: key})
		}
		accumulate(&rows[i], s)

		sum.TotalSessions++
		sum.TotalMessages += s.MessageCount
		if s.Status == StatusCompleted {
			sum.Completed++
		}
		if s.TransferredToAgent {
			sum.AgentTransfers++
		}
	}

	for i := range rows {
		r := &rows[i]
		r.CompletionRate = round(percent(r.Completed, r.TotalSessions), 2)
		if r.TotalSessions > 0 {
			r.AvgMessages = round(float64(r.TotalMessages)/float64(r.TotalSessions), 1)
		}
	}
	sort.SliceStable(rows, func(a, b int) bool {
		if rows[a].TotalSessions != rows[b].TotalSessions {
			return rows[a].TotalSessions > rows[b].TotalSessions
		}
		return rows[a].Group < rows[b].Group
	})
	sum.CompletionRate = round(percent(sum.Completed, sum.TotalSessions), 1)

	if rows == nil {
		rows = []Row{}
	}
	return Result{
		Filter:  f,
		Columns: columns(groupBy),
		Rows:    rows,
		Chart:   chart(groupBy, rows),
		Summary: sum,
	}
}

func groupKey(g GroupBy, s SessionRecord) string {
	switch g {
	case GroupFlow:
		return s.Flow
	case GroupResponseType:
		if s.LastResponseType == "" {
			return UnknownGroup
		}
		return s.LastResponseType
	default:
		return s.CreatedAt.Format(DateLayout)
	}
}

func accumulate(r *Row, s SessionRecord) {
	r.TotalSessions++
	r.TotalMessages += s.MessageCount
	if s.Status == StatusCompleted {
		r.Completed++
	}
	if s.TransferredToAgent {
		r.AgentTransfers++
	}
}

func chart(g GroupBy, rows []Row) *Chart {
	if len(rows) == 0 {
		return nil
	}
	rows = rows[:min(len(rows), ChartRows)]

	c := &Chart{
		Type:   "bar",
		Labels: make([]string, len(rows)),
		Datasets: []Dataset{
			{Name: "Total Sessions", Values: make([]int, len(rows))},
			{Name: "Completed", Values: make([]int, len(rows))},
		},
		Colors: []string{"#5e64ff", "#28a745"},
	}
	if g == GroupDate {
		c.Type = "line"
	}
	for i, r := range rows {
		c.Labels[i] = r.Group
		if c.Labels[i] == "" {
			c.Labels[i] = UnknownGroup
		}
		c.Datasets[0].Values[i] = r.TotalSessions
		c.Datasets[1].Values[i] = r.Completed
	}
	return c
}

func columns(g GroupBy) []Column {
	first := Column{Label: "Date", Fieldname: "group_field", Fieldtype: "Date"}
	switch g {
	case GroupFlow:
		first = Column{Label: "Flow", Fieldname: "group_field", Fieldtype: "Link"}
	case GroupResponseType:
		first = Column{Label: "Response Type", Fieldname: "group_field", Fieldtype: "Data"}
	}
	return []Column{
		first,
		{Label: "Total Sessions", Fieldname: "total_sessions", Fieldtype: "Int"},
		{Label: "Completed", Fieldname: "completed", Fieldtype: "Int"},
		{Label: "Agent Transfers", Fieldname: "agent_transfers", Fieldtype: "Int"},
		{Label: "Completion Rate (%)", Fieldname: "completion_rate", Fieldtype: "Percent"},
		{Label: "Total Messages", Fieldname: "total_messages", Fieldtype: "Int"},
		{Label: "Avg Messages/Session", Fieldname: "avg_messages", Fieldtype: "Float"},
	}
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
