// Package report aggregates chatbot session records into the analytics report.
package report

import (
	"fmt"
	"time"

	"github.com/aretw0/stepgraph/internal/validator"
)

// GroupBy selects the report's grouping column.
type GroupBy string

const (
	GroupDate         GroupBy = "date"
	GroupFlow         GroupBy = "flow"
	GroupResponseType GroupBy = "response_type"
)

// DefaultWindowDays is how many days FromDate reaches back by default.
const DefaultWindowDays = 30

// DateLayout is the wire format of filter dates and date group keys.
const DateLayout = "2006-01-02"

// Filter selects which sessions are reported and how they are grouped.
type Filter struct {
	FromDate time.Time `json:"from_date" yaml:"from_date" mapstructure:"from_date" validate:"required"`
	ToDate   time.Time `json:"to_date" yaml:"to_date" mapstructure:"to_date" validate:"required,gtefield=FromDate"`
	GroupBy  GroupBy   `json:"group_by" yaml:"group_by" mapstructure:"group_by" validate:"omitempty,oneof=date flow response_type"`
}

// DefaultFilter covers the 30 days ending on now's date, grouped by date.
func DefaultFilter(now time.Time) Filter {
	today := day(now)
	return Filter{
		FromDate: today.AddDate(0, 0, -DefaultWindowDays),
		ToDate:   today,
		GroupBy:  GroupDate,
	}
}

// ParseFilter builds a filter from wire strings. Empty values take their defaults.
func ParseFilter(now time.Time, from, to, groupBy string) (Filter, error) {
	f := DefaultFilter(now)
	var err error
	if from != "" {
		if f.FromDate, err = time.ParseInLocation(DateLayout, from, now.Location()); err != nil {
			return Filter{}, fmt.Errorf("invalid from_date %q: %w", from, err)
		}
	}
	if to != "" {
		if f.ToDate, err = time.ParseInLocation(DateLayout, to, now.Location()); err != nil {
			return Filter{}, fmt.Errorf("invalid to_date %q: %w", to, err)
		}
	}
	if groupBy != "" {
		f.GroupBy = GroupBy(groupBy)
	}
	return f, f.Validate()
}

// Validate checks required dates, their order and the grouping.
func (f Filter) Validate() error {
	return validator.Struct(f)
}

// group returns the effective grouping.
func (f Filter) group() GroupBy {
	if f.GroupBy == "" {
		return GroupDate
	}
	return f.GroupBy
}

// end is the exclusive upper bound: ToDate covers its whole day.
func (f Filter) end() time.Time {
	return day(f.ToDate).AddDate(0, 0, 1)
}

// Contains reports whether t falls inside the filter window.
func (f Filter) Contains(t time.Time) bool {
	return !t.Before(f.FromDate) && t.Before(f.end())
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
