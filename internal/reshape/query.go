package reshape

import (
	"time"

	"github.com/samber/lo"

	"github.com/mrcode/health-manager/internal/models"
)

// DefaultWindow is the trailing window of the 1M moving average
const DefaultWindow = 30 * 24 * time.Hour

// Query selects and shapes the part of a table shown in a view
type Query struct {
	Names       []string      `json:"names"`
	Start       time.Time     `json:"start"` // zero = unbounded
	End         time.Time     `json:"end"`   // zero = unbounded, inclusive of the whole day
	Aggregate   Aggregate     `json:"aggregate"`
	ForwardFill bool          `json:"forwardFill"`
	Window      time.Duration `json:"window"` // zero = no moving average
}

// Result is a reshaped view plus its moving average when one was requested
type Result struct {
	View     WideView  `json:"view"`
	Smoothed *WideView `json:"smoothed,omitempty"`
}

// Filter keeps rows whose name is in names and whose timestamp falls within
// [start 00:00, end+1day 00:00). A zero start or end leaves that side open.
func Filter(table models.Table, names []string, start, end time.Time) models.Table {
	var from, until time.Time
	if !start.IsZero() {
		from = Day(start)
	}
	if !end.IsZero() {
		until = Day(end).AddDate(0, 0, 1)
	}

	return lo.Filter(table, func(m models.Measurement, _ int) bool {
		if !lo.Contains(names, m.Name) {
			return false
		}
		if !from.IsZero() && m.Time.Before(from) {
			return false
		}
		if !until.IsZero() && !m.Time.Before(until) {
			return false
		}
		return true
	})
}

// Reshape filters the table and pivots it. The moving average is taken over
// the observed values, before any forward-fill.
func Reshape(table models.Table, q Query) Result {
	pivot := Pivot(Filter(table, q.Names, q.Start, q.End), q.Aggregate)

	res := Result{View: pivot}
	if q.ForwardFill {
		res.View = pivot.ForwardFill()
	}
	if q.Window > 0 {
		smoothed := pivot.MovingAverage(q.Window)
		res.Smoothed = &smoothed
	}
	return res
}
