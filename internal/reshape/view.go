// Package reshape turns the long measurement table into date-indexed views for charts and tables
package reshape

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/mrcode/health-manager/internal/models"
)

// Aggregate collapses several values recorded for one name on one day
type Aggregate int

const (
	// Mean averages same-day values
	Mean Aggregate = iota
	// Sum adds same-day values
	Sum
)

func (a Aggregate) String() string {
	if a == Sum {
		return "sum"
	}
	return "mean"
}

// ParseAggregate maps "mean" and "sum" to an Aggregate; anything else is Mean
func ParseAggregate(s string) Aggregate {
	if s == "sum" {
		return Sum
	}
	return Mean
}

// Cell is one value in a wide view. OK is false where nothing was observed.
type Cell struct {
	Value float64 `json:"value"`
	OK    bool    `json:"ok"`
}

// WideView is a date-indexed table with one column per measurement name.
// Cells is indexed [row][column].
type WideView struct {
	Index   []time.Time `json:"index"`
	Columns []string    `json:"columns"`
	Cells   [][]Cell    `json:"cells"`
}

// Point is one non-missing cell of a view in long form
type Point struct {
	Date  time.Time `json:"date"`
	Name  string    `json:"name"`
	Value float64   `json:"value"`
}

type dayKey struct {
	year  int
	month time.Month
	day   int
}

func keyOf(t time.Time) dayKey {
	y, m, d := t.Date()
	return dayKey{y, m, d}
}

func (k dayKey) before(o dayKey) bool {
	if k.year != o.year {
		return k.year < o.year
	}
	if k.month != o.month {
		return k.month < o.month
	}
	return k.day < o.day
}

// midnight is the start of the key's day in loc
func (k dayKey) midnight(loc *time.Location) time.Time {
	return time.Date(k.year, k.month, k.day, 0, 0, 0, 0, loc)
}

// Day truncates t to midnight of its calendar day in t's location
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Pivot builds a wide view with one row per calendar day, ascending, and one
// column per distinct name in lexical order.
func Pivot(rows models.Table, agg Aggregate) WideView {
	type acc struct {
		sum   float64
		count int
	}

	columns := rows.Names()
	colIdx := make(map[string]int, len(columns))
	for i, name := range columns {
		colIdx[name] = i
	}

	// Days are keyed by the calendar date each row was recorded on. The index
	// holds those dates as midnights in the newest row's location.
	loc := time.UTC
	var newest time.Time
	keys := make(map[dayKey]struct{})
	for i, m := range rows {
		keys[keyOf(m.Time)] = struct{}{}
		if i == 0 || m.Time.After(newest) {
			newest = m.Time
			loc = m.Time.Location()
		}
	}
	sorted := lo.Keys(keys)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].before(sorted[j]) })
	days := make([]time.Time, len(sorted))
	rowIdx := make(map[dayKey]int, len(sorted))
	for i, k := range sorted {
		days[i] = k.midnight(loc)
		rowIdx[k] = i
	}

	accs := make([][]acc, len(days))
	for i := range accs {
		accs[i] = make([]acc, len(columns))
	}
	for _, m := range rows {
		a := &accs[rowIdx[keyOf(m.Time)]][colIdx[m.Name]]
		a.sum += m.Value
		a.count++
	}

	view := WideView{Index: days, Columns: columns, Cells: make([][]Cell, len(days))}
	for i := range accs {
		view.Cells[i] = make([]Cell, len(columns))
		for j, a := range accs[i] {
			if a.count == 0 {
				continue
			}
			v := a.sum
			if agg == Mean {
				v /= float64(a.count)
			}
			view.Cells[i][j] = Cell{Value: v, OK: true}
		}
	}
	return view
}

// Len returns the number of rows
func (v WideView) Len() int {
	return len(v.Index)
}

// Empty reports whether the view has no rows or no columns
func (v WideView) Empty() bool {
	return len(v.Index) == 0 || len(v.Columns) == 0
}

// Column returns the cells of the named column, or nil when it is absent
func (v WideView) Column(name string) []Cell {
	j := lo.IndexOf(v.Columns, name)
	if j < 0 {
		return nil
	}
	out := make([]Cell, len(v.Index))
	for i := range v.Index {
		out[i] = v.Cells[i][j]
	}
	return out
}

func (v WideView) clone() WideView {
	out := WideView{
		Index:   append([]time.Time(nil), v.Index...),
		Columns: append([]string(nil), v.Columns...),
		Cells:   make([][]Cell, len(v.Cells)),
	}
	for i, r := range v.Cells {
		out.Cells[i] = append([]Cell(nil), r...)
	}
	return out
}

// ForwardFill returns a copy where each gap takes the most recent earlier
// value of its column. Cells before a column's first observation stay missing.
func (v WideView) ForwardFill() WideView {
	out := v.Sorted(false)
	for j := range out.Columns {
		var last Cell
		for i := range out.Index {
			if out.Cells[i][j].OK {
				last = out.Cells[i][j]
				continue
			}
			out.Cells[i][j] = last
		}
	}
	return out
}

// MovingAverage returns a copy where each cell is the mean of the column's
// observations dated within (T-window, T]. The window is counted in whole
// calendar days so DST changes do not move its edge. A cell with no
// observation in its window stays missing.
func (v WideView) MovingAverage(window time.Duration) WideView {
	days := int(window / (24 * time.Hour))
	in := v.Sorted(false)
	out := in.clone()
	for j := range in.Columns {
		start := 0
		var (
			sum   float64
			count int
		)
		for i, t := range in.Index {
			cutoff := keyOf(Day(t).AddDate(0, 0, -days))
			if in.Cells[i][j].OK {
				sum += in.Cells[i][j].Value
				count++
			}
			for ; start <= i && !cutoff.before(keyOf(in.Index[start])); start++ {
				if in.Cells[start][j].OK {
					sum -= in.Cells[start][j].Value
					count--
				}
			}
			if count == 0 {
				out.Cells[i][j] = Cell{}
				continue
			}
			out.Cells[i][j] = Cell{Value: sum / float64(count), OK: true}
		}
	}
	return out
}

// Sorted returns a copy ordered by date, newest first when desc is set
func (v WideView) Sorted(desc bool) WideView {
	out := v.clone()
	order := make([]int, len(out.Index))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ka, kb := keyOf(v.Index[order[a]]), keyOf(v.Index[order[b]])
		if desc {
			return kb.before(ka)
		}
		return ka.before(kb)
	})
	for i, k := range order {
		out.Index[i] = v.Index[k]
		out.Cells[i] = append([]Cell(nil), v.Cells[k]...)
	}
	return out
}

// Melt flattens the view into long form, skipping missing cells
func (v WideView) Melt() []Point {
	points := make([]Point, 0, len(v.Index)*len(v.Columns))
	for j, name := range v.Columns {
		for i, t := range v.Index {
			if c := v.Cells[i][j]; c.OK {
				points = append(points, Point{Date: t, Name: name, Value: c.Value})
			}
		}
	}
	return points
}
