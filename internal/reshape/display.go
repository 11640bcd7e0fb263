package reshape

import (
	"strconv"

	"github.com/samber/lo"
)

// ColumnOrder is the preferred left-to-right order of table columns.
// Columns not listed here follow in their original order.
var ColumnOrder = []string{
	"Weight", "BMI",
	"Body Fat", "Body Fat %", "Subcutaneous Fat", "Subcutaneous Fat %", "Visceral Fat", "Visceral Fat %", "Visceral Fat Index",
	"Muscle Mass", "Muscle Mass %", "Skeletal Muscle", "Skeletal Muscle %", "Bone Mass", "Bone Mass %",
	"Protein", "Protein %", "Body Water", "Body Water %", "BMR", "Metabolic Age",
	"Cholesterol", "Triglycerides", "HDL", "LDL", "TC-HDL", "TC/HDL",
	"Glucose", "Ketone", "Dr. Boz Ratio",
	"Systolic", "Diastolic", "Pulse",
	"Uric Acid", "Haematocrit", "Haemoglobin",
}

// OrderColumns sorts names by ColumnOrder, unknown names last
func OrderColumns(names []string) []string {
	ordered := lo.Filter(ColumnOrder, func(name string, _ int) bool { return lo.Contains(names, name) })
	rest := lo.Filter(names, func(name string, _ int) bool { return !lo.Contains(ColumnOrder, name) })
	return append(ordered, rest...)
}

// DateColumn heads the first column of a display table
const DateColumn = "Date"

const dateLayout = "2006-01-02"

// Table is a view formatted for display: newest row first, values with one
// decimal and blanks where nothing was recorded.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Display formats a view as a table
func Display(v WideView) Table {
	sorted := v.Sorted(true)
	columns := OrderColumns(sorted.Columns)
	idx := lo.Map(columns, func(name string, _ int) int { return lo.IndexOf(sorted.Columns, name) })

	t := Table{
		Columns: append([]string{DateColumn}, columns...),
		Rows:    make([][]string, 0, sorted.Len()),
	}
	for i, day := range sorted.Index {
		row := make([]string, 0, len(t.Columns))
		row = append(row, day.Format(dateLayout))
		for _, j := range idx {
			c := sorted.Cells[i][j]
			if !c.OK {
				row = append(row, "")
				continue
			}
			row = append(row, strconv.FormatFloat(c.Value, 'f', 1, 64))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}
