package reshape

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/mrcode/health-manager/internal/models"
)

// Preset is a named group of measurements shown together
type Preset struct {
	Name         string   `json:"name"`
	Measurements []string `json:"measurements"`
}

// Presets are the quick selections offered above the chart
var Presets = []Preset{
	{Name: "Weight lbs", Measurements: []string{"Weight", "Body Fat", "Subcutaneous Fat", "Visceral Fat",
		"Muscle Mass", "Skeletal Muscle", "Bone Mass", "Protein", "Body Water"}},
	{Name: "Weight %", Measurements: []string{"Body Fat %", "Subcutaneous Fat %", "Visceral Fat %",
		"Muscle Mass %", "Skeletal Muscle %", "Bone Mass %", "Protein %", "Body Water %"}},
	{Name: "Weight Etc", Measurements: []string{"Weight", "BMI", "Visceral Fat Index", "BMR", "Metabolic Age"}},
	{Name: "Lipid Panel", Measurements: []string{"Cholesterol", "Triglycerides", "HDL", "LDL", "TC-HDL", "TC/HDL"}},
	{Name: "Keto", Measurements: []string{"Glucose", "Ketone", "Dr. Boz Ratio"}},
	{Name: "Blood Pressure", Measurements: []string{"Systolic", "Diastolic", "Pulse"}},
}

// FindPreset returns the preset with the given name
func FindPreset(name string) (Preset, bool) {
	return lo.Find(Presets, func(p Preset) bool { return p.Name == name })
}

// Select keeps the wanted names that the table actually has, in wanted order
func Select(table models.Table, wanted []string) []string {
	available := table.Names()
	return lo.Filter(wanted, func(name string, _ int) bool {
		return lo.Contains(available, name)
	})
}

// RangePreset is a start date relative to the newest measurement
type RangePreset struct {
	Name   string `json:"name"`
	Years  int    `json:"years"`
	Months int    `json:"months"`
}

// AllTime starts at the oldest measurement
func (r RangePreset) AllTime() bool {
	return r.Years == 0 && r.Months == 0
}

// Range preset names
const (
	RangeAllTime = "All Time"
	Range2Years  = "2 Years"
	Range1Year   = "1 Year"
	Range6Months = "6 Months"
	Range3Months = "3 Months"
	Range1Month  = "1 Month"
	DefaultRange = Range6Months
)

// RangePresets are offered in this order
var RangePresets = []RangePreset{
	{Name: RangeAllTime},
	{Name: Range2Years, Years: 2},
	{Name: Range1Year, Years: 1},
	{Name: Range6Months, Months: 6},
	{Name: Range3Months, Months: 3},
	{Name: Range1Month, Months: 1},
}

// DateRange resolves a range preset against the table. The end is the newest
// measurement's day; an empty table anchors on now.
func DateRange(table models.Table, preset string, now time.Time) (start, end time.Time, err error) {
	r, ok := lo.Find(RangePresets, func(r RangePreset) bool { return r.Name == preset })
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("unknown date range %q", preset)
	}

	first, last, ok := table.Span()
	if !ok {
		first, last = now, now
	}
	end = Day(last)
	if r.AllTime() {
		return Day(first), end, nil
	}
	return end.AddDate(-r.Years, -r.Months, 0), end, nil
}
