// Package catalog holds the static measurement catalog and the record type registry
package catalog

// Unit symbols shared by the catalog entries
const (
	UnitLbs     = "lbs"
	UnitPercent = "%"
	UnitMgDL    = "mg/dL"
	UnitMmolL   = "mmol/L"
	UnitMmHg    = "mmHg"
	UnitBPM     = "Beats/min"
	UnitKcal    = "kcal"
	UnitGDL     = "g/dL"
	UnitYear    = "Year"
	UnitPoints  = "Points"
)

// units maps canonical measurement names to their display unit.
// Dimensionless measurements (BMI, ratios, indices) map to "".
var units = map[string]string{
	"Weight": UnitLbs,
	"BMI":    "",

	"Body Fat":           UnitLbs,
	"Body Fat %":         UnitPercent,
	"Subcutaneous Fat":   UnitLbs,
	"Subcutaneous Fat %": UnitPercent,
	"Visceral Fat":       UnitLbs,
	"Visceral Fat %":     UnitPercent,
	"Visceral Fat Index": "",
	"Muscle Mass":        UnitLbs,
	"Muscle Mass %":      UnitPercent,
	"Skeletal Muscle":    UnitLbs,
	"Skeletal Muscle %":  UnitPercent,
	"Bone Mass":          UnitLbs,
	"Bone Mass %":        UnitPercent,
	"Protein":            UnitLbs,
	"Protein %":          UnitPercent,
	"Body Water":         UnitLbs,
	"Body Water %":       UnitPercent,
	"BMR":                UnitKcal,
	"Metabolic Age":      UnitYear,
	"Obesity %":          UnitPercent,
	"Weight Control":     UnitLbs,
	"Fat Mass Control":   UnitLbs,
	"Muscle Control":     UnitLbs,
	"Health Assessment":  UnitPoints,

	"Systolic":  UnitMmHg,
	"Diastolic": UnitMmHg,
	"Pulse":     UnitBPM,

	"Glucose":       UnitMgDL,
	"Ketone":        UnitMmolL,
	"Dr. Boz Ratio": "",

	"Cholesterol":   UnitMgDL,
	"Triglycerides": UnitMgDL,
	"HDL":           UnitMgDL,
	"LDL":           UnitMgDL,
	"TC-HDL":        UnitMgDL,
	"TC/HDL":        "",

	"Uric Acid":   UnitMgDL,
	"Haematocrit": UnitPercent,
	"Haemoglobin": UnitGDL,
}

// Unit returns the display unit for a measurement name.
// Unknown names yield an empty unit rather than an error.
func Unit(name string) string {
	return units[name]
}

// Known reports whether the catalog has an entry for name
func Known(name string) bool {
	_, ok := units[name]
	return ok
}
