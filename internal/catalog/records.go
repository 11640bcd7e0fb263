package catalog

// Op identifies how an output measurement is computed from decoded fields
type Op int

const (
	// OpField copies Args[0] verbatim
	OpField Op = iota
	// OpPercentOf computes Args[0] * Args[1] / 100 (absolute mass from a percentage)
	OpPercentOf
	// OpShareOf computes 100 * Args[1] / Args[0] (percentage from an absolute mass)
	OpShareOf
	// OpDifference computes Args[0] - Args[1]
	OpDifference
	// OpPercentOfDifference computes Args[0] * (Args[1] - Args[2]) / 100
	OpPercentOfDifference
	// OpRatio computes Args[0] / Args[1]
	OpRatio
	// OpBMI computes Args[0] * 703 / height^2 with the weight in pounds
	OpBMI
)

// Output describes one measurement row produced for a record type
type Output struct {
	Name string
	Op   Op
	Args []string
}

// Conditional is a derivation applied on the generic path when all of its
// required fields were decoded. It only ever adds rows.
type Conditional struct {
	Requires []string
	Outputs  []Output
}

// RecordType describes an input format: the ordered raw field names a user
// enters and, for device formats, the rows derived from them.
// A record type without Outputs takes the generic path.
type RecordType struct {
	Name    string
	Fields  []string
	Outputs []Output
	Help    string
}

// Arity is the exact number of values an entry of this type must carry
func (r RecordType) Arity() int {
	return len(r.Fields)
}

// Generic reports whether the record type emits its fields verbatim
func (r RecordType) Generic() bool {
	return len(r.Outputs) == 0
}

func field(name, arg string) Output { return Output{Name: name, Op: OpField, Args: []string{arg}} }

func percentOf(name, whole, pct string) Output {
	return Output{Name: name, Op: OpPercentOf, Args: []string{whole, pct}}
}

func shareOf(name, whole, part string) Output {
	return Output{Name: name, Op: OpShareOf, Args: []string{whole, part}}
}

func bmi(weight string) Output { return Output{Name: "BMI", Op: OpBMI, Args: []string{weight}} }

// Aliases lists alternative raw field names accepted for a canonical field.
// Older entry forms labelled total cholesterol "TC".
var Aliases = map[string][]string{
	"Cholesterol": {"TC"},
}

// Canonical returns the canonical measurement name for a raw field name
func Canonical(field string) string {
	for name, aliases := range Aliases {
		for _, alias := range aliases {
			if alias == field {
				return name
			}
		}
	}
	return field
}

// GenericDerivations are appended, in order, after the verbatim rows of a
// generic record type.
var GenericDerivations = []Conditional{
	{
		Requires: []string{"Weight"},
		Outputs:  []Output{bmi("Weight")},
	},
	{
		Requires: []string{"Glucose", "Ketone"},
		Outputs:  []Output{{Name: "Dr. Boz Ratio", Op: OpRatio, Args: []string{"Glucose", "Ketone"}}},
	},
	{
		Requires: []string{"Cholesterol", "HDL"},
		Outputs: []Output{
			{Name: "TC-HDL", Op: OpDifference, Args: []string{"Cholesterol", "HDL"}},
			{Name: "TC/HDL", Op: OpRatio, Args: []string{"Cholesterol", "HDL"}},
		},
	},
}

// Record type names
const (
	TypeWeight            = "Weight"
	TypeBloodPressure     = "Systolic Diastolic Pulse"
	TypeGlucoseKetone     = "Glucose Ketone"
	TypeGlucose           = "Glucose"
	TypeKetone            = "Ketone"
	TypeLipidPanel        = "Cholesterol Triglycerides HDL LDL"
	TypeCholesterol       = "Cholesterol"
	TypeUricAcid          = "Uric Acid"
	TypeFitPlusLN         = "GE Fit Plus LN"
	TypeCS10GComposition  = "GE CS10G Body Composition"
	TypeCS10G             = "GE CS10G"
	TypeFora6             = "Fora 6 BG HT HB"
	DefaultRecordTypeName = TypeFitPlusLN
)

// registry is kept in the order the entry form lists the types
var registry = []RecordType{
	{
		Name:   TypeWeight,
		Fields: []string{"Weight"},
		Help:   "Body weight in pounds",
	},
	{
		Name:   TypeBloodPressure,
		Fields: []string{"Systolic", "Diastolic", "Pulse"},
		Help:   "Blood pressure in mmHg and pulse in Beats/min",
	},
	{
		Name:   TypeGlucoseKetone,
		Fields: []string{"Glucose", "Ketone"},
		Help:   "Blood glucose in mg/dL and ketone in mmol/L",
	},
	{
		Name:   TypeGlucose,
		Fields: []string{"Glucose"},
		Help:   "Blood glucose in mg/dL",
	},
	{
		Name:   TypeKetone,
		Fields: []string{"Ketone"},
		Help:   "Blood ketone in mmol/L",
	},
	{
		Name:   TypeLipidPanel,
		Fields: []string{"Cholesterol", "Triglycerides", "HDL", "LDL"},
		Help:   "Lipid panel in mg/dL",
	},
	{
		Name:   TypeCholesterol,
		Fields: []string{"Cholesterol"},
		Help:   "Total cholesterol in mg/dL",
	},
	{
		Name:   TypeUricAcid,
		Fields: []string{"Uric Acid"},
		Help:   "Uric acid in mg/dL",
	},
	{
		Name: TypeFitPlusLN,
		Fields: []string{"weight", "bdy_fat_pct", "bmi", "skl_msc_pct", "msc_mss", "prt_pct",
			"bmr", "ff_wgt", "sub_fat_pct", "vis_fat_idx", "bdy_wtr_pct", "bon_mss", "mtb_age"},
		Outputs: []Output{
			field("Weight", "weight"),
			bmi("weight"),
			percentOf("Body Fat", "weight", "bdy_fat_pct"),
			field("Body Fat %", "bdy_fat_pct"),
			percentOf("Subcutaneous Fat", "weight", "sub_fat_pct"),
			field("Subcutaneous Fat %", "sub_fat_pct"),
			{Name: "Visceral Fat", Op: OpPercentOfDifference, Args: []string{"weight", "bdy_fat_pct", "sub_fat_pct"}},
			{Name: "Visceral Fat %", Op: OpDifference, Args: []string{"bdy_fat_pct", "sub_fat_pct"}},
			field("Visceral Fat Index", "vis_fat_idx"),
			field("Muscle Mass", "msc_mss"),
			shareOf("Muscle Mass %", "weight", "msc_mss"),
			percentOf("Skeletal Muscle", "weight", "skl_msc_pct"),
			field("Skeletal Muscle %", "skl_msc_pct"),
			field("Bone Mass", "bon_mss"),
			shareOf("Bone Mass %", "weight", "bon_mss"),
			percentOf("Protein", "weight", "prt_pct"),
			field("Protein %", "prt_pct"),
			percentOf("Body Water", "weight", "bdy_wtr_pct"),
			field("Body Water %", "bdy_wtr_pct"),
			field("BMR", "bmr"),
			field("Metabolic Age", "mtb_age"),
		},
		Help: "13-in-1 body composition (Weight, Body Fat, BMI, Skeletal Muscle, Muscle Mass, Protein, BMR, " +
			"Fat-Free Body Weight, Subcutaneous Fat, Visceral Fat, Body Water, Bone Mass, Metabolic Age)",
	},
	{
		Name: TypeCS10GComposition,
		Fields: []string{"weight", "bdy_wtr_pct", "prt_pct", "fat_mss_pct", "bon_mss_pct", "skl_msc",
			"vis_fat_idx", "obesity_pct", "wgt_ctrl", "fat_mss_ctrl", "msc_ctrl", "health_ass",
			"msc_mss", "bmr", "ff_wgt", "sub_fat_pct", "mtb_age"},
		Outputs: []Output{
			field("Weight", "weight"),
			bmi("weight"),
			percentOf("Body Fat", "weight", "fat_mss_pct"),
			field("Body Fat %", "fat_mss_pct"),
			percentOf("Subcutaneous Fat", "weight", "sub_fat_pct"),
			field("Subcutaneous Fat %", "sub_fat_pct"),
			{Name: "Visceral Fat", Op: OpPercentOfDifference, Args: []string{"weight", "fat_mss_pct", "sub_fat_pct"}},
			{Name: "Visceral Fat %", Op: OpDifference, Args: []string{"fat_mss_pct", "sub_fat_pct"}},
			field("Visceral Fat Index", "vis_fat_idx"),
			field("Muscle Mass", "msc_mss"),
			shareOf("Muscle Mass %", "weight", "msc_mss"),
			field("Skeletal Muscle", "skl_msc"),
			shareOf("Skeletal Muscle %", "weight", "skl_msc"),
			percentOf("Bone Mass", "weight", "bon_mss_pct"),
			field("Bone Mass %", "bon_mss_pct"),
			percentOf("Protein", "weight", "prt_pct"),
			field("Protein %", "prt_pct"),
			percentOf("Body Water", "weight", "bdy_wtr_pct"),
			field("Body Water %", "bdy_wtr_pct"),
			field("BMR", "bmr"),
			field("Metabolic Age", "mtb_age"),
			field("Obesity %", "obesity_pct"),
			field("Weight Control", "wgt_ctrl"),
			field("Fat Mass Control", "fat_mss_ctrl"),
			field("Muscle Control", "msc_ctrl"),
			field("Health Assessment", "health_ass"),
		},
		Help: "17-in-1 body composition (Weight, Body Water, Protein, Fat Mass, Bone Mass, Skeletal Muscle, " +
			"Visceral Fat, Obesity, Weight Control, Fat Mass Control, Muscle Control, Health Assessment, " +
			"Muscle Mass, BMR, Fat-Free Body Weight, Subcutaneous Fat, Metabolic Age)",
	},
	{
		Name:   TypeCS10G,
		Fields: []string{"weight", "bdy_fat_pct", "bmi", "msc_mss", "bmr", "ff_wgt", "vis_fat_idx", "bdy_wtr_pct", "bon_mss"},
		Outputs: []Output{
			field("Weight", "weight"),
			bmi("weight"),
			percentOf("Body Fat", "weight", "bdy_fat_pct"),
			field("Body Fat %", "bdy_fat_pct"),
			field("Visceral Fat Index", "vis_fat_idx"),
			field("Muscle Mass", "msc_mss"),
			shareOf("Muscle Mass %", "weight", "msc_mss"),
			field("Bone Mass", "bon_mss"),
			shareOf("Bone Mass %", "weight", "bon_mss"),
			percentOf("Body Water", "weight", "bdy_wtr_pct"),
			field("Body Water %", "bdy_wtr_pct"),
			field("BMR", "bmr"),
		},
		Help: "9-in-1 body composition (Weight, Body Fat, BMI, Muscle Mass, BMR, Fat-Free Body Weight, " +
			"Visceral Fat, Body Water, Bone Mass)",
	},
	{
		Name:   TypeFora6,
		Fields: []string{"Glucose", "Haematocrit", "Haemoglobin"},
		Help:   "Glucose in mg/dL, Haematocrit in %, and Haemoglobin in g/dL",
	},
}

var byName = func() map[string]RecordType {
	m := make(map[string]RecordType, len(registry))
	for _, rt := range registry {
		m[rt.Name] = rt
	}
	return m
}()

// Lookup returns the record type registered under name
func Lookup(name string) (RecordType, bool) {
	rt, ok := byName[name]
	return rt, ok
}

// RecordTypes returns all registered record types in entry-form order.
// The returned slice is a copy; the registry itself is never mutated.
func RecordTypes() []RecordType {
	out := make([]RecordType, len(registry))
	copy(out, registry)
	return out
}

// Help returns the entry form help text for a record type, or "" if unknown
func Help(name string) string {
	return byName[name].Help
}
