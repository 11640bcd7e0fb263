package entry

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/mrcode/health-manager/internal/catalog"
	"github.com/mrcode/health-manager/internal/models"
)

var (
	ts       = time.Date(2025, time.January, 15, 7, 30, 0, 0, time.UTC)
	approx   = cmpopts.EquateApprox(0, 1e-9)
	bmiAt66  = 150.0 * 703 / (66 * 66)
	testNote = "morning"
)

func row(name string, value float64, unit string) models.Measurement {
	return models.Measurement{Time: ts, Name: name, Value: value, Unit: unit, Note: testNote}
}

func TestDecode_Arity(t *testing.T) {
	for _, rt := range catalog.RecordTypes() {
		t.Run(rt.Name, func(t *testing.T) {
			for _, count := range []int{0, rt.Arity() - 1, rt.Arity(), rt.Arity() + 1} {
				if count < 0 {
					continue
				}

				valid := strings.TrimSpace(strings.Repeat("1.5 ", count))
				mixed := strings.TrimSpace(strings.Repeat("abc 2 ", count))
				mixed = strings.Join(strings.Fields(mixed)[:count], " ")

				_, err := Decode(rt, valid)
				var perr *ParseError
				if count == rt.Arity() {
					if err != nil {
						t.Errorf("Decode(%d valid values) error = %v", count, err)
					}
				} else {
					if !errors.As(err, &perr) {
						t.Fatalf("Decode(%d valid values) error = %v, want *ParseError", count, err)
					}
					if perr.Want != rt.Arity() || perr.Got != count {
						t.Errorf("ParseError want/got = %d/%d, expected %d/%d", perr.Want, perr.Got, rt.Arity(), count)
					}
				}

				if count == 0 {
					continue
				}
				_, err = Decode(rt, mixed)
				if !errors.As(err, &perr) {
					t.Errorf("Decode(%q) error = %v, want *ParseError", mixed, err)
				}
				if count != rt.Arity() && perr != nil && perr.Token != "" {
					t.Errorf("count mismatch should be reported before token %q", perr.Token)
				}
			}
		})
	}
}

func TestDecode_Tokens(t *testing.T) {
	rt, _ := catalog.Lookup(catalog.TypeBloodPressure)

	tests := []struct {
		name    string
		input   string
		wantErr bool
		want    Fields
	}{
		{"Plain", "120 80 60", false, Fields{"Systolic": 120, "Diastolic": 80, "Pulse": 60}},
		{"Extra whitespace", "  120\t80   60\n", false, Fields{"Systolic": 120, "Diastolic": 80, "Pulse": 60}},
		{"Decimals and exponent", "1.2e2 80.5 -1", false, Fields{"Systolic": 120, "Diastolic": 80.5, "Pulse": -1}},
		{"Word", "120 eighty 60", true, nil},
		{"NaN", "120 NaN 60", true, nil},
		{"Inf", "120 80 +Inf", true, nil},
		{"Comma separated", "120,80,60", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(rt, tt.input)
			if tt.wantErr {
				var perr *ParseError
				if !errors.As(err, &perr) {
					t.Fatalf("Decode(%q) error = %v, want *ParseError", tt.input, err)
				}
				if got != nil {
					t.Errorf("Decode(%q) returned fields alongside an error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode(%q) error = %v", tt.input, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Decode(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestBMI(t *testing.T) {
	if got := BMI(150, 66); got != 150.0*703/(66*66) {
		t.Errorf("BMI(150, 66) = %v", got)
	}
	if diff := BMI(150, 66) - 24.208; diff > 1e-3 || diff < -1e-3 {
		t.Errorf("BMI(150, 66) = %v, want about 24.21", BMI(150, 66))
	}
}

func TestProcess_CS10G(t *testing.T) {
	rows, err := Engine{}.Process(Entry{Time: ts, RecordType: catalog.TypeCS10G, Values: "150 20 24.2 120 1600 130 8 55 6", Note: testNote})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	want := []models.Measurement{
		row("Weight", 150, "lbs"),
		row("BMI", bmiAt66, ""),
		row("Body Fat", 30, "lbs"),
		row("Body Fat %", 20, "%"),
		row("Visceral Fat Index", 8, ""),
		row("Muscle Mass", 120, "lbs"),
		row("Muscle Mass %", 80, "%"),
		row("Bone Mass", 6, "lbs"),
		row("Bone Mass %", 4, "%"),
		row("Body Water", 82.5, "lbs"),
		row("Body Water %", 55, "%"),
		row("BMR", 1600, "kcal"),
	}
	if diff := cmp.Diff(want, rows, approx); diff != "" {
		t.Errorf("Process() mismatch (-want +got):\n%s", diff)
	}
}

func TestProcess_LipidPanel(t *testing.T) {
	rows, err := Engine{}.Process(Entry{Time: ts, RecordType: catalog.TypeLipidPanel, Values: "200 150 50 120", Note: testNote})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	want := []models.Measurement{
		row("Cholesterol", 200, "mg/dL"),
		row("Triglycerides", 150, "mg/dL"),
		row("HDL", 50, "mg/dL"),
		row("LDL", 120, "mg/dL"),
		row("TC-HDL", 150, "mg/dL"),
		row("TC/HDL", 4, ""),
	}
	if diff := cmp.Diff(want, rows, approx); diff != "" {
		t.Errorf("Process() mismatch (-want +got):\n%s", diff)
	}
}

func TestProcess_FitPlusNegativeVisceralFat(t *testing.T) {
	// Body fat below subcutaneous fat is stored as observed, not clamped.
	values := "200 10 30 40 120 18 1700 150 15 9 50 7 45"
	rows, err := Engine{Height: 70}.Process(Entry{Time: ts, RecordType: catalog.TypeFitPlusLN, Values: values, Note: testNote})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(rows) != 21 {
		t.Fatalf("len(rows) = %d, want 21", len(rows))
	}

	byName := make(map[string]float64, len(rows))
	for _, r := range rows {
		byName[r.Name] = r.Value
	}

	checks := map[string]float64{
		"BMI":               200.0 * 703 / (70 * 70),
		"Visceral Fat %":    -5,
		"Visceral Fat":      -10,
		"Skeletal Muscle":   80,
		"Skeletal Muscle %": 40,
		"Muscle Mass %":     60,
		"Bone Mass %":       3.5,
		"Protein":           36,
		"Metabolic Age":     45,
	}
	for name, want := range checks {
		if !cmp.Equal(byName[name], want, approx) {
			t.Errorf("%s = %v, want %v", name, byName[name], want)
		}
	}
}

func TestProcess_CS10GBodyComposition(t *testing.T) {
	values := "180 55 16 25 4 70 10 110 -5 -6 2 80 125 1750 135 18 40"
	rows, err := Engine{}.Process(Entry{Time: ts, RecordType: catalog.TypeCS10GComposition, Values: values})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(rows) != 26 {
		t.Fatalf("len(rows) = %d, want 26", len(rows))
	}
	last := rows[len(rows)-1]
	if last.Name != "Health Assessment" || last.Value != 80 || last.Unit != "Points" {
		t.Errorf("last row = %+v, want Health Assessment 80 Points", last)
	}
	for _, r := range rows {
		if r.Name == "Bone Mass" && !cmp.Equal(r.Value, 7.2, approx) {
			t.Errorf("Bone Mass = %v, want 7.2", r.Value)
		}
	}
}

func TestProcess_GenericPath(t *testing.T) {
	tests := []struct {
		name       string
		recordType string
		values     string
		want       []models.Measurement
	}{
		{
			name:       "Weight adds BMI",
			recordType: catalog.TypeWeight,
			values:     "150",
			want:       []models.Measurement{row("Weight", 150, "lbs"), row("BMI", bmiAt66, "")},
		},
		{
			name:       "Glucose Ketone adds Dr. Boz Ratio",
			recordType: catalog.TypeGlucoseKetone,
			values:     "90 1.5",
			want: []models.Measurement{
				row("Glucose", 90, "mg/dL"),
				row("Ketone", 1.5, "mmol/L"),
				row("Dr. Boz Ratio", 60, ""),
			},
		},
		{
			name:       "Glucose alone has no ratio",
			recordType: catalog.TypeGlucose,
			values:     "101",
			want:       []models.Measurement{row("Glucose", 101, "mg/dL")},
		},
		{
			name:       "Blood pressure",
			recordType: catalog.TypeBloodPressure,
			values:     "120 80 62",
			want: []models.Measurement{
				row("Systolic", 120, "mmHg"),
				row("Diastolic", 80, "mmHg"),
				row("Pulse", 62, "Beats/min"),
			},
		},
		{
			name:       "Fora 6",
			recordType: catalog.TypeFora6,
			values:     "95 42 14",
			want: []models.Measurement{
				row("Glucose", 95, "mg/dL"),
				row("Haematocrit", 42, "%"),
				row("Haemoglobin", 14, "g/dL"),
			},
		},
		{
			name:       "Uric acid",
			recordType: catalog.TypeUricAcid,
			values:     "5.5",
			want:       []models.Measurement{row("Uric Acid", 5.5, "mg/dL")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := Engine{}.Process(Entry{Time: ts, RecordType: tt.recordType, Values: tt.values, Note: testNote})
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, rows, approx); diff != "" {
				t.Errorf("Process() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDerive_CholesterolAlias(t *testing.T) {
	rt := catalog.RecordType{Name: "TC HDL", Fields: []string{"TC", "HDL"}}
	rows, err := Engine{}.Derive(rt, Fields{"TC": 210, "HDL": 70}, ts, testNote)
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}

	want := []models.Measurement{
		row("Cholesterol", 210, "mg/dL"),
		row("HDL", 70, "mg/dL"),
		row("TC-HDL", 140, "mg/dL"),
		row("TC/HDL", 3, ""),
	}
	if diff := cmp.Diff(want, rows, approx); diff != "" {
		t.Errorf("Derive() mismatch (-want +got):\n%s", diff)
	}
}

func TestDerive_MissingField(t *testing.T) {
	rt, _ := catalog.Lookup(catalog.TypeCS10G)
	rows, err := Engine{}.Derive(rt, Fields{"weight": 150}, ts, "")

	var merr *MissingFieldError
	if !errors.As(err, &merr) {
		t.Fatalf("Derive() error = %v, want *MissingFieldError", err)
	}
	if merr.Field != "bdy_fat_pct" {
		t.Errorf("MissingFieldError.Field = %q, want bdy_fat_pct", merr.Field)
	}
	if rows != nil {
		t.Error("Derive() returned rows alongside an error")
	}
}

func TestProcess_Errors(t *testing.T) {
	tests := []struct {
		name    string
		entry   Entry
		wantErr error
	}{
		{"Unknown record type", Entry{RecordType: "Omron X7", Values: "1"}, ErrUnknownRecordType},
		{"Zero ketone", Entry{RecordType: catalog.TypeGlucoseKetone, Values: "90 0"}, ErrZeroDivisor},
		{"Zero HDL", Entry{RecordType: catalog.TypeLipidPanel, Values: "200 150 0 120"}, ErrZeroDivisor},
		{"Zero weight", Entry{RecordType: catalog.TypeCS10G, Values: "0 20 24.2 120 1600 130 8 55 6"}, ErrZeroDivisor},
		{"Overflow", Entry{RecordType: catalog.TypeWeight, Values: "1e308"}, ErrNotFinite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := Engine{}.Process(tt.entry)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Process() error = %v, want %v", err, tt.wantErr)
			}
			if rows != nil {
				t.Error("Process() returned rows alongside an error")
			}
		})
	}
}

func TestEngine_DefaultHeight(t *testing.T) {
	if got := (Engine{Height: -1}).height(); got != DefaultHeight {
		t.Errorf("height() = %v, want %v", got, DefaultHeight)
	}
	if got := NewEngine(72).height(); got != 72 {
		t.Errorf("height() = %v, want 72", got)
	}
}
