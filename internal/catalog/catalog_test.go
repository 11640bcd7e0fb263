package catalog

import (
	"testing"
)

func TestUnit(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"Weight", "lbs"},
		{"Glucose", "mg/dL"},
		{"Ketone", "mmol/L"},
		{"Pulse", "Beats/min"},
		{"Body Fat %", "%"},
		{"BMI", ""},
		{"Metabolic Age", "Year"},
		{"Something Unknown", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Unit(tt.name); got != tt.expected {
				t.Errorf("Unit(%q) = %q, want %q", tt.name, got, tt.expected)
			}
		})
	}
}

func TestRecordTypes_Arity(t *testing.T) {
	tests := []struct {
		name  string
		arity int
	}{
		{TypeWeight, 1},
		{TypeBloodPressure, 3},
		{TypeGlucoseKetone, 2},
		{TypeGlucose, 1},
		{TypeKetone, 1},
		{TypeLipidPanel, 4},
		{TypeCholesterol, 1},
		{TypeUricAcid, 1},
		{TypeFitPlusLN, 13},
		{TypeCS10GComposition, 17},
		{TypeCS10G, 9},
		{TypeFora6, 3},
	}

	if got := len(RecordTypes()); got != len(tests) {
		t.Fatalf("len(RecordTypes()) = %d, want %d", got, len(tests))
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, ok := Lookup(tt.name)
			if !ok {
				t.Fatalf("Lookup(%q) not found", tt.name)
			}
			if rt.Arity() != tt.arity {
				t.Errorf("Arity() = %d, want %d", rt.Arity(), tt.arity)
			}
		})
	}
}

func TestRecordTypes_OutputsReferenceDeclaredFields(t *testing.T) {
	for _, rt := range RecordTypes() {
		declared := make(map[string]bool, len(rt.Fields))
		for _, f := range rt.Fields {
			declared[f] = true
		}
		for _, out := range rt.Outputs {
			for _, arg := range out.Args {
				if !declared[arg] {
					t.Errorf("%s: output %q references undeclared field %q", rt.Name, out.Name, arg)
				}
			}
		}
	}
}

func TestRecordTypes_OutputNamesAreCatalogued(t *testing.T) {
	for _, rt := range RecordTypes() {
		for _, out := range rt.Outputs {
			if !Known(out.Name) {
				t.Errorf("%s: output %q missing from the unit catalog", rt.Name, out.Name)
			}
		}
	}
}

func TestRecordTypes_FieldOrder(t *testing.T) {
	rt, _ := Lookup(TypeCS10G)
	want := []string{"weight", "bdy_fat_pct", "bmi", "msc_mss", "bmr", "ff_wgt", "vis_fat_idx", "bdy_wtr_pct", "bon_mss"}
	for i, f := range want {
		if rt.Fields[i] != f {
			t.Errorf("Fields[%d] = %q, want %q", i, rt.Fields[i], f)
		}
	}
}

func TestLookup_Unknown(t *testing.T) {
	if _, ok := Lookup("Omron X7"); ok {
		t.Error("Lookup of an unregistered type should fail")
	}
}

func TestGeneric(t *testing.T) {
	weight, _ := Lookup(TypeWeight)
	if !weight.Generic() {
		t.Error("Weight should take the generic path")
	}
	scale, _ := Lookup(TypeFitPlusLN)
	if scale.Generic() {
		t.Error("GE Fit Plus LN should have explicit outputs")
	}
	if len(scale.Outputs) != 21 {
		t.Errorf("GE Fit Plus LN outputs = %d, want 21", len(scale.Outputs))
	}
	comp, _ := Lookup(TypeCS10GComposition)
	if len(comp.Outputs) != 26 {
		t.Errorf("GE CS10G Body Composition outputs = %d, want 26", len(comp.Outputs))
	}
}

func TestHelp(t *testing.T) {
	if got := Help(TypeWeight); got != "Body weight in pounds" {
		t.Errorf("Help(%q) = %q", TypeWeight, got)
	}
	if got := Help("Nope"); got != "" {
		t.Errorf("Help(unknown) = %q, want empty", got)
	}
	for _, rt := range RecordTypes() {
		if Help(rt.Name) == "" {
			t.Errorf("record type %q has no help text", rt.Name)
		}
	}
}

func TestCanonical(t *testing.T) {
	tests := []struct{ in, want string }{
		{"TC", "Cholesterol"},
		{"Cholesterol", "Cholesterol"},
		{"HDL", "HDL"},
	}
	for _, tt := range tests {
		if got := Canonical(tt.in); got != tt.want {
			t.Errorf("Canonical(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
