package triage

import (
	"reflect"
	"testing"

	"github.com/linnemanlabs/acuity/internal/patient"
)

func TestEncode_Vitals(t *testing.T) {
	t.Parallel()

	rec := &patient.Record{
		Age:    67,
		Gender: patient.GenderMale,
		Vitals: patient.Vitals{
			HeartRate:    88,
			SystolicBP:   130,
			DiastolicBP:  85,
			TemperatureC: 37.2,
			SpO2:         96,
		},
	}
	fv := Encode(rec)

	if fv.SchemaVersion != FeatureSchemaVersion {
		t.Errorf("schema = %s, want %s", fv.SchemaVersion, FeatureSchemaVersion)
	}
	if len(fv.Names) != len(fv.Values) {
		t.Fatalf("names/values length mismatch: %d vs %d", len(fv.Names), len(fv.Values))
	}

	checks := map[string]float64{
		"age":                    67,
		"sex_male":               1,
		"heart_rate":             88,
		"systolic_bp":            130,
		"diastolic_bp":           85,
		"temperature_c":          37.2,
		"spo2":                   96,
		"pulse_pressure":         45,
		"mean_arterial_pressure": 100,
	}
	for name, want := range checks {
		if got := fv.Value(name); got != want {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
}

func TestEncode_SymptomsAndSeverity(t *testing.T) {
	t.Parallel()

	rec := &patient.Record{
		Age:      50,
		Gender:   patient.GenderFemale,
		Vitals:   patient.Vitals{HeartRate: 90, SystolicBP: 125, DiastolicBP: 80, TemperatureC: 37, SpO2: 97},
		Symptoms: "Chest Pain and shortness of breath, some nausea",
	}
	fv := Encode(rec)

	if fv.Value("sym_chest_pain") != 1 {
		t.Error("sym_chest_pain not set")
	}
	if fv.Value("sym_shortness_of_breath") != 1 {
		t.Error("sym_shortness_of_breath not set")
	}
	if fv.Value("sym_nausea") != 1 {
		t.Error("sym_nausea not set")
	}
	if fv.Value("sym_cough") != 0 {
		t.Error("sym_cough set without mention")
	}
	if got := fv.Value("symptom_severity"); got != 6.5 {
		t.Errorf("symptom_severity = %v, want 6.5", got)
	}
	if fv.Value("sex_male") != 0 {
		t.Error("sex_male should be 0 for female patient")
	}
}

func TestEncode_Comorbidities(t *testing.T) {
	t.Parallel()

	rec := &patient.Record{
		Age:        70,
		Gender:     patient.GenderMale,
		Vitals:     patient.Vitals{HeartRate: 80, SystolicBP: 140, DiastolicBP: 85, TemperatureC: 36.9, SpO2: 95},
		Conditions: []string{"Type 2 Diabetes", "COPD", "coronary artery disease"},
	}
	fv := Encode(rec)

	if fv.Value("has_diabetes") != 1 {
		t.Error("has_diabetes not set")
	}
	if fv.Value("has_respiratory_disease") != 1 {
		t.Error("has_respiratory_disease not set")
	}
	if fv.Value("has_cardiac_disease") != 1 {
		t.Error("has_cardiac_disease not set")
	}
	if fv.Value("has_hypertension") != 0 {
		t.Error("has_hypertension set without a matching condition")
	}
}

func TestEncode_Deterministic(t *testing.T) {
	t.Parallel()

	rec := &patient.Record{
		Age:        33,
		Gender:     patient.GenderOther,
		Vitals:     patient.Vitals{HeartRate: 72, SystolicBP: 110, DiastolicBP: 70, TemperatureC: 36.5, SpO2: 99},
		Conditions: []string{"asthma"},
		Symptoms:   "cough and fatigue",
	}

	a := Encode(rec)
	b := Encode(rec)
	if !reflect.DeepEqual(a, b) {
		t.Error("encoding is not deterministic")
	}
	if !reflect.DeepEqual(a.Names, b.Names) {
		t.Error("feature order differs between encodings")
	}
}

func TestFeatureVector_ValueUnknown(t *testing.T) {
	t.Parallel()

	fv := &FeatureVector{Names: []string{"age"}, Values: []float64{5}}
	if got := fv.Value("weight_kg"); got != 0 {
		t.Errorf("Value(unknown) = %v, want 0", got)
	}
}
