package noteparser

import (
	"math"
	"strings"
	"testing"

	"github.com/linnemanlabs/acuity/internal/patient"
)

func TestParse_CompleteNote(t *testing.T) {
	t.Parallel()

	note := "45-year-old male with chest pain and shortness of breath. " +
		"HR 110, BP 150/95, Temp 37.8C, SpO2 94%. History of hypertension and diabetes."
	res := Parse(note)

	if res.Record.Age != 45 {
		t.Errorf("age = %d, want 45", res.Record.Age)
	}
	if res.Record.Gender != patient.GenderMale {
		t.Errorf("gender = %s, want Male", res.Record.Gender)
	}
	if res.Record.Vitals.HeartRate != 110 {
		t.Errorf("heart rate = %g, want 110", res.Record.Vitals.HeartRate)
	}
	if res.Record.Vitals.SystolicBP != 150 || res.Record.Vitals.DiastolicBP != 95 {
		t.Errorf("bp = %g/%g, want 150/95", res.Record.Vitals.SystolicBP, res.Record.Vitals.DiastolicBP)
	}
	if res.Record.Vitals.TemperatureC != 37.8 {
		t.Errorf("temp = %g, want 37.8", res.Record.Vitals.TemperatureC)
	}
	if res.Record.Vitals.SpO2 != 94 {
		t.Errorf("spo2 = %g, want 94", res.Record.Vitals.SpO2)
	}
	if !strings.Contains(res.Record.Symptoms, "chest pain") || !strings.Contains(res.Record.Symptoms, "shortness of breath") {
		t.Errorf("symptoms = %q", res.Record.Symptoms)
	}
	if len(res.Record.Conditions) != 2 {
		t.Errorf("conditions = %v, want hypertension and diabetes", res.Record.Conditions)
	}
	if res.Confidence != 1.0 {
		t.Errorf("confidence = %g, want 1.0", res.Confidence)
	}
	if len(res.MissingFields) != 0 {
		t.Errorf("missing = %v, want none", res.MissingFields)
	}
}

func TestParse_FahrenheitConversion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		note string
		want float64
	}{
		{"explicit F", "Temp 101.3F", 38.5},
		{"implicit fahrenheit from magnitude", "temperature: 98.6", 37.0},
		{"explicit C", "Temp 38.5C", 38.5},
		{"plain celsius", "temp 37.2", 37.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := Parse(tt.note)
			if math.Abs(res.Record.Vitals.TemperatureC-tt.want) > 0.01 {
				t.Errorf("temp = %g, want %g", res.Record.Vitals.TemperatureC, tt.want)
			}
		})
	}
}

func TestParse_GenderPhrases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		note string
		want patient.Gender
	}{
		{"a 30 year old woman presenting", patient.GenderFemale},
		{"elderly gentleman, 78 yo", patient.GenderMale},
		{"female patient", patient.GenderFemale},
		{"male patient", patient.GenderMale},
	}

	for _, tt := range tests {
		res := Parse(tt.note)
		if res.Record.Gender != tt.want {
			t.Errorf("Parse(%q) gender = %s, want %s", tt.note, res.Record.Gender, tt.want)
		}
	}
}

func TestParse_MissingFieldsLowerConfidence(t *testing.T) {
	t.Parallel()

	res := Parse("Patient complains of dizziness and nausea.")

	if res.Confidence != 1.0/7 {
		t.Errorf("confidence = %g, want 1/7", res.Confidence)
	}
	for _, want := range []string{"age", "gender", "heart_rate", "blood_pressure", "temperature", "spo2"} {
		found := false
		for _, m := range res.MissingFields {
			if m == want {
				found = true
			}
		}
		if !found {
			t.Errorf("missing fields %v lack %q", res.MissingFields, want)
		}
	}
	if !strings.Contains(res.Record.Symptoms, "dizziness") {
		t.Errorf("symptoms = %q", res.Record.Symptoms)
	}
}

func TestParse_EmptyNote(t *testing.T) {
	t.Parallel()

	res := Parse("")
	if res.Confidence != 0 {
		t.Errorf("confidence = %g, want 0", res.Confidence)
	}
	if len(res.MissingFields) != 7 {
		t.Errorf("missing = %v, want all 7", res.MissingFields)
	}
}

func TestParse_LongerSymptomWins(t *testing.T) {
	t.Parallel()

	res := Parse("presents with severe headache")
	if res.Record.Symptoms != "severe headache" {
		t.Errorf("symptoms = %q, want severe headache alone", res.Record.Symptoms)
	}
}

func TestParse_ConditionAliases(t *testing.T) {
	t.Parallel()

	res := Parse("PMH: HTN, diabetic, known afib")
	want := []string{"hypertension", "diabetes", "arrhythmia"}
	if len(res.Record.Conditions) != len(want) {
		t.Fatalf("conditions = %v, want %v", res.Record.Conditions, want)
	}
	for i := range want {
		if res.Record.Conditions[i] != want[i] {
			t.Errorf("conditions[%d] = %q, want %q", i, res.Record.Conditions[i], want[i])
		}
	}
}

func TestParse_Deterministic(t *testing.T) {
	t.Parallel()

	note := "60 yo female, hr 95, bp 130/85, o2 sat 96, cough and fever, copd, asthma"
	a := Parse(note)
	b := Parse(note)
	if a.Record.Symptoms != b.Record.Symptoms {
		t.Error("symptom order differs between parses")
	}
	if len(a.Record.Conditions) != len(b.Record.Conditions) {
		t.Fatal("condition count differs between parses")
	}
	for i := range a.Record.Conditions {
		if a.Record.Conditions[i] != b.Record.Conditions[i] {
			t.Error("condition order differs between parses")
		}
	}
}
