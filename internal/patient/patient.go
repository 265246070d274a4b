// Package patient defines the validated patient record handed to the triage
// engine, and the range/consistency checks applied at intake.
package patient

import (
	"fmt"
	"strings"
)

// Gender is the enumerated gender field of a patient record.
type Gender string

const (
	GenderMale        Gender = "Male"
	GenderFemale      Gender = "Female"
	GenderTransgender Gender = "Transgender"
	GenderOther       Gender = "Others"
)

// Medically plausible vital ranges. Records outside these bounds are rejected
// at the Validate stage before any decision logic runs.
const (
	MinAge = 0
	MaxAge = 120

	MinHeartRate = 30
	MaxHeartRate = 200

	MinSystolicBP = 60
	MaxSystolicBP = 250

	MinDiastolicBP = 40
	MaxDiastolicBP = 150

	MinTemperatureC = 35.0
	MaxTemperatureC = 42.0

	MinSpO2 = 70
	MaxSpO2 = 100
)

// Vitals holds one set of measured vital signs.
type Vitals struct {
	HeartRate    float64 `json:"heart_rate"`
	SystolicBP   float64 `json:"systolic_bp"`
	DiastolicBP  float64 `json:"diastolic_bp"`
	TemperatureC float64 `json:"temperature_c"`
	SpO2         float64 `json:"spo2"`
}

// Record is a single patient presentation. It is created by an upstream
// producer (manual entry, note parser, EHR import) and treated as immutable
// once handed to the engine.
type Record struct {
	Age            int      `json:"age"`
	Gender         Gender   `json:"gender"`
	Vitals         Vitals   `json:"vitals"`
	Conditions     []string `json:"conditions,omitempty"`
	Symptoms       string   `json:"symptoms"`
	ChiefComplaint string   `json:"chief_complaint,omitempty"`
}

// FieldError describes a single invalid field on a record.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationError carries all field errors found on a record. It is returned
// before any decision logic runs and never produces a decision audit entry.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error()
	}
	return "invalid patient record: " + strings.Join(msgs, "; ")
}

// Validate re-checks range and consistency invariants defensively, even
// though upstream producers are expected to enforce them. Returns a
// *ValidationError listing every failing field, or nil.
func (r *Record) Validate() error {
	var fields []FieldError

	add := func(field, format string, args ...any) {
		fields = append(fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if r.Age < MinAge || r.Age > MaxAge {
		add("age", "must be %d..%d, got %d", MinAge, MaxAge, r.Age)
	}

	switch r.Gender {
	case GenderMale, GenderFemale, GenderTransgender, GenderOther:
	case "":
		add("gender", "is required")
	default:
		add("gender", "unknown value %q", r.Gender)
	}

	v := r.Vitals
	if v.HeartRate < MinHeartRate || v.HeartRate > MaxHeartRate {
		add("vitals.heart_rate", "must be %d..%d bpm, got %g", MinHeartRate, MaxHeartRate, v.HeartRate)
	}
	if v.SystolicBP < MinSystolicBP || v.SystolicBP > MaxSystolicBP {
		add("vitals.systolic_bp", "must be %d..%d mmHg, got %g", MinSystolicBP, MaxSystolicBP, v.SystolicBP)
	}
	if v.DiastolicBP < MinDiastolicBP || v.DiastolicBP > MaxDiastolicBP {
		add("vitals.diastolic_bp", "must be %d..%d mmHg, got %g", MinDiastolicBP, MaxDiastolicBP, v.DiastolicBP)
	}
	if v.TemperatureC < MinTemperatureC || v.TemperatureC > MaxTemperatureC {
		add("vitals.temperature_c", "must be %.1f..%.1f C, got %g", MinTemperatureC, MaxTemperatureC, v.TemperatureC)
	}
	if v.SpO2 < MinSpO2 || v.SpO2 > MaxSpO2 {
		add("vitals.spo2", "must be %d..%d %%, got %g", MinSpO2, MaxSpO2, v.SpO2)
	}
	if v.DiastolicBP >= v.SystolicBP {
		add("vitals.diastolic_bp", "must be less than systolic (%g >= %g)", v.DiastolicBP, v.SystolicBP)
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// NormalizedConditions returns the pre-existing conditions lowercased and
// trimmed, for vocabulary matching by the feature encoder.
func (r *Record) NormalizedConditions() []string {
	out := make([]string, 0, len(r.Conditions))
	for _, c := range r.Conditions {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}
