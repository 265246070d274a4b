package triage

import (
	"strings"

	"github.com/linnemanlabs/acuity/internal/patient"
)

// FeatureSchemaVersion identifies the encoding layout. Any change to the
// feature list or its order requires a new version.
const FeatureSchemaVersion = "v1"

// FeatureVector is an encoded patient record. Names and Values are parallel
// and follow the fixed v1 order.
type FeatureVector struct {
	SchemaVersion string    `json:"schema_version"`
	Names         []string  `json:"names"`
	Values        []float64 `json:"values"`
}

// Value returns the named feature, or 0 if the name is not in the schema.
func (fv *FeatureVector) Value(name string) float64 {
	v, _ := fv.Lookup(name)
	return v
}

// Lookup returns the named feature and whether it is part of the schema.
func (fv *FeatureVector) Lookup(name string) (float64, bool) {
	for i, n := range fv.Names {
		if n == name {
			return fv.Values[i], true
		}
	}
	return 0, false
}

// symptomKeywords is the fixed v1 symptom vocabulary, in schema order. Each
// keyword becomes a binary feature and contributes its weight to the
// severity score when present.
var symptomKeywords = []struct {
	Keyword string
	Weight  float64
}{
	{"chest pain", 3.0},
	{"shortness of breath", 3.0},
	{"difficulty breathing", 3.0},
	{"confusion", 2.5},
	{"severe headache", 2.0},
	{"dizziness", 1.5},
	{"fever", 1.5},
	{"vomiting", 1.5},
	{"abdominal pain", 1.5},
	{"palpitations", 1.5},
	{"cough", 1.0},
	{"fatigue", 0.5},
	{"nausea", 0.5},
	{"headache", 0.5},
}

// comorbidityVocab maps condition substrings to the v1 comorbidity flags.
var comorbidityVocab = map[string][]string{
	"has_hypertension":        {"hypertension", "high blood pressure"},
	"has_diabetes":            {"diabetes", "diabetic"},
	"has_cardiac_disease":     {"heart", "cardiac", "coronary", "arrhythmia"},
	"has_respiratory_disease": {"asthma", "copd", "respiratory", "lung"},
}

// comorbidityOrder fixes flag position in the vector.
var comorbidityOrder = []string{
	"has_hypertension",
	"has_diabetes",
	"has_cardiac_disease",
	"has_respiratory_disease",
}

// Encode maps a validated record onto the v1 feature vector. Encoding is
// deterministic and side-effect free; the same record always yields the
// same vector.
func Encode(rec *patient.Record) *FeatureVector {
	n := 9 + len(comorbidityOrder) + len(symptomKeywords) + 1
	fv := &FeatureVector{
		SchemaVersion: FeatureSchemaVersion,
		Names:         make([]string, 0, n),
		Values:        make([]float64, 0, n),
	}

	put := func(name string, v float64) {
		fv.Names = append(fv.Names, name)
		fv.Values = append(fv.Values, v)
	}

	v := rec.Vitals
	pulsePressure := v.SystolicBP - v.DiastolicBP

	put("age", float64(rec.Age))
	put("sex_male", boolFeature(rec.Gender == patient.GenderMale))
	put("heart_rate", v.HeartRate)
	put("systolic_bp", v.SystolicBP)
	put("diastolic_bp", v.DiastolicBP)
	put("temperature_c", v.TemperatureC)
	put("spo2", v.SpO2)
	put("pulse_pressure", pulsePressure)
	put("mean_arterial_pressure", v.DiastolicBP+pulsePressure/3)

	conditions := rec.NormalizedConditions()
	for _, flag := range comorbidityOrder {
		put(flag, boolFeature(matchesAny(conditions, comorbidityVocab[flag])))
	}

	symptoms := strings.ToLower(rec.Symptoms)
	var severity float64
	for _, kw := range symptomKeywords {
		present := strings.Contains(symptoms, kw.Keyword)
		put("sym_"+strings.ReplaceAll(kw.Keyword, " ", "_"), boolFeature(present))
		if present {
			severity += kw.Weight
		}
	}
	put("symptom_severity", severity)

	return fv
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func matchesAny(conditions []string, terms []string) bool {
	for _, c := range conditions {
		for _, t := range terms {
			if strings.Contains(c, t) {
				return true
			}
		}
	}
	return false
}
