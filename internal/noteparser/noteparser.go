// Package noteparser extracts a structured patient record from free-text
// clinical notes. It is best-effort: anything it cannot find is reported in
// the missing-fields list rather than guessed.
package noteparser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/linnemanlabs/acuity/internal/patient"
)

// extractableFields is the number of independently extracted fields used
// for the confidence denominator: age, gender, heart rate, blood pressure,
// temperature, oxygen saturation, symptoms.
const extractableFields = 7

// Result is the outcome of parsing one note. Confidence is the fraction of
// extractable fields actually found.
type Result struct {
	Record        patient.Record `json:"record"`
	Confidence    float64        `json:"extraction_confidence"`
	MissingFields []string       `json:"missing_fields,omitempty"`
}

var (
	reHeartRate = regexp.MustCompile(`(?i)(?:\bhr\b|heart\s*rate|pulse)\s*[:=]?\s*(\d{2,3})`)
	reBP        = regexp.MustCompile(`(?i)(?:\bbp\b|blood\s*pressure)\s*[:=]?\s*(\d{2,3})\s*/\s*(\d{2,3})`)
	reTemp      = regexp.MustCompile(`(?i)(?:\btemp\b|temperature)\s*[:=]?\s*(\d{2,3}(?:\.\d+)?)\s*°?\s*([cf])?\b`)
	reSpO2      = regexp.MustCompile(`(?i)(?:spo2|o2\s*sat(?:uration)?|oxygen\s*saturation)\s*[:=]?\s*(\d{2,3})\s*%?`)
	reAge       = regexp.MustCompile(`(?i)(\d{1,3})\s*[- ]?\s*(?:years?\s*[- ]?\s*old|y/?o\b)`)
	reFemale    = regexp.MustCompile(`(?i)\b(?:female|woman|lady|girl)\b`)
	reMale      = regexp.MustCompile(`(?i)\b(?:male|man|gentleman|boy)\b`)
)

// conditionKeywords maps note phrasing to canonical condition names.
// Ordered so extraction output is deterministic.
var conditionKeywords = []struct {
	Keyword   string
	Canonical string
}{
	{"hypertension", "hypertension"},
	{"high blood pressure", "hypertension"},
	{"htn", "hypertension"},
	{"diabetes", "diabetes"},
	{"diabetic", "diabetes"},
	{"asthma", "asthma"},
	{"copd", "copd"},
	{"heart disease", "heart disease"},
	{"coronary", "heart disease"},
	{"cardiac", "heart disease"},
	{"arrhythmia", "arrhythmia"},
	{"afib", "arrhythmia"},
	{"kidney disease", "kidney disease"},
	{"cancer", "cancer"},
}

// symptomKeywords are recognized complaint phrases, longest first so that
// "severe headache" wins over "headache".
var symptomKeywords = []string{
	"shortness of breath",
	"difficulty breathing",
	"severe headache",
	"abdominal pain",
	"chest pain",
	"palpitations",
	"confusion",
	"dizziness",
	"vomiting",
	"headache",
	"fatigue",
	"nausea",
	"fever",
	"cough",
}

// Parse extracts what it can from a clinical note. The returned record is
// not validated; callers decide whether partial extraction is acceptable.
func Parse(note string) *Result {
	res := &Result{}
	lower := strings.ToLower(note)
	found := 0

	if m := reAge.FindStringSubmatch(note); m != nil {
		res.Record.Age, _ = strconv.Atoi(m[1])
		found++
	} else {
		res.MissingFields = append(res.MissingFields, "age")
	}

	// Check female first since "female" contains "male".
	switch {
	case reFemale.MatchString(note):
		res.Record.Gender = patient.GenderFemale
		found++
	case reMale.MatchString(note):
		res.Record.Gender = patient.GenderMale
		found++
	default:
		res.MissingFields = append(res.MissingFields, "gender")
	}

	if m := reHeartRate.FindStringSubmatch(note); m != nil {
		res.Record.Vitals.HeartRate = parseFloat(m[1])
		found++
	} else {
		res.MissingFields = append(res.MissingFields, "heart_rate")
	}

	if m := reBP.FindStringSubmatch(note); m != nil {
		res.Record.Vitals.SystolicBP = parseFloat(m[1])
		res.Record.Vitals.DiastolicBP = parseFloat(m[2])
		found++
	} else {
		res.MissingFields = append(res.MissingFields, "blood_pressure")
	}

	if m := reTemp.FindStringSubmatch(note); m != nil {
		res.Record.Vitals.TemperatureC = normalizeTemp(parseFloat(m[1]), m[2])
		found++
	} else {
		res.MissingFields = append(res.MissingFields, "temperature")
	}

	if m := reSpO2.FindStringSubmatch(note); m != nil {
		res.Record.Vitals.SpO2 = parseFloat(m[1])
		found++
	} else {
		res.MissingFields = append(res.MissingFields, "spo2")
	}

	for _, ck := range conditionKeywords {
		if strings.Contains(lower, ck.Keyword) && !contains(res.Record.Conditions, ck.Canonical) {
			res.Record.Conditions = append(res.Record.Conditions, ck.Canonical)
		}
	}

	var symptoms []string
	for _, kw := range symptomKeywords {
		if strings.Contains(lower, kw) && !coveredBy(symptoms, kw) {
			symptoms = append(symptoms, kw)
		}
	}
	if len(symptoms) > 0 {
		res.Record.Symptoms = strings.Join(symptoms, ", ")
		found++
	} else {
		res.MissingFields = append(res.MissingFields, "symptoms")
	}

	res.Confidence = float64(found) / extractableFields
	return res
}

// normalizeTemp converts to Celsius. An explicit F unit or an implausibly
// high Celsius reading both mean Fahrenheit.
func normalizeTemp(v float64, unit string) float64 {
	if strings.EqualFold(unit, "f") || (unit == "" && v > 45) {
		return (v - 32) * 5 / 9
	}
	return v
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

// coveredBy reports whether kw already appears inside a longer matched
// symptom, e.g. "headache" inside "severe headache".
func coveredBy(matched []string, kw string) bool {
	for _, m := range matched {
		if strings.Contains(m, kw) {
			return true
		}
	}
	return false
}
