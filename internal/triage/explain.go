package triage

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/linnemanlabs/acuity/internal/patient"
)

const maxExplanationFactors = 5

// featurePhrases maps encoded feature names to clinician-facing wording.
// Features without an entry fall back to a generic phrase; no numeric
// contribution values are ever invented.
var featurePhrases = map[string]string{
	"age":                      "patient age",
	"heart_rate":               "heart rate",
	"systolic_bp":              "systolic blood pressure",
	"diastolic_bp":             "diastolic blood pressure",
	"temperature_c":            "body temperature",
	"spo2":                     "oxygen saturation",
	"pulse_pressure":           "pulse pressure",
	"mean_arterial_pressure":   "mean arterial pressure",
	"has_hypertension":         "history of hypertension",
	"has_diabetes":             "history of diabetes",
	"has_cardiac_disease":      "history of cardiac disease",
	"has_respiratory_disease":  "history of respiratory disease",
	"symptom_severity":         "overall symptom severity",
	"sym_chest_pain":           "reported chest pain",
	"sym_shortness_of_breath":  "reported shortness of breath",
	"sym_difficulty_breathing": "reported difficulty breathing",
	"sym_confusion":            "reported confusion",
	"sym_severe_headache":      "reported severe headache",
	"sym_fever":                "reported fever",
	"sym_palpitations":         "reported palpitations",
	"sym_abdominal_pain":       "reported abdominal pain",
}

func phraseFor(feature string) string {
	if p, ok := featurePhrases[feature]; ok {
		return p
	}
	return fmt.Sprintf("clinical indicator %q", feature)
}

// binaryFeature reports whether the feature is a presence flag, whose value
// adds nothing to the rendered phrase.
func binaryFeature(name string) bool {
	return name == "sex_male" || strings.HasPrefix(name, "has_") || strings.HasPrefix(name, "sym_")
}

func formatValue(name string, v float64) string {
	if name == "spo2" {
		return fmt.Sprintf("%g%%", v)
	}
	return fmt.Sprintf("%g", v)
}

// ExplainContributions renders the top contributions by absolute weight,
// strongest first, capped at five. Each phrase embeds the observed value
// from the encoded vector; a contribution naming a feature outside the
// schema degrades to a generic phrase with no number attached.
func ExplainContributions(contribs []Contribution, fv *FeatureVector) []string {
	sorted := make([]Contribution, len(contribs))
	copy(sorted, contribs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return math.Abs(sorted[i].Weight) > math.Abs(sorted[j].Weight)
	})
	if len(sorted) > maxExplanationFactors {
		sorted = sorted[:maxExplanationFactors]
	}
	out := make([]string, 0, len(sorted))
	for _, c := range sorted {
		direction := "raised"
		if c.Weight < 0 {
			direction = "lowered"
		}
		v, ok := fv.Lookup(c.Feature)
		switch {
		case !ok:
			out = append(out, fmt.Sprintf("%s contributed to the assessment", phraseFor(c.Feature)))
		case binaryFeature(c.Feature):
			out = append(out, fmt.Sprintf("%s %s the assessed risk", phraseFor(c.Feature), direction))
		default:
			out = append(out, fmt.Sprintf("%s of %s %s the assessed risk",
				phraseFor(c.Feature), formatValue(c.Feature, v), direction))
		}
	}
	return out
}

// vitalNorms gives the normal band midpoints used to rank out-of-range
// vitals when the model offers no contributions. Deviation is measured in
// half-widths of the normal band so different units compare fairly.
var vitalNorms = []struct {
	Feature string
	Low     float64
	High    float64
}{
	{"spo2", 94, 100},
	{"systolic_bp", 100, 140},
	{"diastolic_bp", 60, 90},
	{"heart_rate", 60, 100},
	{"temperature_c", 36.1, 38.0},
}

// HeuristicFactors derives top factors from the raw record when the model
// offers no contributions: out-of-range vitals ranked by normalized
// deviation, then key symptoms, history flags, and age extremes. Capped at
// five.
func HeuristicFactors(rec *patient.Record, fv *FeatureVector) []string {
	type ranked struct {
		phrase string
		score  float64
	}
	var factors []ranked

	for _, n := range vitalNorms {
		v := fv.Value(n.Feature)
		mid := (n.Low + n.High) / 2
		half := (n.High - n.Low) / 2
		if v < n.Low || v > n.High {
			dev := math.Abs(v-mid) / half
			factors = append(factors, ranked{
				phrase: fmt.Sprintf("%s outside normal range (%g)", phraseFor(n.Feature), v),
				score:  dev,
			})
		}
	}
	sort.SliceStable(factors, func(i, j int) bool { return factors[i].score > factors[j].score })

	out := make([]string, 0, maxExplanationFactors)
	for _, f := range factors {
		out = append(out, f.phrase)
	}

	for _, sym := range []string{"sym_chest_pain", "sym_shortness_of_breath", "sym_difficulty_breathing", "sym_confusion"} {
		if fv.Value(sym) > 0 {
			out = append(out, phraseFor(sym))
		}
	}
	for _, flag := range comorbidityOrder {
		if fv.Value(flag) > 0 {
			out = append(out, phraseFor(flag))
		}
	}
	if rec.Age > 65 {
		out = append(out, "advanced age (over 65)")
	} else if rec.Age < 5 {
		out = append(out, "young pediatric patient (under 5)")
	}

	if len(out) > maxExplanationFactors {
		out = out[:maxExplanationFactors]
	}
	return out
}
