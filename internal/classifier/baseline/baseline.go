// Package baseline implements triage.Classifier with a deterministic
// linear scorer over the encoded features. It serves deployments without a
// model server and acts as the reference behavior envelope in tests.
package baseline

import (
	"context"
	"math"

	"github.com/linnemanlabs/acuity/internal/triage"
)

const modelID = "baseline-linear-v1"

// Classifier scores records without any learned parameters. Stateless and
// safe for concurrent use.
type Classifier struct{}

// New returns the baseline classifier.
func New() *Classifier {
	return &Classifier{}
}

// ModelID implements triage.Classifier.
func (c *Classifier) ModelID() string {
	return modelID
}

// vitalBands are the normal ranges used for deviation scoring. Deviation is
// measured in half-widths of the band so different units compare fairly.
var vitalBands = []struct {
	Feature string
	Low     float64
	High    float64
	Weight  float64
}{
	{"spo2", 94, 100, 2.0},
	{"systolic_bp", 100, 140, 1.2},
	{"diastolic_bp", 60, 90, 0.8},
	{"heart_rate", 60, 100, 1.2},
	{"temperature_c", 36.1, 38.0, 1.0},
}

// departmentSignals routes by dominant symptom group when the score alone
// does not demand the emergency department.
var departmentSignals = []struct {
	Features   []string
	Department string
}{
	{[]string{"sym_chest_pain", "sym_palpitations"}, triage.DeptCardiology},
	{[]string{"sym_shortness_of_breath", "sym_difficulty_breathing", "sym_cough"}, triage.DeptPulmonology},
	{[]string{"sym_confusion", "sym_severe_headache", "sym_dizziness"}, triage.DeptNeurology},
}

// Predict derives an acuity score from vital deviation, symptom severity,
// comorbidity load, and age extremes, then maps it onto the three risk
// classes through a softmax over fixed breakpoints.
func (c *Classifier) Predict(ctx context.Context, fv *triage.FeatureVector) (*triage.ModelOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var score float64
	var contribs []triage.Contribution

	for _, band := range vitalBands {
		v := fv.Value(band.Feature)
		mid := (band.Low + band.High) / 2
		half := (band.High - band.Low) / 2
		dev := (math.Abs(v-mid) - half) / half
		if dev > 0 {
			w := band.Weight * dev
			score += w
			contribs = append(contribs, triage.Contribution{Feature: band.Feature, Weight: w})
		}
	}

	if sev := fv.Value("symptom_severity"); sev > 0 {
		w := 0.4 * sev
		score += w
		contribs = append(contribs, triage.Contribution{Feature: "symptom_severity", Weight: w})
	}

	for _, flag := range []string{"has_hypertension", "has_diabetes", "has_cardiac_disease", "has_respiratory_disease"} {
		if fv.Value(flag) > 0 {
			score += 0.3
			contribs = append(contribs, triage.Contribution{Feature: flag, Weight: 0.3})
		}
	}

	age := fv.Value("age")
	if age > 65 {
		w := 0.3 + (age-65)/100
		score += w
		contribs = append(contribs, triage.Contribution{Feature: "age", Weight: w})
	} else if age < 5 {
		score += 0.4
		contribs = append(contribs, triage.Contribution{Feature: "age", Weight: 0.4})
	}

	probs := classProbabilities(score)
	risk := argmax(probs)

	return &triage.ModelOutput{
		Risk:          risk,
		Probabilities: probs,
		Departments:   c.departments(fv, risk),
		Contributions: contribs,
	}, nil
}

// classProbabilities converts the scalar score into a distribution over the
// three classes. Breakpoints 1.2 and 2.8 are where Medium and High take
// over; the softmax keeps neighboring classes plausible near a boundary.
func classProbabilities(score float64) map[triage.RiskLevel]float64 {
	logits := map[triage.RiskLevel]float64{
		triage.RiskLow:    -(score - 1.2),
		triage.RiskMedium: -math.Abs(score-2.0) + 0.8,
		triage.RiskHigh:   score - 2.8,
	}
	var denom float64
	exps := make(map[triage.RiskLevel]float64, len(logits))
	for label, l := range logits {
		e := math.Exp(l)
		exps[label] = e
		denom += e
	}
	probs := make(map[triage.RiskLevel]float64, len(exps))
	for label, e := range exps {
		probs[label] = e / denom
	}
	return probs
}

func argmax(probs map[triage.RiskLevel]float64) triage.RiskLevel {
	best := triage.RiskLow
	for _, label := range []triage.RiskLevel{triage.RiskMedium, triage.RiskHigh} {
		if probs[label] > probs[best] {
			best = label
		}
	}
	return best
}

func (c *Classifier) departments(fv *triage.FeatureVector, risk triage.RiskLevel) []string {
	var out []string
	if risk == triage.RiskHigh {
		out = append(out, triage.DeptEmergency)
	}
	for _, sig := range departmentSignals {
		for _, f := range sig.Features {
			if fv.Value(f) > 0 {
				out = append(out, sig.Department)
				break
			}
		}
	}
	if len(out) == 0 {
		out = append(out, triage.DeptGeneral)
	}
	return out
}
