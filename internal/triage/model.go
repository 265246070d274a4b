package triage

import "time"

// RiskLevel is the triage acuity label.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// rank orders risk levels for comparison. Unknown labels rank below Low so
// they can never win a max.
func (r RiskLevel) rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	}
	return 0
}

// Valid reports whether r is one of the three known labels.
func (r RiskLevel) Valid() bool {
	return r.rank() > 0
}

// maxRisk returns the higher of two risk levels.
func maxRisk(a, b RiskLevel) RiskLevel {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// Department routing targets. Free-form strings are accepted from the model
// but the canonical set is what the rule table uses.
const (
	DeptEmergency   = "Emergency"
	DeptCardiology  = "Cardiology"
	DeptPulmonology = "Pulmonology"
	DeptNeurology   = "Neurology"
	DeptPediatrics  = "Pediatrics"
	DeptRespiratory = "Respiratory"
	DeptICU         = "ICU"
	DeptGeneral     = "General Medicine"
)

// DecisionPath records which branch produced the final decision.
type DecisionPath string

const (
	PathRule     DecisionPath = "rule"
	PathModel    DecisionPath = "model"
	PathFailSafe DecisionPath = "failsafe"
)

// Contribution is one feature's signed weight in a model prediction.
type Contribution struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

// ModelOutput is what a classifier returns for one encoded record.
// Contributions are optional; an empty slice means the model offers none.
type ModelOutput struct {
	Risk          RiskLevel             `json:"risk"`
	Probabilities map[RiskLevel]float64 `json:"probabilities"`
	Departments   []string              `json:"departments"`
	Contributions []Contribution        `json:"contributions,omitempty"`
}

// Prediction is the complete outcome of one triage decision. It is the unit
// returned to API callers and embedded in the audit record. A prediction is
// always whole: no field is populated from a branch that did not run.
type Prediction struct {
	ID              string                `json:"id"`
	Risk            RiskLevel             `json:"risk_level"`
	Department      string                `json:"department"`
	Departments     []string              `json:"departments"`
	Confidence      float64               `json:"confidence"`
	Explanation     []string              `json:"explanation"`
	OverrideApplied bool                  `json:"override_applied"`
	OverrideReason  string                `json:"override_reason,omitempty"`
	FiredRules      []string              `json:"fired_rules,omitempty"`
	TopFactors      []string              `json:"top_factors,omitempty"`
	Probabilities   map[RiskLevel]float64 `json:"all_probabilities,omitempty"`
	Escalated       bool                  `json:"escalated"`
	EscalatedFrom   RiskLevel             `json:"escalated_from,omitempty"`
	FailSafe        bool                  `json:"fail_safe"`
	ModelID         string                `json:"model_id,omitempty"`
	Path            DecisionPath          `json:"path"`
	LatencyMS       float64               `json:"latency_ms"`
	CreatedAt       time.Time             `json:"created_at"`

	// Features carries the encoded vector to the audit store. It is not
	// part of the API response shape.
	Features *FeatureVector `json:"-"`
}
