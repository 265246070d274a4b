package triage

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/linnemanlabs/acuity/internal/patient"
)

// Condition is a single threshold check against a record field. All
// conditions on a rule must hold for the rule to fire.
type Condition struct {
	Field string  `yaml:"field" json:"field"`
	Op    string  `yaml:"op" json:"op"`
	Value float64 `yaml:"value" json:"value"`
}

// Rule is one entry of the safety rule table.
type Rule struct {
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description" json:"description"`
	Risk        RiskLevel   `yaml:"risk" json:"risk"`
	Departments []string    `yaml:"departments" json:"departments"`
	When        []Condition `yaml:"when" json:"when"`

	// EscalateSymptoms upgrades the rule's forced risk to High when any of
	// these keywords appear in the record's symptom text. Empty means the
	// rule's risk is unconditional.
	EscalateSymptoms []string `yaml:"escalate_symptoms,omitempty" json:"escalate_symptoms,omitempty"`
}

// RuleSet is a versioned, ordered safety rule table. Order encodes severity:
// earlier rules outrank later ones when reasons are concatenated.
type RuleSet struct {
	Version string `yaml:"version" json:"version"`
	Rules   []Rule `yaml:"rules" json:"rules"`
}

// Firing is one rule that matched a record, with its risk resolved after
// symptom escalation.
type Firing struct {
	Rule   string    `json:"rule"`
	Risk   RiskLevel `json:"risk"`
	Reason string    `json:"reason"`
}

// RuleDecision is the combined outcome of all fired rules: risk is the
// maximum over firings, departments the union in severity order, and the
// reason the severity-ordered concatenation. No fired rule is ever dropped.
type RuleDecision struct {
	Fired       []Firing
	Risk        RiskLevel
	Departments []string
	Reason      string
}

var ruleFields = map[string]func(*patient.Record) float64{
	"age":           func(r *patient.Record) float64 { return float64(r.Age) },
	"heart_rate":    func(r *patient.Record) float64 { return r.Vitals.HeartRate },
	"systolic_bp":   func(r *patient.Record) float64 { return r.Vitals.SystolicBP },
	"diastolic_bp":  func(r *patient.Record) float64 { return r.Vitals.DiastolicBP },
	"temperature_c": func(r *patient.Record) float64 { return r.Vitals.TemperatureC },
	"spo2":          func(r *patient.Record) float64 { return r.Vitals.SpO2 },
}

// DefaultRuleSet returns the built-in safety table, used when no rules file
// is configured.
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		Version: "v1",
		Rules: []Rule{
			{
				Name:        "spo2_critical",
				Description: "Critically low oxygen saturation (SpO2 below 90%)",
				Risk:        RiskHigh,
				Departments: []string{DeptRespiratory, DeptICU},
				When:        []Condition{{Field: "spo2", Op: "lt", Value: 90}},
			},
			{
				Name:        "severe_hypotension",
				Description: "Severe hypotension (systolic below 90 mmHg)",
				Risk:        RiskHigh,
				Departments: []string{DeptEmergency},
				When:        []Condition{{Field: "systolic_bp", Op: "lt", Value: 90}},
			},
			{
				Name:        "hypertensive_crisis",
				Description: "Hypertensive crisis (systolic above 180 mmHg)",
				Risk:        RiskHigh,
				Departments: []string{DeptEmergency, DeptCardiology},
				When:        []Condition{{Field: "systolic_bp", Op: "gt", Value: 180}},
			},
			{
				Name:        "severe_tachycardia",
				Description: "Severe tachycardia (heart rate above 120 bpm)",
				Risk:        RiskHigh,
				Departments: []string{DeptEmergency, DeptCardiology},
				When:        []Condition{{Field: "heart_rate", Op: "gt", Value: 120}},
			},
			{
				Name:        "severe_bradycardia",
				Description: "Severe bradycardia (heart rate below 50 bpm)",
				Risk:        RiskHigh,
				Departments: []string{DeptEmergency, DeptCardiology},
				When:        []Condition{{Field: "heart_rate", Op: "lt", Value: 50}},
			},
			{
				Name:        "infant_fever",
				Description: "Fever in infant under 2 years",
				Risk:        RiskHigh,
				Departments: []string{DeptPediatrics, DeptEmergency},
				When: []Condition{
					{Field: "age", Op: "lt", Value: 2},
					{Field: "temperature_c", Op: "gt", Value: 38},
				},
			},
			{
				Name:        "high_fever",
				Description: "High fever (above 39.5 C)",
				Risk:        RiskMedium,
				Departments: []string{DeptEmergency},
				When:        []Condition{{Field: "temperature_c", Op: "gt", Value: 39.5}},
			},
		},
	}
}

// LoadRuleSet reads and validates a YAML rule table. Any structural problem
// is an error; callers treat it as fatal at startup.
func LoadRuleSet(path string) (*RuleSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule table: %w", err)
	}
	var rs RuleSet
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(&rs); err != nil {
		return nil, fmt.Errorf("parse rule table %s: %w", path, err)
	}
	if err := rs.Validate(); err != nil {
		return nil, fmt.Errorf("rule table %s: %w", path, err)
	}
	return &rs, nil
}

// Validate checks the table's structural invariants.
func (rs *RuleSet) Validate() error {
	if rs.Version == "" {
		return fmt.Errorf("missing version")
	}
	if len(rs.Rules) == 0 {
		return fmt.Errorf("no rules defined")
	}
	seen := make(map[string]bool, len(rs.Rules))
	for i, r := range rs.Rules {
		if r.Name == "" {
			return fmt.Errorf("rule %d: missing name", i)
		}
		if seen[r.Name] {
			return fmt.Errorf("rule %q: duplicate name", r.Name)
		}
		seen[r.Name] = true
		if r.Description == "" {
			return fmt.Errorf("rule %q: missing description", r.Name)
		}
		if !r.Risk.Valid() {
			return fmt.Errorf("rule %q: unknown risk %q", r.Name, r.Risk)
		}
		if len(r.Departments) == 0 {
			return fmt.Errorf("rule %q: no departments", r.Name)
		}
		if len(r.When) == 0 {
			return fmt.Errorf("rule %q: no conditions", r.Name)
		}
		for _, c := range r.When {
			if _, ok := ruleFields[c.Field]; !ok {
				return fmt.Errorf("rule %q: unknown field %q", r.Name, c.Field)
			}
			if c.Op != "lt" && c.Op != "gt" {
				return fmt.Errorf("rule %q: unknown op %q", r.Name, c.Op)
			}
		}
	}
	return nil
}

// Evaluate runs every rule against the record and combines all firings.
// Returns nil when no rule fires.
func (rs *RuleSet) Evaluate(rec *patient.Record) *RuleDecision {
	var fired []Firing
	deptSeen := make(map[string]bool)
	var depts []string

	for _, r := range rs.Rules {
		if !r.matches(rec) {
			continue
		}
		fired = append(fired, Firing{
			Rule:   r.Name,
			Risk:   r.resolveRisk(rec),
			Reason: r.Description,
		})
	}
	if len(fired) == 0 {
		return nil
	}

	// Severity order: highest resolved risk first, table order within a
	// level. Stable so the table's ordering is preserved.
	sort.SliceStable(fired, func(i, j int) bool {
		return fired[i].Risk.rank() > fired[j].Risk.rank()
	})

	risk := RiskLow
	reasons := make([]string, 0, len(fired))
	for _, f := range fired {
		risk = maxRisk(risk, f.Risk)
		reasons = append(reasons, f.Reason)
	}
	// Union departments in severity order.
	byName := rs.byName()
	for _, f := range fired {
		for _, d := range byName[f.Rule].Departments {
			if !deptSeen[d] {
				deptSeen[d] = true
				depts = append(depts, d)
			}
		}
	}

	return &RuleDecision{
		Fired:       fired,
		Risk:        risk,
		Departments: depts,
		Reason:      strings.Join(reasons, "; "),
	}
}

func (rs *RuleSet) byName() map[string]Rule {
	m := make(map[string]Rule, len(rs.Rules))
	for _, r := range rs.Rules {
		m[r.Name] = r
	}
	return m
}

func (r *Rule) matches(rec *patient.Record) bool {
	for _, c := range r.When {
		v := ruleFields[c.Field](rec)
		switch c.Op {
		case "lt":
			if !(v < c.Value) {
				return false
			}
		case "gt":
			if !(v > c.Value) {
				return false
			}
		}
	}
	return true
}

// resolveRisk applies the symptom escalation list, if any.
func (r *Rule) resolveRisk(rec *patient.Record) RiskLevel {
	if len(r.EscalateSymptoms) == 0 {
		return r.Risk
	}
	symptoms := strings.ToLower(rec.Symptoms)
	for _, kw := range r.EscalateSymptoms {
		if kw != "" && strings.Contains(symptoms, strings.ToLower(kw)) {
			return RiskHigh
		}
	}
	return r.Risk
}
