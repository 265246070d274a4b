package triage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/linnemanlabs/acuity/internal/patient"
)

func healthyRecord() *patient.Record {
	return &patient.Record{
		Age:    40,
		Gender: patient.GenderFemale,
		Vitals: patient.Vitals{
			HeartRate:    75,
			SystolicBP:   118,
			DiastolicBP:  76,
			TemperatureC: 36.8,
			SpO2:         98,
		},
	}
}

func TestDefaultRuleSet_Valid(t *testing.T) {
	t.Parallel()

	rs := DefaultRuleSet()
	if err := rs.Validate(); err != nil {
		t.Fatalf("built-in rule table invalid: %v", err)
	}
	if len(rs.Rules) != 7 {
		t.Errorf("rules = %d, want 7", len(rs.Rules))
	}
}

func TestEvaluate_NoFiring(t *testing.T) {
	t.Parallel()

	rs := DefaultRuleSet()
	if rd := rs.Evaluate(healthyRecord()); rd != nil {
		t.Fatalf("Evaluate() = %+v, want nil for healthy vitals", rd)
	}
}

func TestEvaluate_SingleRule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*patient.Record)
		rule     string
		risk     RiskLevel
		topDept  string
		numDepts int
	}{
		{"low spo2", func(r *patient.Record) { r.Vitals.SpO2 = 85 }, "spo2_critical", RiskHigh, DeptRespiratory, 2},
		{"hypotension", func(r *patient.Record) { r.Vitals.SystolicBP = 82 }, "severe_hypotension", RiskHigh, DeptEmergency, 1},
		{"hypertensive crisis", func(r *patient.Record) {
			r.Vitals.SystolicBP = 195
			r.Vitals.DiastolicBP = 110
		}, "hypertensive_crisis", RiskHigh, DeptEmergency, 2},
		{"tachycardia", func(r *patient.Record) { r.Vitals.HeartRate = 135 }, "severe_tachycardia", RiskHigh, DeptEmergency, 2},
		{"bradycardia", func(r *patient.Record) { r.Vitals.HeartRate = 42 }, "severe_bradycardia", RiskHigh, DeptEmergency, 2},
		{"high fever", func(r *patient.Record) { r.Vitals.TemperatureC = 39.8 }, "high_fever", RiskMedium, DeptEmergency, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := healthyRecord()
			tt.mutate(rec)

			rd := DefaultRuleSet().Evaluate(rec)
			if rd == nil {
				t.Fatal("expected a firing")
			}
			if len(rd.Fired) != 1 || rd.Fired[0].Rule != tt.rule {
				t.Fatalf("fired = %+v, want single %q", rd.Fired, tt.rule)
			}
			if rd.Risk != tt.risk {
				t.Errorf("risk = %s, want %s", rd.Risk, tt.risk)
			}
			if rd.Departments[0] != tt.topDept {
				t.Errorf("department = %s, want %s", rd.Departments[0], tt.topDept)
			}
			if len(rd.Departments) != tt.numDepts {
				t.Errorf("departments = %v, want %d entries", rd.Departments, tt.numDepts)
			}
		})
	}
}

func TestEvaluate_BoundariesDoNotFire(t *testing.T) {
	t.Parallel()

	rec := healthyRecord()
	rec.Vitals.SpO2 = 90 // comparisons are strict: the threshold itself does not fire
	rec.Vitals.HeartRate = 120
	rec.Vitals.SystolicBP = 180
	rec.Vitals.DiastolicBP = 95
	rec.Vitals.TemperatureC = 39.5

	if rd := DefaultRuleSet().Evaluate(rec); rd != nil {
		t.Fatalf("Evaluate() fired %v at exact thresholds", rd.Fired)
	}
}

func TestEvaluate_MultipleRulesUnion(t *testing.T) {
	t.Parallel()

	rec := healthyRecord()
	rec.Vitals.HeartRate = 130
	rec.Vitals.SpO2 = 85

	rd := DefaultRuleSet().Evaluate(rec)
	if rd == nil {
		t.Fatal("expected firings")
	}
	if len(rd.Fired) != 2 {
		t.Fatalf("fired = %+v, want 2 rules", rd.Fired)
	}
	if rd.Risk != RiskHigh {
		t.Errorf("risk = %s, want High", rd.Risk)
	}
	// Union in table order: spo2_critical contributes Respiratory and ICU
	// first, severe_tachycardia adds Emergency and Cardiology.
	want := []string{DeptRespiratory, DeptICU, DeptEmergency, DeptCardiology}
	if len(rd.Departments) != len(want) {
		t.Fatalf("departments = %v, want %v", rd.Departments, want)
	}
	for i := range want {
		if rd.Departments[i] != want[i] {
			t.Errorf("departments[%d] = %s, want %s", i, rd.Departments[i], want[i])
		}
	}
	if !strings.Contains(rd.Reason, ";") {
		t.Errorf("reason %q should concatenate both descriptions", rd.Reason)
	}
}

func TestEvaluate_InfantFever(t *testing.T) {
	t.Parallel()

	rec := healthyRecord()
	rec.Age = 1
	rec.Vitals.TemperatureC = 38.6
	rec.Vitals.HeartRate = 110

	rd := DefaultRuleSet().Evaluate(rec)
	if rd == nil {
		t.Fatal("expected infant_fever to fire")
	}
	if rd.Fired[0].Rule != "infant_fever" {
		t.Fatalf("fired = %+v, want infant_fever", rd.Fired)
	}
	if rd.Risk != RiskHigh {
		t.Errorf("risk = %s, want High", rd.Risk)
	}
	if rd.Departments[0] != DeptPediatrics {
		t.Errorf("department = %s, want Pediatrics first", rd.Departments[0])
	}

	// Adult with the same temperature stays out of the pediatric rule.
	rec.Age = 30
	rd = DefaultRuleSet().Evaluate(rec)
	if rd != nil {
		t.Fatalf("Evaluate() = %+v, want nil for adult at 38.6", rd.Fired)
	}
}

func TestEvaluate_SeverityOrdering(t *testing.T) {
	t.Parallel()

	// A fever plus critical SpO2: the High rule's reason and departments
	// come first even though high_fever is last in the table.
	rec := healthyRecord()
	rec.Vitals.TemperatureC = 40.0
	rec.Vitals.SpO2 = 88

	rd := DefaultRuleSet().Evaluate(rec)
	if rd == nil {
		t.Fatal("expected firings")
	}
	if rd.Fired[0].Rule != "spo2_critical" {
		t.Errorf("fired[0] = %s, want spo2_critical first", rd.Fired[0].Rule)
	}
	if rd.Risk != RiskHigh {
		t.Errorf("risk = %s, want High", rd.Risk)
	}
	if rd.Departments[0] != DeptRespiratory {
		t.Errorf("departments = %v, want the hypoxia rule's routing first", rd.Departments)
	}
	if !strings.HasPrefix(rd.Reason, "Critically low oxygen saturation") {
		t.Errorf("reason %q should lead with the High rule", rd.Reason)
	}
}

func TestEvaluate_SymptomEscalation(t *testing.T) {
	t.Parallel()

	rs := &RuleSet{
		Version: "test",
		Rules: []Rule{
			{
				Name:             "moderate_fever",
				Description:      "Fever above 38.5 C",
				Risk:             RiskMedium,
				Departments:      []string{DeptGeneral},
				When:             []Condition{{Field: "temperature_c", Op: "gt", Value: 38.5}},
				EscalateSymptoms: []string{"confusion", "stiff neck"},
			},
		},
	}
	if err := rs.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	rec := healthyRecord()
	rec.Vitals.TemperatureC = 39.0

	rd := rs.Evaluate(rec)
	if rd == nil || rd.Risk != RiskMedium {
		t.Fatalf("without symptoms: got %+v, want Medium", rd)
	}

	rec.Symptoms = "fever with Confusion since morning"
	rd = rs.Evaluate(rec)
	if rd == nil || rd.Risk != RiskHigh {
		t.Fatalf("with escalating symptom: got %+v, want High", rd)
	}
}

func TestRuleSetValidate_Errors(t *testing.T) {
	t.Parallel()

	base := func() *RuleSet {
		return &RuleSet{
			Version: "v1",
			Rules: []Rule{{
				Name:        "r1",
				Description: "d",
				Risk:        RiskHigh,
				Departments: []string{DeptEmergency},
				When:        []Condition{{Field: "spo2", Op: "lt", Value: 90}},
			}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*RuleSet)
		errPart string
	}{
		{"missing version", func(rs *RuleSet) { rs.Version = "" }, "missing version"},
		{"empty table", func(rs *RuleSet) { rs.Rules = nil }, "no rules"},
		{"missing name", func(rs *RuleSet) { rs.Rules[0].Name = "" }, "missing name"},
		{"duplicate name", func(rs *RuleSet) { rs.Rules = append(rs.Rules, rs.Rules[0]) }, "duplicate name"},
		{"missing description", func(rs *RuleSet) { rs.Rules[0].Description = "" }, "missing description"},
		{"bad risk", func(rs *RuleSet) { rs.Rules[0].Risk = "Critical" }, "unknown risk"},
		{"no departments", func(rs *RuleSet) { rs.Rules[0].Departments = nil }, "no departments"},
		{"no conditions", func(rs *RuleSet) { rs.Rules[0].When = nil }, "no conditions"},
		{"bad field", func(rs *RuleSet) { rs.Rules[0].When[0].Field = "bmi" }, "unknown field"},
		{"bad op", func(rs *RuleSet) { rs.Rules[0].When[0].Op = "eq" }, "unknown op"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rs := base()
			tt.mutate(rs)
			err := rs.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.errPart) {
				t.Errorf("error %q missing %q", err.Error(), tt.errPart)
			}
		})
	}
}

func TestLoadRuleSet(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rules.yaml")
	doc := `version: custom-v2
rules:
  - name: low_oxygen
    description: Oxygen saturation below 92%
    risk: High
    departments: [Emergency, Pulmonology]
    when:
      - field: spo2
        op: lt
        value: 92
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	rs, err := LoadRuleSet(path)
	if err != nil {
		t.Fatalf("LoadRuleSet() = %v", err)
	}
	if rs.Version != "custom-v2" || len(rs.Rules) != 1 {
		t.Fatalf("loaded %+v", rs)
	}

	rec := healthyRecord()
	rec.Vitals.SpO2 = 91
	rd := rs.Evaluate(rec)
	if rd == nil || rd.Fired[0].Rule != "low_oxygen" {
		t.Fatalf("Evaluate() = %+v, want low_oxygen firing", rd)
	}
}

func TestLoadRuleSet_Errors(t *testing.T) {
	t.Parallel()

	if _, err := LoadRuleSet(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	unknown := filepath.Join(t.TempDir(), "rules.yaml")
	doc := `version: v1
rules:
  - name: r1
    description: d
    risk: High
    severity: bogus
    departments: [Emergency]
    when:
      - field: spo2
        op: lt
        value: 90
`
	if err := os.WriteFile(unknown, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRuleSet(unknown); err == nil {
		t.Error("expected error for unknown key")
	}
}
