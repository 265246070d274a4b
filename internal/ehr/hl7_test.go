package ehr

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/acuity/internal/patient"
	"github.com/linnemanlabs/acuity/internal/triage"
)

func sampleADT(birthYear int) string {
	return strings.Join([]string{
		"MSH|^~\\&|EHR_SYSTEM|HOSPITAL|TRIAGE_SYSTEM|HOSPITAL|20250115103000||ADT^A01|MSG00001|P|2.5",
		fmt.Sprintf("PID|1||PT12345^^^HOSPITAL^MR||DOE^JOHN||%d0315|M", birthYear),
		"OBX|1|NM|8867-4^Heart rate^LN||118|/min|||||F",
		"OBX|2|NM|8480-6^Systolic blood pressure^LN||92|mmHg|||||F",
		"OBX|3|NM|8462-4^Diastolic blood pressure^LN||60|mmHg|||||F",
		"OBX|4|NM|8310-5^Body temperature^LN||38.9|Cel|||||F",
		"OBX|5|NM|2708-6^Oxygen saturation^LN||91|%|||||F",
		"DG1|1||I10^Essential hypertension^ICD10",
		"DG1|2||E11^Type 2 diabetes mellitus^ICD10",
	}, "\r\n")
}

func TestParseHL7(t *testing.T) {
	t.Parallel()

	birthYear := time.Now().Year() - 58
	imp, err := ParseHL7(sampleADT(birthYear))
	if err != nil {
		t.Fatalf("ParseHL7() = %v", err)
	}

	if imp.PatientID != "PT12345" {
		t.Errorf("patient id = %q, want PT12345", imp.PatientID)
	}
	if imp.Name != "JOHN DOE" {
		t.Errorf("name = %q, want JOHN DOE", imp.Name)
	}
	if imp.Record.Age != 58 {
		t.Errorf("age = %d, want 58", imp.Record.Age)
	}
	if imp.Record.Gender != patient.GenderMale {
		t.Errorf("gender = %s, want Male", imp.Record.Gender)
	}

	v := imp.Record.Vitals
	if v.HeartRate != 118 || v.SystolicBP != 92 || v.DiastolicBP != 60 || v.TemperatureC != 38.9 || v.SpO2 != 91 {
		t.Errorf("vitals = %+v", v)
	}

	want := []string{"Essential hypertension", "Type 2 diabetes mellitus"}
	if len(imp.Record.Conditions) != len(want) {
		t.Fatalf("conditions = %v, want %v", imp.Record.Conditions, want)
	}
	for i := range want {
		if imp.Record.Conditions[i] != want[i] {
			t.Errorf("conditions[%d] = %q, want %q", i, imp.Record.Conditions[i], want[i])
		}
	}
}

func TestParseHL7_UnknownLOINCIgnored(t *testing.T) {
	t.Parallel()

	msg := "MSH|^~\\&|A|B|C|D|20250101||ADT^A01|X|P|2.5\n" +
		"OBX|1|NM|9999-9^Mystery^LN||42|u|||||F\n" +
		"OBX|2|NM|8867-4^Heart rate^LN||77|/min|||||F"
	imp, err := ParseHL7(msg)
	if err != nil {
		t.Fatalf("ParseHL7() = %v", err)
	}
	if imp.Record.Vitals.HeartRate != 77 {
		t.Errorf("heart rate = %g, want 77", imp.Record.Vitals.HeartRate)
	}
}

func TestValidateHL7(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		message string
		wantErr bool
	}{
		{"valid", "MSH|^~\\&|A|B", false},
		{"empty", "", true},
		{"whitespace only", "   \n ", true},
		{"no MSH", "PID|1||X", true},
		{"bad separator", "MSH^~\\&|", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateHL7(tt.message)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateHL7(%q) = %v, wantErr %v", tt.message, err, tt.wantErr)
			}
		})
	}
}

func TestGenerateORU(t *testing.T) {
	t.Parallel()

	imp := &Import{
		PatientID: "PT12345",
		Name:      "JOHN DOE",
		Record: patient.Record{
			Age:    58,
			Gender: patient.GenderMale,
		},
	}
	pred := &triage.Prediction{
		Risk:            triage.RiskHigh,
		Department:      triage.DeptEmergency,
		Confidence:      1.0,
		Explanation:     []string{"Critically low oxygen saturation (SpO2 below 90%)"},
		OverrideApplied: true,
		Path:            triage.PathRule,
	}
	now := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

	oru := GenerateORU(imp, pred, now)
	lines := strings.Split(oru, "\n")
	if len(lines) != 7 {
		t.Fatalf("segments = %d, want 7:\n%s", len(lines), oru)
	}

	if !strings.HasPrefix(lines[0], "MSH|^~\\&|TRIAGE_SYSTEM|HOSPITAL|EHR_SYSTEM|HOSPITAL|20250115103000||ORU^R01|") {
		t.Errorf("MSH = %q", lines[0])
	}
	if !strings.Contains(lines[1], "PT12345") || !strings.Contains(lines[1], "DOE^JOHN") {
		t.Errorf("PID = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "OBR|1|") {
		t.Errorf("OBR = %q", lines[2])
	}
	if !strings.Contains(lines[3], "RISK_LEVEL") || !strings.Contains(lines[3], "|High|") {
		t.Errorf("risk OBX = %q", lines[3])
	}
	if !strings.Contains(lines[4], "DEPARTMENT") || !strings.Contains(lines[4], "Emergency") {
		t.Errorf("department OBX = %q", lines[4])
	}
	if !strings.Contains(lines[5], "CONFIDENCE") || !strings.Contains(lines[5], "100.0") {
		t.Errorf("confidence OBX = %q", lines[5])
	}
	if !strings.Contains(lines[6], "REASONING") || !strings.Contains(lines[6], "oxygen saturation") {
		t.Errorf("reasoning OBX = %q", lines[6])
	}

	// Round trip: the generated message must itself be structurally valid.
	if err := ValidateHL7(oru); err != nil {
		t.Errorf("generated ORU invalid: %v", err)
	}
}

func TestGenerateORU_BlankNameComponents(t *testing.T) {
	t.Parallel()

	// A PID-5 of "^" yields empty name components; the generated message
	// must fall back to the unknown-patient placeholder.
	msg := "MSH|^~\\&|A|B|C|D|20250101||ADT^A01|X|P|2.5\n" +
		"PID|1||PT77||^||19700101|F"
	imp, err := ParseHL7(msg)
	if err != nil {
		t.Fatalf("ParseHL7() = %v", err)
	}
	if imp.Name != "" {
		t.Errorf("name = %q, want empty for blank components", imp.Name)
	}

	pred := &triage.Prediction{Risk: triage.RiskLow, Department: triage.DeptGeneral}
	oru := GenerateORU(imp, pred, time.Now())
	if !strings.Contains(oru, "UNKNOWN^PATIENT") {
		t.Errorf("ORU missing placeholder name:\n%s", oru)
	}

	// A whitespace-only name supplied directly must not break generation
	// either.
	oru = GenerateORU(&Import{Name: "   "}, pred, time.Now())
	if !strings.Contains(oru, "UNKNOWN^PATIENT") {
		t.Errorf("ORU missing placeholder name for blank import:\n%s", oru)
	}
}

func TestGenerateORU_SanitizesReasoning(t *testing.T) {
	t.Parallel()

	imp := &Import{}
	pred := &triage.Prediction{
		Risk:        triage.RiskLow,
		Department:  triage.DeptGeneral,
		Explanation: []string{"free text | with separators"},
	}
	oru := GenerateORU(imp, pred, time.Now())

	for _, line := range strings.Split(oru, "\n") {
		if strings.Contains(line, "REASONING") && strings.Contains(line, "with separators") {
			if strings.Contains(line, "text |") {
				t.Errorf("field separator leaked into reasoning: %q", line)
			}
			return
		}
	}
	t.Fatal("reasoning segment not found")
}
