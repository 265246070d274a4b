package ehr

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/linnemanlabs/acuity/internal/patient"
	"github.com/linnemanlabs/acuity/internal/triage"
)

const loincSystem = "http://loinc.org"

// fhirLOINC maps vital fields to their LOINC code, display name, and unit
// for export.
var fhirLOINC = []struct {
	Code    string
	Display string
	Unit    string
	Get     func(patient.Vitals) float64
	Set     func(*patient.Vitals, float64)
}{
	{"8867-4", "Heart rate", "/min",
		func(v patient.Vitals) float64 { return v.HeartRate },
		func(v *patient.Vitals, x float64) { v.HeartRate = x }},
	{"8480-6", "Systolic blood pressure", "mmHg",
		func(v patient.Vitals) float64 { return v.SystolicBP },
		func(v *patient.Vitals, x float64) { v.SystolicBP = x }},
	{"8462-4", "Diastolic blood pressure", "mmHg",
		func(v patient.Vitals) float64 { return v.DiastolicBP },
		func(v *patient.Vitals, x float64) { v.DiastolicBP = x }},
	{"8310-5", "Body temperature", "Cel",
		func(v patient.Vitals) float64 { return v.TemperatureC },
		func(v *patient.Vitals, x float64) { v.TemperatureC = x }},
	{"2708-6", "Oxygen saturation", "%",
		func(v patient.Vitals) float64 { return v.SpO2 },
		func(v *patient.Vitals, x float64) { v.SpO2 = x }},
}

// Minimal FHIR R4 resource shapes; only the fields this system reads or
// writes.
type fhirResource struct {
	ResourceType string          `json:"resourceType"`
	ID           string          `json:"id,omitempty"`
	Name         []fhirName      `json:"name,omitempty"`
	Gender       string          `json:"gender,omitempty"`
	BirthDate    string          `json:"birthDate,omitempty"`
	Code         *fhirCode       `json:"code,omitempty"`
	Value        *fhirQuantity   `json:"valueQuantity,omitempty"`
	Entry        []fhirBundleRef `json:"entry,omitempty"`
}

type fhirName struct {
	Use    string   `json:"use,omitempty"`
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
}

type fhirCode struct {
	Coding []fhirCoding `json:"coding,omitempty"`
	Text   string       `json:"text,omitempty"`
}

type fhirCoding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type fhirQuantity struct {
	Value  float64 `json:"value"`
	Unit   string  `json:"unit,omitempty"`
	System string  `json:"system,omitempty"`
	Code   string  `json:"code,omitempty"`
}

type fhirBundleRef struct {
	Resource json.RawMessage  `json:"resource"`
	Request  *fhirBundleEntry `json:"request,omitempty"`
}

type fhirBundleEntry struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

// ParseFHIR extracts patient data from a FHIR R4 Patient resource or a
// Bundle of Patient, Observation, and Condition resources.
func ParseFHIR(data []byte) (*Import, error) {
	var root fhirResource
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse fhir resource: %w", err)
	}
	if root.ResourceType == "" {
		return nil, fmt.Errorf("missing resourceType")
	}

	imp := &Import{}
	switch root.ResourceType {
	case "Patient":
		parseFHIRPatient(&root, imp)
	case "Bundle":
		for _, entry := range root.Entry {
			var res fhirResource
			if err := json.Unmarshal(entry.Resource, &res); err != nil {
				continue
			}
			switch res.ResourceType {
			case "Patient":
				parseFHIRPatient(&res, imp)
			case "Observation":
				parseFHIRObservation(&res, imp)
			case "Condition":
				parseFHIRCondition(&res, imp)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported resourceType %q", root.ResourceType)
	}
	return imp, nil
}

func parseFHIRPatient(res *fhirResource, imp *Import) {
	imp.PatientID = res.ID
	if len(res.Name) > 0 {
		n := res.Name[0]
		imp.Name = strings.TrimSpace(strings.Join(n.Given, " ") + " " + n.Family)
	}
	if len(res.BirthDate) >= 4 {
		if year, err := strconv.Atoi(res.BirthDate[:4]); err == nil {
			imp.Record.Age = time.Now().Year() - year
		}
	}
	switch strings.ToLower(res.Gender) {
	case "male":
		imp.Record.Gender = patient.GenderMale
	case "female":
		imp.Record.Gender = patient.GenderFemale
	case "other", "unknown":
		imp.Record.Gender = patient.GenderOther
	}
}

func parseFHIRObservation(res *fhirResource, imp *Import) {
	if res.Code == nil || res.Value == nil {
		return
	}
	for _, coding := range res.Code.Coding {
		if coding.System != loincSystem {
			continue
		}
		for _, lv := range fhirLOINC {
			if lv.Code == coding.Code {
				lv.Set(&imp.Record.Vitals, res.Value.Value)
				return
			}
		}
	}
}

func parseFHIRCondition(res *fhirResource, imp *Import) {
	if res.Code == nil {
		return
	}
	text := res.Code.Text
	if text == "" {
		for _, coding := range res.Code.Coding {
			if coding.Display != "" {
				text = coding.Display
				break
			}
		}
	}
	if text != "" {
		imp.Record.Conditions = append(imp.Record.Conditions, text)
	}
}

// ExportFHIR builds a transaction Bundle with the patient, their vitals as
// Observations, and the decision as a DiagnosticReport.
func ExportFHIR(imp *Import, pred *triage.Prediction, now time.Time) ([]byte, error) {
	ts := now.Format("20060102150405")
	patientID := imp.PatientID
	if patientID == "" {
		patientID = "PT-" + ts
	}

	resources := []any{fhirPatientResource(imp, patientID, now)}
	for _, lv := range fhirLOINC {
		v := lv.Get(imp.Record.Vitals)
		if v == 0 {
			continue
		}
		resources = append(resources, fhirObservationResource(patientID, lv.Code, lv.Display, lv.Unit, v, ts, now))
	}
	resources = append(resources, fhirDiagnosticReport(patientID, pred, ts, now))

	entries := make([]map[string]any, 0, len(resources))
	for _, res := range resources {
		m, ok := res.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected resource shape")
		}
		entries = append(entries, map[string]any{
			"resource": res,
			"request": map[string]any{
				"method": "POST",
				"url":    m["resourceType"],
			},
		})
	}

	bundle := map[string]any{
		"resourceType": "Bundle",
		"id":           "bundle-" + ts,
		"meta":         map[string]any{"lastUpdated": now.UTC().Format(time.RFC3339)},
		"type":         "transaction",
		"entry":        entries,
	}
	return json.MarshalIndent(bundle, "", "  ")
}

func fhirPatientResource(imp *Import, patientID string, now time.Time) map[string]any {
	nameParts := strings.Fields(imp.Name)
	family := ""
	given := nameParts
	if len(nameParts) > 1 {
		family = nameParts[len(nameParts)-1]
		given = nameParts[:len(nameParts)-1]
	}

	gender := "unknown"
	switch imp.Record.Gender {
	case patient.GenderMale:
		gender = "male"
	case patient.GenderFemale:
		gender = "female"
	case patient.GenderTransgender, patient.GenderOther:
		gender = "other"
	}

	birthDate := now.Format("2006-01-02")
	if imp.Record.Age > 0 {
		birthDate = fmt.Sprintf("%d-01-01", now.Year()-imp.Record.Age)
	}

	return map[string]any{
		"resourceType": "Patient",
		"id":           patientID,
		"meta": map[string]any{
			"versionId":   "1",
			"lastUpdated": now.UTC().Format(time.RFC3339),
		},
		"identifier": []map[string]any{{
			"system": "http://hospital.org/patients",
			"value":  patientID,
		}},
		"active": true,
		"name": []map[string]any{{
			"use":    "official",
			"family": family,
			"given":  given,
		}},
		"gender":    gender,
		"birthDate": birthDate,
	}
}

func fhirObservationResource(patientID, code, display, unit string, value float64, ts string, now time.Time) map[string]any {
	return map[string]any{
		"resourceType": "Observation",
		"id":           fmt.Sprintf("obs-%s-%s-%s", patientID, code, ts),
		"status":       "final",
		"category": []map[string]any{{
			"coding": []map[string]any{{
				"system":  "http://terminology.hl7.org/CodeSystem/observation-category",
				"code":    "vital-signs",
				"display": "Vital Signs",
			}},
		}},
		"code": map[string]any{
			"coding": []map[string]any{{
				"system":  loincSystem,
				"code":    code,
				"display": display,
			}},
		},
		"subject":           map[string]any{"reference": "Patient/" + patientID},
		"effectiveDateTime": now.UTC().Format(time.RFC3339),
		"valueQuantity": map[string]any{
			"value":  value,
			"unit":   unit,
			"system": "http://unitsofmeasure.org",
			"code":   unit,
		},
	}
}

func fhirDiagnosticReport(patientID string, pred *triage.Prediction, ts string, now time.Time) map[string]any {
	conclusion := fmt.Sprintf(
		"AI Triage Assessment Results:\n\nRisk Level: %s\nRecommended Department: %s\nConfidence: %.1f%%\n\nClinical Reasoning:\n%s",
		strings.ToUpper(string(pred.Risk)), pred.Department, pred.Confidence*100,
		strings.Join(pred.Explanation, "; "),
	)
	if pred.OverrideApplied {
		conclusion += "\n\nSafety Override Applied: " + pred.OverrideReason
	}

	return map[string]any{
		"resourceType": "DiagnosticReport",
		"id":           fmt.Sprintf("triage-%s-%s", patientID, ts),
		"status":       "final",
		"category": []map[string]any{{
			"coding": []map[string]any{{
				"system":  "http://terminology.hl7.org/CodeSystem/v2-0074",
				"code":    "OTH",
				"display": "Other",
			}},
		}},
		"code": map[string]any{
			"coding": []map[string]any{{
				"system":  "http://hospital.org/codes",
				"code":    "AI-TRIAGE",
				"display": "AI-Powered Triage Assessment",
			}},
			"text": "AI Triage Assessment",
		},
		"subject":           map[string]any{"reference": "Patient/" + patientID},
		"effectiveDateTime": now.UTC().Format(time.RFC3339),
		"issued":            now.UTC().Format(time.RFC3339),
		"conclusion":        conclusion,
		"conclusionCode": []map[string]any{{
			"coding": []map[string]any{{
				"system":  "http://hospital.org/triage-codes",
				"code":    strings.ToUpper(string(pred.Risk)),
				"display": strings.ToUpper(string(pred.Risk)) + " Risk",
			}},
		}},
	}
}
