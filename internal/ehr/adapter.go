// Package ehr translates between hospital interchange formats (HL7 v2.x,
// FHIR R4, plain JSON) and the internal patient record. The triage decision
// is consumed as an opaque value; no decision logic lives here.
package ehr

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/acuity/internal/patient"
	"github.com/linnemanlabs/acuity/internal/triage"
)

// Format identifies an interchange format.
type Format string

const (
	FormatHL7  Format = "hl7"
	FormatFHIR Format = "fhir"
	FormatJSON Format = "json"
)

// Import is a patient extracted from an external system. The embedded
// record is not yet validated.
type Import struct {
	PatientID string         `json:"patient_id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Record    patient.Record `json:"record"`
}

// DetectFormat guesses the format of raw interchange data: MSH-prefixed
// pipe data is HL7, JSON with a resourceType is FHIR, other valid JSON is
// plain JSON.
func DetectFormat(data []byte) Format {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "MSH|") {
		return FormatHL7
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &probe); err == nil {
		if _, ok := probe["resourceType"]; ok {
			return FormatFHIR
		}
		return FormatJSON
	}
	if strings.Contains(trimmed, "|") {
		return FormatHL7
	}
	return FormatJSON
}

// ImportPatient parses external data into an Import. An empty format means
// auto-detect.
func ImportPatient(data []byte, format Format) (*Import, error) {
	if format == "" {
		format = DetectFormat(data)
	}
	switch format {
	case FormatHL7:
		return ParseHL7(string(data))
	case FormatFHIR:
		return ParseFHIR(data)
	case FormatJSON:
		var imp Import
		if err := json.Unmarshal(data, &imp); err != nil {
			return nil, fmt.Errorf("parse json patient: %w", err)
		}
		return &imp, nil
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

// ExportDecision renders a decision for an external system in the requested
// format. An empty format defaults to FHIR.
func ExportDecision(imp *Import, pred *triage.Prediction, format Format, now time.Time) ([]byte, error) {
	if format == "" {
		format = FormatFHIR
	}
	switch format {
	case FormatHL7:
		return []byte(GenerateORU(imp, pred, now)), nil
	case FormatFHIR:
		return ExportFHIR(imp, pred, now)
	case FormatJSON:
		return json.MarshalIndent(map[string]any{
			"patient":   imp,
			"triage":    pred,
			"timestamp": now.UTC().Format(time.RFC3339),
		}, "", "  ")
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}
