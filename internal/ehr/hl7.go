package ehr

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/linnemanlabs/acuity/internal/patient"
	"github.com/linnemanlabs/acuity/internal/triage"
)

const (
	hl7FieldSep     = "|"
	hl7ComponentSep = "^"
)

// loincVitals maps LOINC observation codes to vital fields.
var loincVitals = map[string]func(*patient.Vitals, float64){
	"8867-4": func(v *patient.Vitals, x float64) { v.HeartRate = x },
	"8480-6": func(v *patient.Vitals, x float64) { v.SystolicBP = x },
	"8462-4": func(v *patient.Vitals, x float64) { v.DiastolicBP = x },
	"8310-5": func(v *patient.Vitals, x float64) { v.TemperatureC = x },
	"2708-6": func(v *patient.Vitals, x float64) { v.SpO2 = x },
}

// ValidateHL7 checks basic HL7 v2.x message structure.
func ValidateHL7(message string) error {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return fmt.Errorf("empty message")
	}
	if !strings.HasPrefix(msg, "MSH") {
		return fmt.Errorf("missing MSH segment")
	}
	if len(msg) < 4 || msg[3] != '|' {
		return fmt.Errorf("invalid field separator")
	}
	return nil
}

// ParseHL7 extracts patient data from an HL7 v2.x message: demographics
// from PID, vitals from OBX via LOINC codes, history from DG1.
func ParseHL7(message string) (*Import, error) {
	if err := ValidateHL7(message); err != nil {
		return nil, fmt.Errorf("invalid hl7 message: %w", err)
	}

	imp := &Import{}
	for _, segment := range splitSegments(message) {
		if len(segment) < 3 {
			continue
		}
		switch segment[:3] {
		case "PID":
			parsePID(segment, imp)
		case "OBX":
			parseOBX(segment, imp)
		case "DG1":
			parseDG1(segment, imp)
		}
	}
	return imp, nil
}

func splitSegments(message string) []string {
	normalized := strings.ReplaceAll(strings.TrimSpace(message), "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	return strings.Split(normalized, "\n")
}

func parsePID(segment string, imp *Import) {
	fields := strings.Split(segment, hl7FieldSep)

	// PID-3: patient ID.
	if len(fields) > 3 {
		imp.PatientID = strings.Split(fields[3], hl7ComponentSep)[0]
	}
	// PID-5: name, family^given. Empty components are common in feeds, so
	// only a non-blank result is kept.
	if len(fields) > 5 {
		parts := strings.Split(fields[5], hl7ComponentSep)
		if len(parts) >= 2 {
			if name := strings.TrimSpace(parts[1] + " " + parts[0]); name != "" {
				imp.Name = name
			}
		}
	}
	// PID-7: date of birth, YYYYMMDD.
	if len(fields) > 7 && len(fields[7]) >= 8 {
		if year, err := strconv.Atoi(fields[7][:4]); err == nil {
			imp.Record.Age = time.Now().Year() - year
		}
	}
	// PID-8: administrative gender.
	if len(fields) > 8 {
		switch fields[8] {
		case "M":
			imp.Record.Gender = patient.GenderMale
		case "F":
			imp.Record.Gender = patient.GenderFemale
		case "O", "U":
			imp.Record.Gender = patient.GenderOther
		}
	}
}

func parseOBX(segment string, imp *Import) {
	fields := strings.Split(segment, hl7FieldSep)
	if len(fields) < 6 {
		return
	}
	code := strings.Split(fields[3], hl7ComponentSep)[0]
	set, ok := loincVitals[code]
	if !ok {
		return
	}
	if v, err := strconv.ParseFloat(fields[5], 64); err == nil {
		set(&imp.Record.Vitals, v)
	}
}

func parseDG1(segment string, imp *Import) {
	fields := strings.Split(segment, hl7FieldSep)
	if len(fields) > 3 {
		parts := strings.Split(fields[3], hl7ComponentSep)
		if len(parts) > 1 && parts[1] != "" {
			imp.Record.Conditions = append(imp.Record.Conditions, parts[1])
		}
	}
}

// GenerateORU builds an HL7 ORU^R01 message carrying the decision back to
// the sending system.
func GenerateORU(imp *Import, pred *triage.Prediction, now time.Time) string {
	ts := now.Format("20060102150405")
	messageID := "TRIAGE" + ts

	segments := []string{
		fmt.Sprintf("MSH|^~\\&|TRIAGE_SYSTEM|HOSPITAL|EHR_SYSTEM|HOSPITAL|%s||ORU^R01|%s|P|2.5", ts, messageID),
		oruPID(imp, now),
		fmt.Sprintf("OBR|1|%s||TRIAGE^AI Triage Assessment^LOCAL||%s|||||||||||||||||||F", messageID, ts),
		fmt.Sprintf("OBX|1|ST|RISK_LEVEL^Risk Level^LOCAL||%s||||||F|||%s", pred.Risk, ts),
		fmt.Sprintf("OBX|2|ST|DEPARTMENT^Recommended Department^LOCAL||%s||||||F|||%s", pred.Department, ts),
		fmt.Sprintf("OBX|3|NM|CONFIDENCE^Prediction Confidence^LOCAL||%.1f|%%|||||F|||%s", pred.Confidence*100, ts),
		fmt.Sprintf("OBX|4|TX|REASONING^Clinical Reasoning^LOCAL||%s||||||F|||%s", sanitizeHL7(strings.Join(pred.Explanation, "; ")), ts),
	}
	return strings.Join(segments, "\n")
}

func oruPID(imp *Import, now time.Time) string {
	id := imp.PatientID
	if id == "" {
		id = "UNKNOWN"
	}
	name := "UNKNOWN^PATIENT"
	if parts := strings.Fields(imp.Name); len(parts) >= 2 {
		name = parts[len(parts)-1] + hl7ComponentSep + strings.Join(parts[:len(parts)-1], " ")
	} else if len(parts) == 1 {
		name = parts[0]
	}
	dob := ""
	if imp.Record.Age > 0 {
		dob = fmt.Sprintf("%d0101", now.Year()-imp.Record.Age)
	}
	gender := "U"
	switch imp.Record.Gender {
	case patient.GenderMale:
		gender = "M"
	case patient.GenderFemale:
		gender = "F"
	case patient.GenderTransgender, patient.GenderOther:
		gender = "O"
	}
	return fmt.Sprintf("PID|1||%s||%s||%s|%s", id, name, dob, gender)
}

// sanitizeHL7 strips the field separator from free text so it cannot break
// segment structure.
func sanitizeHL7(s string) string {
	return strings.ReplaceAll(s, "|", " ")
}
