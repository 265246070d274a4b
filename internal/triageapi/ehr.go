package triageapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/acuity/internal/ehr"
	"github.com/linnemanlabs/acuity/internal/noteparser"
)

// maxImportBytes bounds raw EHR payloads independently of the router-level
// body limit.
const maxImportBytes = 1 << 20

func (a *API) handleParseNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Note string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Note == "" {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	res := noteparser.Parse(req.Note)
	a.logger.Info(r.Context(), "note parsed",
		"confidence", res.Confidence,
		"missing", res.MissingFields,
	)
	writeJSON(w, http.StatusOK, res)
}

// handleEHRImport accepts raw HL7, FHIR, or JSON patient data and returns
// the extracted record. Format comes from the ?format query parameter or is
// auto-detected.
func (a *API) handleEHRImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil || len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty payload")
		return
	}

	format := ehr.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = ehr.DetectFormat(data)
	}

	imp, err := ehr.ImportPatient(data, format)
	if err != nil {
		a.logger.Error(r.Context(), err, "ehr import failed", "format", format)
		writeError(w, http.StatusBadRequest, "unparseable patient data")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"format":  format,
		"patient": imp,
	})
}

// handleEHRExport renders a recorded decision in the requested interchange
// format.
func (a *API) handleEHRExport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DecisionID string      `json:"decision_id"`
		Format     ehr.Format  `json:"format,omitempty"`
		Patient    *ehr.Import `json:"patient,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DecisionID == "" {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	entry, ok, err := a.svc.Get(r.Context(), req.DecisionID)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to load decision for export", "id", req.DecisionID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "decision not found")
		return
	}

	imp := req.Patient
	if imp == nil {
		imp = &ehr.Import{Record: entry.Record}
	}

	out, err := ehr.ExportDecision(imp, &entry.Prediction, req.Format, time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	contentType := "application/json"
	if req.Format == ehr.FormatHL7 {
		contentType = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}
