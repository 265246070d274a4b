// Package triageapi exposes the triage decision engine over HTTP.
package triageapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/acuity/internal/patient"
	"github.com/linnemanlabs/acuity/internal/triage"
)

// Service defines the business operations the API needs.
type Service interface {
	Decide(ctx context.Context, rec *patient.Record) (*triage.Prediction, error)
	Get(ctx context.Context, id string) (*triage.AuditEntry, bool, error)
	Recent(ctx context.Context, limit int) ([]*triage.AuditEntry, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger  log.Logger
	svc     Service
	metrics *triage.Metrics
}

// New creates a new API handler. metrics may be nil.
func New(logger log.Logger, svc Service, metrics *triage.Metrics) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	return &API{
		logger:  logger,
		svc:     svc,
		metrics: metrics,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/triage", a.handleTriage)
		r.Get("/decisions", a.handleListDecisions)
		r.Get("/decisions/{id}", a.handleGetDecision)
		r.Post("/notes/parse", a.handleParseNote)
		r.Post("/ehr/import", a.handleEHRImport)
		r.Post("/ehr/export", a.handleEHRExport)
	})
}

func (a *API) handleTriage(w http.ResponseWriter, r *http.Request) {
	var rec patient.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		a.countSubmit("bad_request")
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	pred, err := a.svc.Decide(r.Context(), &rec)
	if err != nil {
		var verr *patient.ValidationError
		if errors.As(err, &verr) {
			a.countSubmit("rejected")
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":  "validation failed",
				"fields": verr.Fields,
			})
			return
		}
		a.countSubmit("error")
		a.logger.Error(r.Context(), err, "triage decision failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("acuity.decision.id", pred.ID),
		attribute.String("acuity.decision.risk", string(pred.Risk)),
	)

	a.countSubmit("decided")
	writeJSON(w, http.StatusOK, pred)
}

func (a *API) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("acuity.decision.id", id))

	entry, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get decision", "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (a *API) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	entries, err := a.svc.Recent(r.Context(), limit)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list decisions")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"decisions": entries})
}

func (a *API) countSubmit(result string) {
	if a.metrics != nil {
		a.metrics.SubmitsTotal.WithLabelValues(result).Inc()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
