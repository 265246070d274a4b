package triage

import (
	"context"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/acuity/internal/patient"
)

// Notifier delivers decisions that warrant human review. Implementations
// must tolerate being called concurrently.
type Notifier interface {
	NotifyDecision(ctx context.Context, entry *AuditEntry) error
}

// Service is the business boundary for triage operations: it runs the
// engine, assigns IDs, persists audit entries, and fans out notifications.
type Service struct {
	store    Store
	engine   *Engine
	notifier Notifier
	logger   log.Logger
}

// NewService creates a triage service. notifier may be nil.
func NewService(store Store, engine *Engine, notifier Notifier, logger log.Logger) *Service {
	return &Service{
		store:    store,
		engine:   engine,
		notifier: notifier,
		logger:   logger,
	}
}

// Decide runs one record through the engine and records the outcome.
// Validation failures return a *patient.ValidationError and leave no audit
// entry. Audit persistence failures are returned so callers never mistake
// an unrecorded decision for a recorded one.
func (s *Service) Decide(ctx context.Context, rec *patient.Record) (*Prediction, error) {
	pred, err := s.engine.Decide(ctx, rec)
	if err != nil {
		return nil, err
	}

	pred.ID = ulid.Make().String()
	entry := &AuditEntry{
		ID:         pred.ID,
		CreatedAt:  time.Now(),
		Record:     *rec,
		Features:   pred.Features,
		Prediction: *pred,
	}
	if err := s.store.Put(ctx, entry); err != nil {
		s.logger.Error(ctx, err, "failed to persist audit entry", "decision_id", pred.ID)
		return nil, err
	}

	if s.notifier != nil && (pred.OverrideApplied || pred.FailSafe) {
		// Notification must not delay or fail the decision.
		go s.notify(context.WithoutCancel(ctx), entry)
	}

	return pred, nil
}

// Get retrieves a recorded decision by ID.
func (s *Service) Get(ctx context.Context, id string) (*AuditEntry, bool, error) {
	return s.store.Get(ctx, id)
}

// Recent lists the most recent decisions, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]*AuditEntry, error) {
	return s.store.List(ctx, limit)
}

func (s *Service) notify(ctx context.Context, entry *AuditEntry) {
	if err := s.notifier.NotifyDecision(ctx, entry); err != nil {
		s.logger.Error(ctx, err, "decision notification failed", "decision_id", entry.ID)
	}
}
