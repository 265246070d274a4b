package triage

import (
	"context"
	"time"

	"github.com/linnemanlabs/acuity/internal/patient"
)

// AuditEntry is the append-only record of one decision: the input as
// received, the encoded features, and the complete prediction. Every
// decision the engine completes produces exactly one entry; rejected
// records produce none.
type AuditEntry struct {
	ID         string         `json:"id"`
	CreatedAt  time.Time      `json:"created_at"`
	Record     patient.Record `json:"record"`
	Features   *FeatureVector `json:"features,omitempty"`
	Prediction Prediction     `json:"prediction"`
}

// Store is the persistence interface for the decision audit log.
type Store interface {
	Put(ctx context.Context, entry *AuditEntry) error
	Get(ctx context.Context, id string) (*AuditEntry, bool, error)
	List(ctx context.Context, limit int) ([]*AuditEntry, error)
}
