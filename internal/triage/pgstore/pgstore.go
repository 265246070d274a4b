// Package pgstore provides a PostgreSQL implementation of triage.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/acuity/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/acuity/internal/triage/pgstore")

//go:embed schema.sql
var schema string

// Store persists audit entries in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

const decisionColumns = `id, created_at, record, features, prediction`

// Put appends one decision. The audit log is append-only; a replayed ID is
// a no-op rather than an overwrite.
func (s *Store) Put(ctx context.Context, entry *triage.AuditEntry) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	recordJSON, err := json.Marshal(entry.Record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	var featuresJSON []byte
	if entry.Features != nil {
		featuresJSON, err = json.Marshal(entry.Features)
		if err != nil {
			return fmt.Errorf("marshal features: %w", err)
		}
	}
	predictionJSON, err := json.Marshal(entry.Prediction)
	if err != nil {
		return fmt.Errorf("marshal prediction: %w", err)
	}

	p := entry.Prediction
	query := `INSERT INTO decisions (
		id, created_at, risk, department, confidence, path,
		override_applied, fail_safe, model_id, record, features, prediction
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	ON CONFLICT (id) DO NOTHING`

	_, err = s.pool.Exec(ctx, query,
		entry.ID, entry.CreatedAt, string(p.Risk), p.Department, p.Confidence, string(p.Path),
		p.OverrideApplied, p.FailSafe, p.ModelID, recordJSON, featuresJSON, predictionJSON,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// Get retrieves one decision by ID.
func (s *Store) Get(ctx context.Context, id string) (*triage.AuditEntry, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + decisionColumns + ` FROM decisions WHERE id = $1`
	entry, err := scanDecisionRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if entry == nil {
		return nil, false, nil
	}
	return entry, true, nil
}

// List returns up to limit decisions, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*triage.AuditEntry, error) {
	ctx, span := tracer.Start(ctx, "pgstore.List", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + decisionColumns + ` FROM decisions ORDER BY created_at DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []*triage.AuditEntry
	for rows.Next() {
		entry, err := scanDecisionRow(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return out, nil
}

// scanDecisionRow scans one row into an AuditEntry. Returns (nil, nil) when
// no row is found.
func scanDecisionRow(row pgx.Row) (*triage.AuditEntry, error) {
	var (
		entry          triage.AuditEntry
		recordJSON     []byte
		featuresJSON   []byte
		predictionJSON []byte
	)

	err := row.Scan(&entry.ID, &entry.CreatedAt, &recordJSON, &featuresJSON, &predictionJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	if err := json.Unmarshal(recordJSON, &entry.Record); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	if len(featuresJSON) > 0 {
		entry.Features = &triage.FeatureVector{}
		if err := json.Unmarshal(featuresJSON, entry.Features); err != nil {
			return nil, fmt.Errorf("unmarshal features: %w", err)
		}
	}
	if err := json.Unmarshal(predictionJSON, &entry.Prediction); err != nil {
		return nil, fmt.Errorf("unmarshal prediction: %w", err)
	}
	entry.Prediction.Features = entry.Features

	return &entry, nil
}
