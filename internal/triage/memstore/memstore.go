// Package memstore provides an in-memory implementation of triage.Store.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/acuity/internal/triage"
)

// Store holds audit entries in memory. Suitable for dev/testing. Entries
// are append-only and never mutated after Put, so top-level copies are
// enough to keep callers isolated.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*triage.AuditEntry
	order   []string // insertion order, oldest first
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		entries: make(map[string]*triage.AuditEntry),
	}
}

// Put stores a copy of the audit entry.
func (s *Store) Put(_ context.Context, entry *triage.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[entry.ID]; !exists {
		s.order = append(s.order, entry.ID)
	}
	cp := *entry
	s.entries[entry.ID] = &cp
	return nil
}

// Get retrieves an audit entry by decision ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*triage.AuditEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, false, nil
	}
	cp := *e
	return &cp, true, nil
}

// List returns up to limit entries, newest first.
func (s *Store) List(_ context.Context, limit int) ([]*triage.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}
	out := make([]*triage.AuditEntry, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *s.entries[s.order[i]]
		out = append(out, &cp)
	}
	return out, nil
}
