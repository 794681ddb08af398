// Package audit records every tool call the dispatcher executes or rejects.
package audit

import (
	"context"
	"sync"
	"time"
)

// Entry is one tool call outcome.
type Entry struct {
	RunID      string
	CallID     string
	Role       string
	IdentityID int64
	Tool       string
	Arguments  string
	Status     string
	Code       string
	Message    string
	Round      int
	StartedAt  time.Time
	DurationMs float64
}

// Store persists tool call entries.
type Store interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
}

// Filter limits entry queries. Zero fields match everything.
type Filter struct {
	RunID      string
	Role       string
	IdentityID int64
	Tool       string
	Status     string
	Limit      int
}

func (f Filter) matches(e Entry) bool {
	switch {
	case f.RunID != "" && e.RunID != f.RunID:
		return false
	case f.Role != "" && e.Role != f.Role:
		return false
	case f.IdentityID != 0 && e.IdentityID != f.IdentityID:
		return false
	case f.Tool != "" && e.Tool != f.Tool:
		return false
	case f.Status != "" && e.Status != f.Status:
		return false
	}
	return true
}

// MemoryStore keeps entries in memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryStore returns an in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Record appends an entry.
func (s *MemoryStore) Record(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.StartedAt = normalizeTime(entry.StartedAt)
	s.entries = append(s.entries, entry)
	return nil
}

// List returns filtered entries in insertion order.
func (s *MemoryStore) List(_ context.Context, filter Filter) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if !filter.matches(e) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func normalizeTime(value time.Time) time.Time {
	if value.IsZero() {
		return value
	}
	return value.UTC()
}
