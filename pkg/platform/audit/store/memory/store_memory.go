// Package memory is the in-process audit sink. Events live in one
// append-only slice, in the order they were appended.
package memory

import (
	"context"
	"slices"
	"sync"

	audit "shieldvault/pkg/platform/audit"
)

type InMemoryStore struct {
	mu  sync.RWMutex
	log []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, event)
	return nil
}

// ListByCaller returns the events raised by caller, oldest first.
func (s *InMemoryStore) ListByCaller(_ context.Context, caller string) ([]audit.Event, error) {
	return s.filter(func(e audit.Event) bool { return e.Caller == caller }), nil
}

// ListByAction returns the events recorded for action, oldest first.
func (s *InMemoryStore) ListByAction(_ context.Context, action audit.AuditEvent) ([]audit.Event, error) {
	return s.filter(func(e audit.Event) bool { return e.Action == string(action) }), nil
}

// ListRecent returns up to limit events, newest first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := min(max(limit, 0), len(s.log))
	recent := slices.Clone(s.log[len(s.log)-n:])
	slices.Reverse(recent)
	return recent, nil
}

// Reset drops every recorded event.
func (s *InMemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = nil
}

func (s *InMemoryStore) filter(keep func(audit.Event) bool) []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []audit.Event{}
	for _, e := range s.log {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
