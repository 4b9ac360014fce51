// Package memory is an in-process vault store for tests, the CLI and single
// node deployments.
package memory

import (
	"context"
	"sync"

	"shieldvault/internal/vault/models"
	"shieldvault/internal/vault/ports"
	"shieldvault/pkg/platform/sentinel"
)

// InMemoryStore serializes updates behind a mutex. Writes are staged in an
// overlay and copied into the committed map only when the callback succeeds.
type InMemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func New() *InMemoryStore {
	return &InMemoryStore{values: make(map[string][]byte)}
}

func (s *InMemoryStore) View(ctx context.Context, fn ports.TxFunc) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, &txn{base: s.values, readOnly: true})
}

func (s *InMemoryStore) Update(ctx context.Context, fn ports.TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	t := &txn{base: s.values, staged: make(map[string][]byte)}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for k, v := range t.staged {
		s.values[k] = v
	}
	return nil
}

// Len returns the number of committed keys.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

type txn struct {
	base     map[string][]byte
	staged   map[string][]byte
	readOnly bool
}

func (t *txn) Get(_ context.Context, key models.Key) ([]byte, error) {
	k := key.String()
	if v, ok := t.staged[k]; ok {
		return clone(v), nil
	}
	if v, ok := t.base[k]; ok {
		return clone(v), nil
	}
	return nil, sentinel.ErrNotFound
}

func (t *txn) Set(_ context.Context, key models.Key, value []byte) error {
	if t.readOnly {
		return ports.ErrReadOnly
	}
	t.staged[key.String()] = clone(value)
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
