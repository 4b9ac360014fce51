// Package redis stores vault state in Redis. Every call runs as an optimistic
// WATCH/MULTI/EXEC transaction: keys are watched as they are read, writes are
// queued and applied by EXEC, and EXEC fails if any watched key changed.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"shieldvault/internal/vault/models"
	"shieldvault/internal/vault/ports"
	"shieldvault/pkg/platform/sentinel"
)

type Store struct {
	client *redis.Client
	prefix string
}

// New returns a store writing keys under prefix, e.g. "shieldvault:".
func New(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// View runs fn read-only. EXEC still runs so the reads are validated as one
// snapshot.
func (s *Store) View(ctx context.Context, fn ports.TxFunc) error {
	return s.run(ctx, fn, true)
}

func (s *Store) Update(ctx context.Context, fn ports.TxFunc) error {
	return s.run(ctx, fn, false)
}

func (s *Store) run(ctx context.Context, fn ports.TxFunc, readOnly bool) error {
	var fnErr error
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		t := &txn{tx: tx, prefix: s.prefix, readOnly: readOnly, staged: make(map[string][]byte)}
		if fnErr = fn(ctx, t); fnErr != nil {
			return fnErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(t.staged) == 0 {
				pipe.Ping(ctx)
				return nil
			}
			for k, v := range t.staged {
				pipe.Set(ctx, k, v, 0)
			}
			return nil
		})
		return err
	})
	switch {
	case err == nil:
		return nil
	case fnErr != nil:
		return fnErr
	case errors.Is(err, redis.TxFailedErr):
		return fmt.Errorf("redis transaction: %w", sentinel.ErrConflict)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("redis transaction: %w: %w", sentinel.ErrUnavailable, err)
	}
}

// Ping reports whether Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

type txn struct {
	tx       *redis.Tx
	prefix   string
	readOnly bool
	staged   map[string][]byte
}

func (t *txn) key(k models.Key) string {
	return t.prefix + k.String()
}

func (t *txn) Get(ctx context.Context, key models.Key) ([]byte, error) {
	k := t.key(key)
	if v, ok := t.staged[k]; ok {
		return append([]byte(nil), v...), nil
	}
	if err := t.tx.Watch(ctx, k).Err(); err != nil {
		return nil, fmt.Errorf("watch %s: %w", k, err)
	}
	v, err := t.tx.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", k, err)
	}
	return v, nil
}

func (t *txn) Set(_ context.Context, key models.Key, value []byte) error {
	if t.readOnly {
		return ports.ErrReadOnly
	}
	t.staged[t.key(key)] = append([]byte(nil), value...)
	return nil
}
