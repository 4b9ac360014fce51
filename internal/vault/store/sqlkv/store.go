// Package sqlkv stores vault state as rows of a single key/value table in
// PostgreSQL or SQLite. Every call is one database transaction.
package sqlkv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shieldvault/internal/vault/models"
	"shieldvault/internal/vault/ports"
	dErrors "shieldvault/pkg/domain-errors"
	"shieldvault/pkg/platform/sentinel"
	txcontext "shieldvault/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// SQLSTATE codes that mean "another transaction won, retry".
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

type Store struct {
	db      *sql.DB
	dialect Dialect
	timeout time.Duration
}

type Option func(*Store)

// WithTimeout bounds transactions whose context has no deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.timeout = d
	}
}

func New(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	s := &Store{db: db, dialect: dialect, timeout: defaultTxTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema creates the key/value table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.Schema); err != nil {
		return fmt.Errorf("create vault_kv: %w", err)
	}
	return nil
}

func (s *Store) View(ctx context.Context, fn ports.TxFunc) error {
	return s.runInTx(ctx, s.dialect.viewOpts, true, fn)
}

func (s *Store) Update(ctx context.Context, fn ports.TxFunc) error {
	return s.runInTx(ctx, s.dialect.updateOpts, false, fn)
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) runInTx(ctx context.Context, opts *sql.TxOptions, readOnly bool, fn ports.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin: %w", classify(err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.With(ctx, tx), &kv{dialect: s.dialect, readOnly: readOnly}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", classify(err))
	}
	return nil
}

// kv resolves the transaction from the context it is called with.
type kv struct {
	dialect  Dialect
	readOnly bool
}

func (k *kv) tx(ctx context.Context) (*sql.Tx, error) {
	return txcontext.Require(ctx)
}

func (k *kv) Get(ctx context.Context, key models.Key) ([]byte, error) {
	tx, err := k.tx(ctx)
	if err != nil {
		return nil, err
	}
	var v []byte
	err = tx.QueryRowContext(ctx, k.dialect.selectSQL, key.String()).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", key, classify(err))
	}
	return v, nil
}

func (k *kv) Set(ctx context.Context, key models.Key, value []byte) error {
	if k.readOnly {
		return ports.ErrReadOnly
	}
	tx, err := k.tx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, k.dialect.upsertSQL, key.String(), value); err != nil {
		return fmt.Errorf("upsert %s: %w", key, classify(err))
	}
	return nil
}

// classify tags serialization failures and deadlocks as conflicts. Both
// lib/pq and pgx errors expose SQLState.
func classify(err error) error {
	var state interface{ SQLState() string }
	if errors.As(err, &state) {
		switch state.SQLState() {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected:
			return fmt.Errorf("%w: %w", sentinel.ErrConflict, err)
		}
	}
	return err
}
