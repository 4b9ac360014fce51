// Package tx carries the *sql.Tx of an open store transaction on the context,
// so the vault store's key/value calls made inside the transaction share it
// instead of opening their own.
package tx

import (
	"context"
	"database/sql"
	"errors"
)

// ErrNoTx is returned by Require when the context carries no transaction.
var ErrNoTx = errors.New("tx: no transaction in context")

// Executor is the subset of *sql.DB and *sql.Tx the stores need.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// With returns ctx carrying t. A nil t leaves ctx unchanged.
func With(ctx context.Context, t *sql.Tx) context.Context {
	if t == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey{}, t)
}

// From reports the transaction carried by ctx, if any.
func From(ctx context.Context) (*sql.Tx, bool) {
	t, ok := ctx.Value(txKey{}).(*sql.Tx)
	return t, ok
}

// Require is From for callers that must run inside a transaction.
func Require(ctx context.Context) (*sql.Tx, error) {
	if t, ok := From(ctx); ok {
		return t, nil
	}
	return nil, ErrNoTx
}

// Or returns the transaction on ctx, falling back to db.
func Or(ctx context.Context, db *sql.DB) Executor {
	if t, ok := From(ctx); ok {
		return t
	}
	return db
}
