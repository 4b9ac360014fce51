package sqlkv

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shieldvault/internal/vault/models"
	"shieldvault/internal/vault/ports"
	dErrors "shieldvault/pkg/domain-errors"
	"shieldvault/pkg/platform/sentinel"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

var (
	selectQuery = regexp.QuoteMeta(`SELECT v FROM vault_kv WHERE k = $1`)
	upsertQuery = regexp.QuoteMeta(`INSERT INTO vault_kv (k, v) VALUES ($1, $2)`)
)

func TestDialectFor(t *testing.T) {
	for _, driver := range []string{"postgres", "pgx"} {
		d, err := DialectFor(driver)
		require.NoError(t, err)
		assert.Equal(t, "postgres", d.Name)
	}

	d, err := DialectFor("sqlite")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name)

	_, err = DialectFor("mysql")
	assert.Error(t, err)
}

func TestStore_EnsureSchema(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS vault_kv")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, New(db, Postgres).EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateCommitsWrites(t *testing.T) {
	db, mock := newMock(t)
	store := New(db, Postgres)

	mock.ExpectBegin()
	mock.ExpectQuery(selectQuery).
		WithArgs("admin").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(upsertQuery).
		WithArgs("admin", []byte("a")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Update(context.Background(), func(ctx context.Context, kv ports.KV) error {
		if _, err := kv.Get(ctx, models.KeyAdmin); !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		return kv.Set(ctx, models.KeyAdmin, []byte("a"))
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ViewReadsValue(t *testing.T) {
	db, mock := newMock(t)
	store := New(db, Postgres)

	mock.ExpectBegin()
	mock.ExpectQuery(selectQuery).
		WithArgs("max_tx_amount_safe").
		WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow([]byte{0x03, 0xe8}))
	mock.ExpectCommit()

	var got []byte
	err := store.View(context.Background(), func(ctx context.Context, kv ports.KV) error {
		v, err := kv.Get(ctx, models.KeySafeLimit)
		got = v
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0xe8}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ViewRejectsWrites(t *testing.T) {
	db, mock := newMock(t)
	store := New(db, Postgres)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.View(context.Background(), func(ctx context.Context, kv ports.KV) error {
		return kv.Set(ctx, models.KeyAdmin, []byte("x"))
	})
	assert.ErrorIs(t, err, ports.ErrReadOnly)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CallbackErrorRollsBack(t *testing.T) {
	db, mock := newMock(t)
	store := New(db, Postgres)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec(upsertQuery).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := store.Update(context.Background(), func(ctx context.Context, kv ports.KV) error {
		if err := kv.Set(ctx, models.KeySafeLimit, []byte("x")); err != nil {
			return err
		}
		return boom
	})
	assert.Same(t, boom, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SerializationFailureIsConflict(t *testing.T) {
	db, mock := newMock(t)
	store := New(db, Postgres)

	mock.ExpectBegin()
	mock.ExpectExec(upsertQuery).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})

	err := store.Update(context.Background(), func(ctx context.Context, kv ports.KV) error {
		return kv.Set(ctx, models.KeyAdmin, []byte("x"))
	})
	assert.ErrorIs(t, err, sentinel.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_StatementDeadlockIsConflict(t *testing.T) {
	db, mock := newMock(t)
	store := New(db, Postgres)

	mock.ExpectBegin()
	mock.ExpectQuery(selectQuery).WillReturnError(&pgconn.PgError{Code: "40P01"})
	mock.ExpectRollback()

	err := store.Update(context.Background(), func(ctx context.Context, kv ports.KV) error {
		_, err := kv.Get(ctx, models.KeyAdmin)
		return err
	})
	assert.ErrorIs(t, err, sentinel.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_OtherDriverErrorsPassThrough(t *testing.T) {
	db, mock := newMock(t)
	store := New(db, Postgres)

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	err := store.Update(context.Background(), func(ctx context.Context, kv ports.KV) error {
		return nil
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, sentinel.ErrConflict)
	assert.Contains(t, err.Error(), "connection refused")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CancelledContextNeverBegins(t *testing.T) {
	db, mock := newMock(t)
	store := New(db, Postgres)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Update(ctx, func(ctx context.Context, kv ports.KV) error {
		t.Fatal("callback must not run")
		return nil
	})
	assert.Equal(t, dErrors.CodeTimeout, dErrors.CodeOf(err))
	assert.ErrorIs(t, err, context.Canceled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestKV_RequiresTransactionInContext(t *testing.T) {
	k := &kv{dialect: Postgres}
	_, err := k.Get(context.Background(), models.KeyAdmin)
	assert.Error(t, err)
}
