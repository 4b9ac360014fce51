package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shieldvault/internal/platform/config"
)

func TestOpen_SQLite(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "vault.db")
	db, err := Open(context.Background(), config.StoreConfig{Driver: config.DriverSQLite, DSN: dsn})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}

func TestOpen_RejectsNonSQLDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: config.DriverRedis})
	assert.ErrorContains(t, err, "not sql-backed")
}
