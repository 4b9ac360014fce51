package sqlkv

import (
	"database/sql"
	"fmt"
)

// Dialect holds the statements and isolation settings of one SQL engine.
type Dialect struct {
	Name       string
	Schema     string
	selectSQL  string
	upsertSQL  string
	viewOpts   *sql.TxOptions
	updateOpts *sql.TxOptions
}

// Postgres serves both the lib/pq ("postgres") and pgx ("pgx") drivers.
// Updates run SERIALIZABLE so two transactions that read-then-write the same
// keys cannot both commit; the loser fails with SQLSTATE 40001.
var Postgres = Dialect{
	Name: "postgres",
	Schema: `CREATE TABLE IF NOT EXISTS vault_kv (
	k TEXT PRIMARY KEY,
	v BYTEA NOT NULL
)`,
	selectSQL:  `SELECT v FROM vault_kv WHERE k = $1`,
	upsertSQL:  `INSERT INTO vault_kv (k, v) VALUES ($1, $2) ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v`,
	viewOpts:   &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true},
	updateOpts: &sql.TxOptions{Isolation: sql.LevelSerializable},
}

// SQLite relies on the single-connection pool opened by the platform
// database package: transactions run one at a time.
var SQLite = Dialect{
	Name: "sqlite",
	Schema: `CREATE TABLE IF NOT EXISTS vault_kv (
	k TEXT PRIMARY KEY,
	v BLOB NOT NULL
)`,
	selectSQL: `SELECT v FROM vault_kv WHERE k = ?`,
	upsertSQL: `INSERT INTO vault_kv (k, v) VALUES (?, ?) ON CONFLICT (k) DO UPDATE SET v = excluded.v`,
}

// DialectFor maps a database/sql driver name onto its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return Postgres, nil
	case "sqlite":
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("no sql dialect for driver %q", driver)
	}
}
