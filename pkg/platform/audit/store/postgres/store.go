package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	audit "shieldvault/pkg/platform/audit"
)

// Schema creates the audit table. Applied by EnsureSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS vault_audit_events (
	id          UUID PRIMARY KEY,
	category    TEXT NOT NULL,
	timestamp   TIMESTAMPTZ NOT NULL,
	caller      TEXT NOT NULL,
	subject     TEXT NOT NULL DEFAULT '',
	action      TEXT NOT NULL,
	mode        TEXT NOT NULL DEFAULT '',
	amount      TEXT NOT NULL DEFAULT '',
	decision    TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL DEFAULT '',
	vault_code  INTEGER NOT NULL DEFAULT 0,
	request_id  TEXT NOT NULL DEFAULT '',
	client_ip   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS vault_audit_events_caller_idx ON vault_audit_events (caller, timestamp);
`

// Store implements audit.Store on PostgreSQL. Events are written on the
// store's own connection: a vault transaction that rolls back must not take
// its rejection audit with it.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the audit table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

// Append inserts an audit event. Duplicate IDs are ignored.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}

	query := `
		INSERT INTO vault_audit_events (
			id, category, timestamp, caller, subject, action,
			mode, amount, decision, reason, vault_code, request_id, client_ip
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		string(event.Category),
		event.Timestamp,
		event.Caller,
		event.Subject,
		event.Action,
		event.Mode,
		event.Amount,
		event.Decision,
		event.Reason,
		int(event.VaultCode),
		event.RequestID,
		event.ClientIP,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT id, category, timestamp, caller, subject, action,
		   mode, amount, decision, reason, vault_code, request_id, client_ip
	FROM vault_audit_events
`

// ListByCaller returns a caller's events, oldest first.
func (s *Store) ListByCaller(ctx context.Context, caller string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`WHERE caller = $1 ORDER BY timestamp ASC`, caller)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListRecent returns the N most recent events, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`ORDER BY timestamp DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event

	for rows.Next() {
		var (
			event     audit.Event
			category  string
			vaultCode int
		)
		err := rows.Scan(
			&event.ID,
			&category,
			&event.Timestamp,
			&event.Caller,
			&event.Subject,
			&event.Action,
			&event.Mode,
			&event.Amount,
			&event.Decision,
			&event.Reason,
			&vaultCode,
			&event.RequestID,
			&event.ClientIP,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		event.VaultCode = uint16(vaultCode)
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}

	return events, nil
}
