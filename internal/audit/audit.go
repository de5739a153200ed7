// Package audit records mutating API operations in Postgres. Auditing is best
// effort: a nil *Log disables it, and write failures are logged and swallowed
// so they never fail the operation being audited.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/civicmesh/civic-broker/pkg/postgres"
)

// Entry is one audited operation.
type Entry struct {
	Operation string
	UserID    string
	ClientIP  string
	Payload   any
}

// Log writes audit entries to the audit_log table.
type Log struct {
	db     *postgres.Client
	logger *slog.Logger
}

// New creates an audit log over the given Postgres client. Returns nil when
// db is nil, which callers treat as auditing disabled.
func New(db *postgres.Client) *Log {
	if db == nil {
		return nil
	}
	return &Log{
		db:     db,
		logger: slog.Default().With("component", "audit"),
	}
}

// EnsureSchema creates the audit table if it does not exist.
func (l *Log) EnsureSchema(ctx context.Context) error {
	if l == nil {
		return nil
	}
	_, err := l.db.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_log (
			id          BIGSERIAL PRIMARY KEY,
			operation   TEXT        NOT NULL,
			user_id     TEXT        NOT NULL DEFAULT '',
			client_ip   TEXT        NOT NULL DEFAULT '',
			payload     JSONB       NOT NULL DEFAULT '{}',
			recorded_at TIMESTAMPTZ NOT NULL
		)`)
	return err
}

// Record writes one entry. Failures are logged, never returned.
func (l *Log) Record(ctx context.Context, e Entry) {
	if l == nil {
		return
	}
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		l.logger.Warn("audit payload not serializable", "operation", e.Operation, "error", err)
		payload = []byte("{}")
	}
	_, err = l.db.DB.ExecContext(ctx, `
		INSERT INTO audit_log (operation, user_id, client_ip, payload, recorded_at)
		VALUES ($1, $2, $3, $4, $5)`,
		e.Operation, e.UserID, e.ClientIP, payload, time.Now().UTC())
	if err != nil {
		l.logger.Warn("audit write failed", "operation", e.Operation, "error", err)
	}
}
