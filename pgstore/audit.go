package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"github.com/smartsec-cloud/authcore"
)

const eventsSchema = `
CREATE TABLE IF NOT EXISTS security_events (
	id TEXT PRIMARY KEY,
	ts TIMESTAMPTZ NOT NULL,
	event_type TEXT NOT NULL,
	account_id TEXT NOT NULL DEFAULT '',
	session_id TEXT NOT NULL DEFAULT '',
	ip TEXT NOT NULL DEFAULT '',
	user_agent TEXT NOT NULL DEFAULT '',
	success BOOLEAN NOT NULL,
	severity TEXT NOT NULL,
	details JSONB NOT NULL DEFAULT '{}'::jsonb
);
CREATE INDEX IF NOT EXISTS security_events_account_idx ON security_events (account_id, ts);
CREATE INDEX IF NOT EXISTS security_events_type_idx ON security_events (event_type, ts)`

// AuditSink appends audit events to the security_events table. Rows are
// insert-only; there is no update path.
type AuditSink struct {
	db *sqlx.DB
}

// NewAuditSink wraps db and ensures the event schema exists.
func NewAuditSink(db *sqlx.DB) (*AuditSink, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	if _, err := db.Exec(eventsSchema); err != nil {
		return nil, fmt.Errorf("ensure security_events schema: %w", err)
	}
	return &AuditSink{db: db}, nil
}

// Emit implements authcore.AuditSink. Delivery is best effort; a failed
// insert is logged and dropped rather than retried, the dispatcher must never
// back up behind the database.
func (s *AuditSink) Emit(ctx context.Context, event authcore.AuditEvent) {
	details := []byte("{}")
	if len(event.Details) > 0 {
		if encoded, err := json.Marshal(event.Details); err == nil {
			details = encoded
		}
	}

	const query = `
INSERT INTO security_events (id, ts, event_type, account_id, session_id, ip,
	user_agent, success, severity, details)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.db.ExecContext(ctx, query,
		event.ID, event.Timestamp, event.EventType, event.AccountID,
		event.SessionID, event.IP, event.UserAgent, event.Success,
		event.Severity, details)
	if err != nil {
		log.Printf("pgstore: audit insert failed: %v", err)
	}
}

// RecentEvents returns up to limit events for the account, newest first. It
// backs the operator-facing security report.
func (s *AuditSink) RecentEvents(ctx context.Context, accountID string, limit int) ([]authcore.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	const query = `
SELECT id, ts, event_type, account_id, session_id, ip, user_agent, success,
	severity, details
FROM security_events
WHERE account_id = $1
ORDER BY ts DESC
LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("query security events: %w", err)
	}
	defer rows.Close()

	var out []authcore.AuditEvent
	for rows.Next() {
		var event authcore.AuditEvent
		var details []byte
		if err := rows.Scan(&event.ID, &event.Timestamp, &event.EventType,
			&event.AccountID, &event.SessionID, &event.IP, &event.UserAgent,
			&event.Success, &event.Severity, &details); err != nil {
			return nil, fmt.Errorf("scan security event: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &event.Details); err != nil {
				return nil, fmt.Errorf("decode event details: %w", err)
			}
		}
		out = append(out, event)
	}
	return out, rows.Err()
}
