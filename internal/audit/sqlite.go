//go:build sqlite

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"opent1d/internal/storage"
)

// SQLiteAuditLogger stores audit events in the audit_events table of the
// settings database.
type SQLiteAuditLogger struct {
	db *sql.DB
}

// NewSQLiteAuditLogger uses an existing, migrated connection. Closing the
// logger is left to the owner of db.
func NewSQLiteAuditLogger(db *sql.DB) *SQLiteAuditLogger {
	return &SQLiteAuditLogger{db: db}
}

// Log records an audit event. A reused event ID returns storage.ErrConflict.
func (s *SQLiteAuditLogger) Log(ctx context.Context, event *AuditEvent) error {
	if event == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	var changes sql.NullString
	if event.Changes != nil {
		if data, err := json.Marshal(event.Changes); err == nil {
			changes = sql.NullString{String: string(data), Valid: true}
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, ts, actor, action, resource_type, resource_id, changes, request_id, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Timestamp.UTC().UnixNano(),
		event.Actor,
		event.Action,
		event.ResourceType,
		event.ResourceID,
		changes,
		sql.NullString{String: event.RequestID, Valid: event.RequestID != ""},
		event.Outcome,
	)
	return storage.WrapIfConflict(err)
}

// List returns matching events newest first and the total match count.
func (s *SQLiteAuditLogger) List(ctx context.Context, opts ListOptions) ([]*AuditEvent, int, error) {
	where := "1=1"
	args := []any{}
	if opts.Actor != "" {
		where += " AND actor = ?"
		args = append(args, opts.Actor)
	}
	if opts.Action != "" {
		where += " AND action = ?"
		args = append(args, opts.Action)
	}
	if opts.ResourceType != "" {
		where += " AND resource_type = ?"
		args = append(args, opts.ResourceType)
	}
	if opts.Since != nil {
		where += " AND ts >= ?"
		args = append(args, opts.Since.UTC().UnixNano())
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_events WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	args = append(args, opts.Limit, max(opts.Offset, 0))
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, ts, actor, action, resource_type, resource_id, changes, request_id, outcome FROM audit_events WHERE "+
			where+" ORDER BY ts DESC, rowid DESC LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	events := []*AuditEvent{}
	for rows.Next() {
		var e AuditEvent
		var ts int64
		var changes, requestID sql.NullString
		if err := rows.Scan(&e.ID, &ts, &e.Actor, &e.Action, &e.ResourceType, &e.ResourceID, &changes, &requestID, &e.Outcome); err != nil {
			return nil, 0, err
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		e.RequestID = requestID.String
		if changes.Valid && changes.String != "" {
			var c Changes
			if err := json.Unmarshal([]byte(changes.String), &c); err == nil {
				e.Changes = &c
			}
		}
		events = append(events, &e)
	}
	return events, total, rows.Err()
}
