//go:build postgres

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"opent1d/internal/storage"
)

// PostgresAuditLogger stores audit events in PostgreSQL.
type PostgresAuditLogger struct {
	pool *pgxpool.Pool
}

// NewPostgresAuditLogger uses an existing pool whose schema is migrated.
func NewPostgresAuditLogger(pool *pgxpool.Pool) *PostgresAuditLogger {
	return &PostgresAuditLogger{pool: pool}
}

// Log records an audit event. A reused event ID returns storage.ErrConflict.
func (s *PostgresAuditLogger) Log(ctx context.Context, event *AuditEvent) error {
	if event == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	var changes []byte
	if event.Changes != nil {
		if data, err := json.Marshal(event.Changes); err == nil {
			changes = data
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_events (id, ts, actor, action, resource_type, resource_id, changes, request_id, outcome)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9)`,
		event.ID, event.Timestamp.UTC(), event.Actor, event.Action,
		event.ResourceType, event.ResourceID,
		nullBytes(changes), nullStr(event.RequestID), event.Outcome,
	)
	return storage.WrapIfConflict(err)
}

// List returns matching events newest first and the total match count.
func (s *PostgresAuditLogger) List(ctx context.Context, opts ListOptions) ([]*AuditEvent, int, error) {
	where := "1=1"
	args := []any{}
	add := func(clause string, v any) {
		args = append(args, v)
		where += fmt.Sprintf(" AND %s $%d", clause, len(args))
	}
	if opts.Actor != "" {
		add("actor =", opts.Actor)
	}
	if opts.Action != "" {
		add("action =", opts.Action)
	}
	if opts.ResourceType != "" {
		add("resource_type =", opts.ResourceType)
	}
	if opts.Since != nil {
		add("ts >=", opts.Since.UTC())
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_events WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	query := fmt.Sprintf(
		"SELECT id, ts, actor, action, resource_type, resource_id, changes, request_id, outcome FROM audit_events WHERE %s ORDER BY ts DESC LIMIT $%d OFFSET $%d",
		where, len(args)+1, len(args)+2)
	args = append(args, opts.Limit, max(opts.Offset, 0))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	events := []*AuditEvent{}
	for rows.Next() {
		var e AuditEvent
		var changes []byte
		var requestID *string
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Actor, &e.Action, &e.ResourceType, &e.ResourceID, &changes, &requestID, &e.Outcome); err != nil {
			return nil, 0, err
		}
		e.Timestamp = e.Timestamp.UTC()
		if requestID != nil {
			e.RequestID = *requestID
		}
		if len(changes) > 0 {
			var c Changes
			if err := json.Unmarshal(changes, &c); err == nil {
				e.Changes = &c
			}
		}
		events = append(events, &e)
	}
	return events, total, rows.Err()
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
