// Package audit records who changed the LibreLinkUp settings and when.
package audit

import (
	"context"
	"time"
)

// AuditEvent is a single auditable action.
type AuditEvent struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Actor        string    `json:"actor"`  // transport that made the change: "graphql", "rest", "webui"
	Action       string    `json:"action"` // "update", "verify"
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Changes      *Changes  `json:"changes,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	Outcome      string    `json:"outcome"`
}

// Changes captures the before and after state. Passwords are never stored.
type Changes struct {
	Before map[string]any `json:"before,omitempty"`
	After  map[string]any `json:"after,omitempty"`
}

// ListOptions filters and paginates audit events.
type ListOptions struct {
	Limit        int
	Offset       int
	Actor        string
	Action       string
	ResourceType string
	Since        *time.Time
}

// AuditLogger records and lists audit events.
type AuditLogger interface {
	Log(ctx context.Context, event *AuditEvent) error
	List(ctx context.Context, opts ListOptions) ([]*AuditEvent, int, error)
}

const (
	ActionUpdate = "update"
	ActionVerify = "verify"
)

const ResourceSettings = "settings"

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

type actorKey struct{}

// WithActor tags ctx with the transport performing a change.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor set by WithActor, or "system".
func ActorFromContext(ctx context.Context) string {
	if a, ok := ctx.Value(actorKey{}).(string); ok && a != "" {
		return a
	}
	return "system"
}
