package audit

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxEvents is the default maximum number of events to store.
const DefaultMaxEvents = 1000

// MemoryAuditLogger keeps events newest first, bounded by maxEvents.
type MemoryAuditLogger struct {
	mu        sync.RWMutex
	events    []*AuditEvent
	maxEvents int
}

// MemoryAuditLoggerOption configures a MemoryAuditLogger.
type MemoryAuditLoggerOption func(*MemoryAuditLogger)

// WithMaxEvents sets the maximum number of events to store.
func WithMaxEvents(max int) MemoryAuditLoggerOption {
	return func(m *MemoryAuditLogger) {
		if max > 0 {
			m.maxEvents = max
		}
	}
}

// NewMemoryAuditLogger creates a new in-memory audit logger.
func NewMemoryAuditLogger(opts ...MemoryAuditLoggerOption) *MemoryAuditLogger {
	m := &MemoryAuditLogger{maxEvents: DefaultMaxEvents}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Log records an audit event.
func (m *MemoryAuditLogger) Log(_ context.Context, event *AuditEvent) error {
	if event == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	cp := copyEvent(event)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append([]*AuditEvent{cp}, m.events...)
	if len(m.events) > m.maxEvents {
		m.events = m.events[:m.maxEvents]
	}
	return nil
}

// List returns the matching page of events and the total match count.
func (m *MemoryAuditLogger) List(_ context.Context, opts ListOptions) ([]*AuditEvent, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var filtered []*AuditEvent
	for _, e := range m.events {
		if matches(e, opts) {
			filtered = append(filtered, e)
		}
	}
	total := len(filtered)

	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	start := min(max(opts.Offset, 0), total)
	end := min(start+opts.Limit, total)

	out := make([]*AuditEvent, 0, end-start)
	for _, e := range filtered[start:end] {
		out = append(out, copyEvent(e))
	}
	return out, total, nil
}

func matches(e *AuditEvent, opts ListOptions) bool {
	if opts.Actor != "" && e.Actor != opts.Actor {
		return false
	}
	if opts.Action != "" && e.Action != opts.Action {
		return false
	}
	if opts.ResourceType != "" && e.ResourceType != opts.ResourceType {
		return false
	}
	if opts.Since != nil && e.Timestamp.Before(*opts.Since) {
		return false
	}
	return true
}

func copyEvent(e *AuditEvent) *AuditEvent {
	cp := *e
	if e.Changes != nil {
		cp.Changes = &Changes{Before: maps.Clone(e.Changes.Before), After: maps.Clone(e.Changes.After)}
	}
	return &cp
}
