package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"opent1d/internal/domain"
)

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu       sync.RWMutex
	settings *domain.Settings
	cgm      map[int64]domain.CGMEntry
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cgm: make(map[int64]domain.CGMEntry)}
}

func (m *MemoryStore) GetSettings(_ context.Context) (*domain.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return nil, ErrNotFound
	}
	cp := *m.settings
	return &cp, nil
}

func (m *MemoryStore) SaveSettings(_ context.Context, settings *domain.Settings) error {
	if settings == nil {
		return ErrValidation
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *settings
	m.settings = &cp
	return nil
}

func (m *MemoryStore) SaveCGM(_ context.Context, entries ...domain.CGMEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.cgm[e.Timestamp.Unix()] = domain.NewCGMEntry(time.Unix(e.Timestamp.Unix(), 0).UTC(), e.Mmoll)
	}
	return nil
}

func (m *MemoryStore) LoadCGMInterval(_ context.Context, from, to time.Time) ([]domain.CGMEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []domain.CGMEntry{}
	for ts, e := range m.cgm {
		if ts >= from.Unix() && ts <= to.Unix() {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(_ context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
