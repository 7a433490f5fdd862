// Package storage defines persistence for OpenT1D settings and glucose readings.
package storage

import (
	"context"
	"time"

	"opent1d/internal/domain"
)

// SettingsStore manages the LibreLinkUp settings.
type SettingsStore interface {
	// GetSettings returns ErrNotFound when nothing has been saved yet.
	GetSettings(ctx context.Context) (*domain.Settings, error)
	// SaveSettings replaces the stored settings.
	SaveSettings(ctx context.Context, settings *domain.Settings) error
}

// CGMStore manages glucose readings.
type CGMStore interface {
	// SaveCGM upserts readings keyed by timestamp; the last write wins.
	SaveCGM(ctx context.Context, entries ...domain.CGMEntry) error
	// LoadCGMInterval returns readings in [from, to] ordered by time.
	LoadCGMInterval(ctx context.Context, from, to time.Time) ([]domain.CGMEntry, error)
}

// Store is the full persistence interface used by the server.
type Store interface {
	SettingsStore
	CGMStore
	Close() error
}

// HealthCheck provides database health checking.
type HealthCheck interface {
	// Ping checks database connectivity.
	Ping(ctx context.Context) error
}

// Sealer encrypts secrets before they are written and decrypts them on read.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// SealSettings returns a copy of s with the password sealed.
// A nil sealer leaves the password untouched.
func SealSettings(sealer Sealer, s domain.Settings) (domain.Settings, error) {
	if sealer == nil || s.LibreLinkUpPassword == "" {
		return s, nil
	}
	sealed, err := sealer.Seal(s.LibreLinkUpPassword)
	if err != nil {
		return domain.Settings{}, err
	}
	s.LibreLinkUpPassword = sealed
	return s, nil
}

// OpenSettings reverses SealSettings.
func OpenSettings(sealer Sealer, s domain.Settings) (domain.Settings, error) {
	if sealer == nil || s.LibreLinkUpPassword == "" {
		return s, nil
	}
	plain, err := sealer.Open(s.LibreLinkUpPassword)
	if err != nil {
		return domain.Settings{}, err
	}
	s.LibreLinkUpPassword = plain
	return s, nil
}
