//go:build sqlite

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"opent1d/internal/domain"
	"opent1d/internal/storage"
)

const settingsKey = "librelinkup"

// GetSettings retrieves the LibreLinkUp settings from the settings table.
func (s *Store) GetSettings(ctx context.Context) (*domain.Settings, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, settingsKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	var stored domain.Settings
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	opened, err := storage.OpenSettings(s.sealer, stored)
	if err != nil {
		return nil, fmt.Errorf("decrypt settings: %w", err)
	}
	return &opened, nil
}

// SaveSettings upserts the LibreLinkUp settings.
func (s *Store) SaveSettings(ctx context.Context, settings *domain.Settings) error {
	if settings == nil {
		return storage.ErrValidation
	}
	sealed, err := storage.SealSettings(s.sealer, *settings)
	if err != nil {
		return fmt.Errorf("encrypt settings: %w", err)
	}
	raw, err := json.Marshal(sealed)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, datetime('now'))
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		settingsKey, string(raw))
	return err
}
