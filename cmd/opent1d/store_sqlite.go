//go:build sqlite && !postgres

package main

import (
	"opent1d/internal/audit"
	"opent1d/internal/config"
	"opent1d/internal/observability"
	"opent1d/internal/storage"
)

// selectStore returns a SQLite-backed store at cfg.DBPath when built with the
// 'sqlite' tag.
func selectStore(cfg *config.Config, sealer storage.Sealer, logger observability.Logger) storage.Store {
	if cfg.DatabaseURL != "" {
		logger.Warn("database_url set, but binary not built with -tags postgres; using sqlite")
	}
	return openSQLite(cfg, sealer, logger)
}

func migrationStatus(cfg *config.Config) string {
	return sqliteStatus(cfg.DBPath)
}

// selectAuditLogger stores audit events in the SQLite database, or in memory
// when the store fell back to memory.
func selectAuditLogger(store storage.Store, logger observability.Logger) audit.AuditLogger {
	if al, ok := sqliteAuditLogger(store, logger); ok {
		return al
	}
	logger.Warn("audit events are kept in memory only")
	return audit.NewMemoryAuditLogger()
}
