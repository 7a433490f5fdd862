//go:build !sqlite && !postgres

package main

import (
	"opent1d/internal/audit"
	"opent1d/internal/config"
	"opent1d/internal/observability"
	"opent1d/internal/storage"
)

// selectStore returns the in-memory store when built without the 'sqlite' or
// 'postgres' tag. Settings and readings are lost on restart.
func selectStore(cfg *config.Config, _ storage.Sealer, logger observability.Logger) storage.Store {
	if cfg.DatabaseURL != "" {
		logger.Warn("database_url set, but binary not built with -tags postgres; using in-memory store")
	} else {
		logger.Warn("binary not built with -tags sqlite; using in-memory store", "db_path", cfg.DBPath)
	}
	return storage.NewMemoryStore()
}

func migrationStatus(_ *config.Config) string { return "" }

func selectAuditLogger(_ storage.Store, logger observability.Logger) audit.AuditLogger {
	logger.Warn("audit events are kept in memory only")
	return audit.NewMemoryAuditLogger()
}
