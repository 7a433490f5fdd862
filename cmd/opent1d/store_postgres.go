//go:build postgres && !sqlite

package main

import (
	"opent1d/internal/audit"
	"opent1d/internal/config"
	"opent1d/internal/observability"
	"opent1d/internal/storage"
)

// selectStore returns a PostgreSQL-backed store when built with the
// 'postgres' tag. Configure with database_url / OPENT1D_DATABASE_URL.
func selectStore(cfg *config.Config, sealer storage.Sealer, logger observability.Logger) storage.Store {
	return openPostgres(cfg, sealer, logger, func() storage.Store {
		logger.Warn("falling back to memory store")
		return storage.NewMemoryStore()
	})
}

func migrationStatus(cfg *config.Config) string {
	return postgresStatus(cfg)
}

// selectAuditLogger stores audit events in PostgreSQL, or in memory when the
// store fell back to memory.
func selectAuditLogger(store storage.Store, logger observability.Logger) audit.AuditLogger {
	if al, ok := postgresAuditLogger(store, logger); ok {
		return al
	}
	logger.Warn("audit events are kept in memory only")
	return audit.NewMemoryAuditLogger()
}
