//go:build sqlite && postgres

package main

import (
	"opent1d/internal/audit"
	"opent1d/internal/config"
	"opent1d/internal/observability"
	"opent1d/internal/storage"
)

// selectStore picks PostgreSQL if database_url is set, otherwise SQLite.
func selectStore(cfg *config.Config, sealer storage.Sealer, logger observability.Logger) storage.Store {
	if cfg.DatabaseURL != "" {
		return openPostgres(cfg, sealer, logger, func() storage.Store {
			logger.Warn("falling back to sqlite")
			return openSQLite(cfg, sealer, logger)
		})
	}
	return openSQLite(cfg, sealer, logger)
}

func migrationStatus(cfg *config.Config) string {
	if cfg.DatabaseURL != "" {
		return postgresStatus(cfg)
	}
	return sqliteStatus(cfg.DBPath)
}

// selectAuditLogger follows whichever database selectStore ended up using.
func selectAuditLogger(store storage.Store, logger observability.Logger) audit.AuditLogger {
	if al, ok := postgresAuditLogger(store, logger); ok {
		return al
	}
	if al, ok := sqliteAuditLogger(store, logger); ok {
		return al
	}
	logger.Warn("audit events are kept in memory only")
	return audit.NewMemoryAuditLogger()
}
