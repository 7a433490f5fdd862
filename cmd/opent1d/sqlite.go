//go:build sqlite

package main

import (
	"os"
	"path/filepath"
	"strings"

	"opent1d/internal/audit"
	"opent1d/internal/config"
	"opent1d/internal/observability"
	"opent1d/internal/storage"
	sqlitestore "opent1d/internal/storage/sqlite"
)

func openSQLite(cfg *config.Config, sealer storage.Sealer, logger observability.Logger) storage.Store {
	dsn := cfg.DBPath
	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o700); err != nil {
			logger.Error("create database directory failed; falling back to memory store", observability.Err(err))
			return storage.NewMemoryStore()
		}
	}
	var opts []sqlitestore.Option
	if sealer != nil {
		opts = append(opts, sqlitestore.WithSealer(sealer))
	}
	st, err := sqlitestore.New(dsn, opts...)
	if err != nil {
		logger.Error("sqlite init failed; falling back to memory store", observability.Err(err))
		return storage.NewMemoryStore()
	}
	logger.Info("using sqlite store", "dsn", dsn)
	return st
}

func sqliteStatus(dsn string) string {
	s, err := sqlitestore.Status(dsn)
	if err != nil {
		return ""
	}
	return s
}

// sqliteAuditLogger keeps audit events next to the settings when store is
// the SQLite store.
func sqliteAuditLogger(store storage.Store, logger observability.Logger) (audit.AuditLogger, bool) {
	st, ok := store.(*sqlitestore.Store)
	if !ok {
		return nil, false
	}
	logger.Info("using sqlite audit logger")
	return audit.NewSQLiteAuditLogger(st.DB()), true
}
