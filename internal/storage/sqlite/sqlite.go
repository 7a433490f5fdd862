//go:build sqlite

// Package sqlite implements storage.Store on top of modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // CGO-less SQLite driver

	"opent1d/internal/storage"
)

// Store is a SQLite-backed storage.Store.
type Store struct {
	db     *sql.DB
	sealer storage.Sealer
}

// Option configures a Store.
type Option func(*Store)

// WithSealer encrypts the LibreLinkUp password at rest.
func WithSealer(s storage.Sealer) Option {
	return func(st *Store) { st.sealer = s }
}

var (
	_ storage.Store       = (*Store)(nil)
	_ storage.HealthCheck = (*Store)(nil)
)

// New opens the database at dsn and applies pending migrations.
func New(dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // SQLite single-writer
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000; PRAGMA foreign_keys=ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Status returns a schema summary for dsn without running migrations.
func Status(dsn string) (string, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return "", err
	}
	defer db.Close()
	var latest, count int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version),0), COUNT(1) FROM schema_migrations`).Scan(&latest, &count); err != nil {
		return "", err
	}
	var appVersion, appliedAt string
	_ = db.QueryRow(`SELECT app_version, applied_at FROM schema_info WHERE id=1`).Scan(&appVersion, &appliedAt)
	return fmt.Sprintf("schema_version=%d applied=%d app_version=%s applied_at=%s", latest, count, appVersion, appliedAt), nil
}

// DB returns the underlying connection for stores sharing the database.
func (s *Store) DB() *sql.DB { return s.db }

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
