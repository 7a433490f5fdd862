//go:build postgres

package postgres

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pgmigrations "opent1d/migrations/postgres"
)

var upFileRe = regexp.MustCompile(`^(\d+)_.+\.up\.sql$`)

// migration is one embedded NNNN_name.up.sql file.
type migration struct {
	version int
	file    string
}

const bookkeepingDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS schema_info (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    schema_version INTEGER NOT NULL,
    app_version TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// embeddedMigrations lists the up migrations in version order.
func embeddedMigrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var out []migration
	for _, e := range entries {
		m := upFileRe.FindStringSubmatch(e.Name())
		if e.IsDir() || m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", e.Name(), err)
		}
		out = append(out, migration{version: v, file: e.Name()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func appliedVersions(ctx context.Context, q querier) (map[int]bool, error) {
	rows, err := q.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, err
	}
	applied := make(map[int]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

// applyMigration runs one file and records it in the same transaction.
func applyMigration(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, m migration) error {
	body, err := fs.ReadFile(fsys, m.file)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", m.file, err)
	}
	stmt := strings.TrimSpace(string(body))
	if stmt == "" {
		return nil
	}
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.file, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations(version, name) VALUES($1, $2)`, m.version, m.file); err != nil {
			return fmt.Errorf("record migration %s: %w", m.file, err)
		}
		return nil
	})
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, bookkeepingDDL); err != nil {
		return fmt.Errorf("create migration tables: %w", err)
	}
	fsys := fs.FS(pgmigrations.Files)
	files, err := embeddedMigrations(fsys)
	if err != nil {
		return err
	}
	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return err
	}

	latest := 0
	for _, m := range files {
		latest = max(latest, m.version)
		if applied[m.version] {
			continue
		}
		if err := applyMigration(ctx, pool, fsys, m); err != nil {
			return err
		}
	}

	appVersion := os.Getenv("APP_VERSION")
	if appVersion == "" {
		appVersion = "dev"
	}
	_, err = pool.Exec(ctx, `INSERT INTO schema_info(id, schema_version, app_version) VALUES(1, $1, $2)
		ON CONFLICT(id) DO UPDATE SET schema_version = EXCLUDED.schema_version, app_version = EXCLUDED.app_version, applied_at = NOW()`,
		latest, appVersion)
	return err
}

// Status summarizes the schema at connStr against the embedded migrations
// without applying anything.
func Status(connStr string) (string, error) {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return "", err
	}
	defer pool.Close()

	files, err := embeddedMigrations(pgmigrations.Files)
	if err != nil {
		return "", err
	}
	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return "", err
	}
	latest, pending := 0, 0
	for v := range applied {
		latest = max(latest, v)
	}
	for _, m := range files {
		if !applied[m.version] {
			pending++
		}
	}
	return fmt.Sprintf("schema_version=%d applied=%d pending=%d", latest, len(applied), pending), nil
}
