// Package postgres embeds the SQL schema migrations for the PostgreSQL store.
package postgres

import "embed"

// Files holds the numbered PostgreSQL migrations (NNNN_name.up.sql).
//
//go:embed *.sql
var Files embed.FS
