// Package migrations embeds the SQL schema migrations for the SQLite store.
package migrations

import "embed"

// Files holds the numbered SQLite migrations (NNNN_name.sql).
//
//go:embed *.sql
var Files embed.FS
