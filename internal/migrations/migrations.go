// Package migrations embeds the goose SQL migrations for the index database.
// The SQL is written to run unchanged on SQLite and PostgreSQL.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
