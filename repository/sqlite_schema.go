package repository

import "embed"

// migrationsFS embeds the schema the SQLite backend applies on startup,
// following the teacher's srv/sqlite embed.FS + migrations/*.sql layout --
// trimmed to a single idempotent file since this core has no released schema
// history to step through yet.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS
