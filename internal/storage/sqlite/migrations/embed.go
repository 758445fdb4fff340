package migrations

import "embed"

// FS contains embedded SQLite migrations for battle state storage.
//
//go:embed *.sql
var FS embed.FS
