// Package migrations holds the SQL schema of the reference storage adapter.
package migrations

import "embed"

// FS contains the numbered *.sql migration files.
//
//go:embed *.sql
var FS embed.FS
