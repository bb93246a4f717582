// Package migrations holds the SQL schema, applied at start-up by internal/database.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
