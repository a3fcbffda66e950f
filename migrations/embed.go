// Package migrations embeds the SQL schema of the service.
package migrations

import "embed"

// Table is the golang-migrate bookkeeping table of this set.
const Table = "schema_migrations"

//go:embed *.sql
var FS embed.FS
