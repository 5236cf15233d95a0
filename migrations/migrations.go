// Package migrations embeds the SQL schema for the pgvector store.
package migrations

import "embed"

// Files holds the schema migrations, applied in file name order.
//
//go:embed *.sql
var Files embed.FS
