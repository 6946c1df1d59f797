// Package migrations embeds the goose SQL migrations for the Postgres store.
package migrations

import "embed"

// Files holds the embedded migration scripts, applied in order by goose.
//
//go:embed *.sql
var Files embed.FS
