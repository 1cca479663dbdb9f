// Package migrations embeds the progression schema migration files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
