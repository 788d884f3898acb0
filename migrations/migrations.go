// Package migrations embeds SQL migrations for the shared session table.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
