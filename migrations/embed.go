// Package migrations embeds the goose SQL migrations for the postgres sink.
package migrations

import "embed"

// FS contains all migration SQL files.
//
//go:embed *.sql
var FS embed.FS
