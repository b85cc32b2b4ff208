// Package migrations embeds the goose migrations of the durable credential
// database.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
