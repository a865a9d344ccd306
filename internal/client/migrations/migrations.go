// Package migrations embeds the goose migrations of the device-local store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
