// Package migrations embeds the SQL schema of the local API-key store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
