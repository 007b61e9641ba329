// Package migrations встраивает goose SQL-миграции для хранилища Scan Hub.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
