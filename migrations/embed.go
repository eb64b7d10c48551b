// Package migrations holds the goose migrations for the review database.
package migrations

import "embed"

// FS contains every *.sql migration, applied in version order.
//
//go:embed *.sql
var FS embed.FS
