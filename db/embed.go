// Package db embeds the store server database schema.
package db

import _ "embed"

// Schema creates the product, tax config, invoice and user tables. It is
// idempotent.
//
//go:embed migrations/001_schema.sql
var Schema string
