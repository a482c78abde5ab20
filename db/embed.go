// Package db embeds the SQL migration files.
package db

import _ "embed"

// Schema is the full DDL for the marketplace tables, applied on startup.
//
//go:embed migrations/001_schema.sql
var Schema string
