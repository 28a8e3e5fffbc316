package db

import "embed"

// MigrationFS embeds SQL migration files from internal/db/migrations for the migrate runner (cmd/migrate).
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
