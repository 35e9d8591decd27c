package ments

import "embed"

// migrationsFS holds the goose SQL migrations applied by NewStore.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS
