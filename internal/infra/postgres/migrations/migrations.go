package migrations

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations holds the schema for tests and attempts.
var Migrations = migrate.NewMigrations()
