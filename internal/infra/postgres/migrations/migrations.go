package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the ordered schema history; each file in this package
// registers one step.
var Migrations = migrate.NewMigrations()
