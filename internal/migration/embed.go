package migration

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "migrations"

// EmbeddedMigrations returns the postgres migration files rooted at the
// migrations directory.
func EmbeddedMigrations() fs.FS {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		panic(err)
	}
	return sub
}
