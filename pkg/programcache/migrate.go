package programcache

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigratePostgres applies every pending schema migration. Unlike the
// SQLite backend's CREATE TABLE IF NOT EXISTS, this is the production
// path and gets tracked, reversible migrations instead.
func MigratePostgres(db *sql.DB) error {
	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply programcache migrations: %w", err)
	}
	return nil
}
