package store

import (
	"database/sql"
	"fmt"
	"path"

	assets "github.com/haatos/simple-cd"
	"github.com/pressly/goose/v3"
)

// RunMigrations applies the embedded migrations for dialect.
func RunMigrations(db *sql.DB, dialect string) error {
	goose.SetBaseFS(assets.MigrationsFS)
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	if err := goose.Up(db, path.Join("migrations", dialect)); err != nil {
		return fmt.Errorf("running %s migrations: %w", dialect, err)
	}
	return nil
}

// MigrationVersion returns the current schema version.
func MigrationVersion(db *sql.DB, dialect string) (int64, error) {
	goose.SetBaseFS(assets.MigrationsFS)
	if err := goose.SetDialect(dialect); err != nil {
		return 0, err
	}
	return goose.GetDBVersion(db)
}
