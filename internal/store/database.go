package store

import (
	"database/sql"
	"runtime"

	"github.com/haatos/simple-cd/internal/logging"
	"github.com/haatos/simple-cd/internal/settings"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// Dialect returns the goose dialect matching the configured driver.
func Dialect() string {
	if settings.Settings.UsePostgres() {
		return DialectPostgres
	}
	return DialectSQLite
}

func InitDatabase(readonly bool) *sql.DB {
	if settings.Settings.UsePostgres() {
		db, err := sql.Open("pgx", settings.Settings.PostgresURL)
		if err != nil {
			logging.L().Fatal("fatal error opening postgres database", zap.Error(err))
		}
		db.SetMaxOpenConns(max(4, runtime.NumCPU()))
		return db
	}

	db, err := sql.Open("sqlite", settings.Settings.SQLiteDbString(readonly))
	if err != nil {
		logging.L().Fatal("fatal error opening sqlite database", zap.Error(err))
	}

	if readonly {
		db.SetMaxOpenConns(max(4, runtime.NumCPU()))
	} else {
		if _, err := db.Exec("PRAGMA temp_store=memory"); err != nil {
			logging.L().Fatal("setting temp_store", zap.Error(err))
		}
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			logging.L().Fatal("enabling foreign keys", zap.Error(err))
		}
		db.SetMaxOpenConns(1)
	}

	return db
}
