package store

import (
	"database/sql"
	"log"
	"os"
	"testing"

	_ "modernc.org/sqlite"
)

var userStore *UserSQLiteStore

// openTestDB returns a migrated in-memory database. A single connection
// keeps every query on the same in-memory database.
func openTestDB() (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, err
	}
	if err := RunMigrations(db, DialectSQLite); err != nil {
		return nil, err
	}
	return db, nil
}

func TestMain(m *testing.M) {
	db, err := openTestDB()
	if err != nil {
		log.Fatal(err)
	}

	userStore = NewUserSQLiteStore(db, db)
	code := m.Run()
	_ = db.Close()
	os.Exit(code)
}
