// Package sqlite implements the replygate stores on an embedded SQLite
// database (standalone mode).
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/replygate/internal/store"
)

// OpenDB opens (and if needed creates) the SQLite database at path with the
// pragmas the stores rely on.
func OpenDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids SQLITE_BUSY
	// churn under concurrent stat inserts.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// NewStores creates all stores backed by one SQLite database.
func NewStores(path string) (*store.Stores, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	return &store.Stores{
		Patterns: NewPatternStore(db),
		Stats:    NewStatStore(db),
		Close:    db.Close,
	}, nil
}
