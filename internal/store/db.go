package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a user or message does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the requester may not mutate a message.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict is returned when a unique field (email) is already taken.
	ErrConflict = errors.New("conflict")
)

// DB wraps the SQLite connection backing courier.db.
type DB struct {
	*sql.DB
}

// Open creates a new SQLite connection with WAL mode and recommended pragmas.
//
// Transactions are opened with BEGIN IMMEDIATE so that every writer holds the
// database write lock from its first statement: the message insert, the seen
// flips and the unseen counters they touch are serialized as one unit.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{db}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
