// Package database opens the SQLite databases that back every
// persistent store. Stores share one file but each holds its own
// [sql.DB] pool, so every operation runs on a short-lived pooled
// connection and no connection is shared across goroutines.
package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver for database/sql
)

// busyTimeout is how long a writer waits on a locked database before
// failing. The scheduler, processor and API write concurrently.
const busyTimeout = 5 * time.Second

// Open opens (creating if needed) the SQLite database at path and applies
// schema. WAL journaling lets readers proceed while a write is in flight.
func Open(path, schema string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on", path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if schema != "" {
		if _, err := db.Exec(schema); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return db, nil
}

// NewID generates a new UUIDv7.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// timeLayout is fixed-width UTC so stored timestamps sort lexically in
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTime renders t in the canonical storage format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseTime reads a timestamp written by [FormatTime].
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
