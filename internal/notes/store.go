// Package notes keeps short free-form values under user-chosen keys.
package notes

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nugget/chatur/internal/database"
)

// Note is one stored value.
type Note struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the SQLite-backed note repository. Values are stored and
// returned byte-for-byte.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS notes (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// NewStore opens the note store at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := database.Open(dbPath, schema)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(key, value string) error {
	now := database.FormatTime(time.Now())
	_, err := s.db.Exec(`
		INSERT INTO notes (key, value, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, now, now)
	if err != nil {
		return fmt.Errorf("put note %q: %w", key, err)
	}
	return nil
}

// Get returns the value under key and whether it exists.
func (s *Store) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM notes WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get note %q: %w", key, err)
	}
	return value, true, nil
}

// List returns every note, most recently updated first.
func (s *Store) List() ([]Note, error) {
	rows, err := s.db.Query(`SELECT key, value, updated_at FROM notes ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var out []Note
	for rows.Next() {
		var (
			n  Note
			ts string
		)
		if err := rows.Scan(&n.Key, &n.Value, &ts); err != nil {
			return nil, err
		}
		if n.UpdatedAt, err = database.ParseTime(ts); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Delete removes a note. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM notes WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete note %q: %w", key, err)
	}
	return nil
}
