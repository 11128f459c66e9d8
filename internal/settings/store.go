// Package settings is a namespaced key-value store for user preferences
// that survive restarts: preferred language, speech rate, the default
// browser. Structured domain data (reminders, tasks, notes) has its own
// store.
package settings

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nugget/chatur/internal/database"
)

// Well-known namespaces and keys.
const (
	NamespaceUser = "user"

	KeyLanguage   = "language"
	KeyDefaultApp = "default_app"
	KeySpeechRate = "speech_rate"
	KeyLocation   = "location"
)

// Store is the SQLite-backed settings store. All methods are safe for
// concurrent use.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS user_settings (
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (namespace, key)
);
`

// NewStore opens the settings store at dbPath.
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

// Get returns the value stored under namespace/key, or "" when unset.
func (s *Store) Get(namespace, key string) (string, error) {
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM user_settings WHERE namespace = ? AND key = ?`,
		namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s/%s: %w", namespace, key, err)
	}
	return value, nil
}

// GetOr returns the stored value, or def when unset or unreadable.
func (s *Store) GetOr(namespace, key, def string) string {
	v, err := s.Get(namespace, key)
	if err != nil || v == "" {
		return def
	}
	return v
}

// GetInt parses the stored value as an integer. Missing or malformed
// values yield def.
func (s *Store) GetInt(namespace, key string, def int) int {
	v, err := s.Get(namespace, key)
	if err != nil || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Set upserts namespace/key. The updated_at timestamp is refreshed.
func (s *Store) Set(namespace, key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO user_settings (namespace, key, value, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (namespace, key) DO UPDATE
		 SET value = excluded.value, updated_at = excluded.updated_at`,
		namespace, key, value, database.FormatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Delete removes namespace/key. Deleting an unset key is not an error.
func (s *Store) Delete(namespace, key string) error {
	if _, err := s.db.Exec(
		`DELETE FROM user_settings WHERE namespace = ? AND key = ?`,
		namespace, key,
	); err != nil {
		return fmt.Errorf("delete %s/%s: %w", namespace, key, err)
	}
	return nil
}

// List returns every key/value pair in namespace. The map is non-nil
// even when the namespace is empty.
func (s *Store) List(namespace string) (map[string]string, error) {
	rows, err := s.db.Query(
		`SELECT key, value FROM user_settings WHERE namespace = ? ORDER BY key`,
		namespace,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", namespace, err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", namespace, err)
		}
		result[k] = v
	}
	return result, rows.Err()
}
