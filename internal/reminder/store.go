// Package reminder persists reminders and fires them when they come due.
package reminder

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nugget/chatur/internal/database"
)

// Reminder is one scheduled spoken notice. Triggered flips from false to
// true exactly once, when the scheduler fires it; rows are kept afterward
// as history.
type Reminder struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	ScheduledTime time.Time `json:"scheduled_time"`
	Language      string    `json:"language"`
	Triggered     bool      `json:"triggered"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store is the SQLite-backed reminder repository.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS reminders (
	id             TEXT PRIMARY KEY,
	text           TEXT NOT NULL,
	scheduled_time TEXT NOT NULL,
	language       TEXT NOT NULL DEFAULT 'en',
	triggered      INTEGER NOT NULL DEFAULT 0,
	created_at     TEXT NOT NULL,
	UNIQUE (text, scheduled_time)
);
CREATE INDEX IF NOT EXISTS idx_reminders_pending ON reminders(triggered, scheduled_time);
`

// NewStore opens the reminder store at dbPath.
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

// Add stores a new reminder. Adding the same text at the same time twice
// returns the existing reminder rather than a duplicate.
func (s *Store) Add(text string, at time.Time, language string) (*Reminder, error) {
	if language == "" {
		language = "en"
	}
	r := &Reminder{
		ID:            database.NewID(),
		Text:          text,
		ScheduledTime: at.UTC(),
		Language:      language,
		CreatedAt:     time.Now().UTC(),
	}
	_, err := s.db.Exec(`
		INSERT INTO reminders (id, text, scheduled_time, language, triggered, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
		ON CONFLICT (text, scheduled_time) DO NOTHING
	`, r.ID, r.Text, database.FormatTime(r.ScheduledTime), r.Language, database.FormatTime(r.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert reminder: %w", err)
	}

	row := s.db.QueryRow(`
		SELECT id, text, scheduled_time, language, triggered, created_at
		FROM reminders WHERE text = ? AND scheduled_time = ?
	`, r.Text, database.FormatTime(r.ScheduledTime))
	return scanReminder(row)
}

// Get returns the reminder with the given ID, or nil if none exists.
func (s *Store) Get(id string) (*Reminder, error) {
	row := s.db.QueryRow(`
		SELECT id, text, scheduled_time, language, triggered, created_at
		FROM reminders WHERE id = ?
	`, id)
	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// Pending returns every untriggered reminder, earliest first.
func (s *Store) Pending() ([]*Reminder, error) {
	return s.query(`
		SELECT id, text, scheduled_time, language, triggered, created_at
		FROM reminders WHERE triggered = 0
		ORDER BY scheduled_time ASC
	`)
}

// List returns the most recent reminders, triggered or not, newest
// scheduled time first.
func (s *Store) List(limit int) ([]*Reminder, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.query(`
		SELECT id, text, scheduled_time, language, triggered, created_at
		FROM reminders ORDER BY scheduled_time DESC LIMIT ?
	`, limit)
}

// MarkTriggered flips a reminder to triggered. It reports whether this
// call made the change; false means the reminder was already triggered
// or does not exist. Callers fire a reminder only on true, which keeps
// firing at-most-once even if two passes overlap.
func (s *Store) MarkTriggered(id string) (bool, error) {
	res, err := s.db.Exec(`UPDATE reminders SET triggered = 1 WHERE id = ? AND triggered = 0`, id)
	if err != nil {
		return false, fmt.Errorf("mark reminder %s triggered: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark reminder %s triggered: %w", id, err)
	}
	return n == 1, nil
}

func (s *Store) query(q string, args ...any) ([]*Reminder, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer rows.Close()

	var out []*Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReminder(row scanner) (*Reminder, error) {
	var (
		r                  Reminder
		scheduled, created string
		triggered          int
	)
	if err := row.Scan(&r.ID, &r.Text, &scheduled, &r.Language, &triggered, &created); err != nil {
		return nil, err
	}
	var err error
	if r.ScheduledTime, err = database.ParseTime(scheduled); err != nil {
		return nil, err
	}
	if r.CreatedAt, err = database.ParseTime(created); err != nil {
		return nil, err
	}
	r.Triggered = triggered != 0
	return &r, nil
}
