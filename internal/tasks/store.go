// Package tasks keeps the user's to-do list.
package tasks

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/nugget/chatur/internal/database"
)

// Task is one to-do item.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Done        bool       `json:"done"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Store is the SQLite-backed task list.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	done         INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL,
	completed_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_tasks_done ON tasks(done, created_at);
`

// NewStore opens the task store at dbPath.
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

// Add creates a pending task.
func (s *Store) Add(title string) (*Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("task title is empty")
	}
	t := &Task{ID: database.NewID(), Title: title, CreatedAt: time.Now().UTC()}
	if _, err := s.db.Exec(
		`INSERT INTO tasks (id, title, done, created_at) VALUES (?, ?, 0, ?)`,
		t.ID, t.Title, database.FormatTime(t.CreatedAt),
	); err != nil {
		return nil, fmt.Errorf("add task: %w", err)
	}
	return t, nil
}

// Pending returns incomplete tasks, oldest first.
func (s *Store) Pending() ([]*Task, error) {
	rows, err := s.db.Query(
		`SELECT id, title, done, created_at, completed_at FROM tasks WHERE done = 0 ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Complete marks the task done. It reports false when the task does not
// exist or was already complete.
func (s *Store) Complete(id string) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE tasks SET done = 1, completed_at = ? WHERE id = ? AND done = 0`,
		database.FormatTime(time.Now()), id,
	)
	if err != nil {
		return false, fmt.Errorf("complete task %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// taskTitles adapts a task slice to fuzzy.Source.
type taskTitles []*Task

func (t taskTitles) String(i int) string { return strings.ToLower(t[i].Title) }
func (t taskTitles) Len() int            { return len(t) }

// FindByTitle returns the pending task that best matches query, or nil.
// A case-insensitive substring match wins outright; otherwise the
// highest-scoring fuzzy match is used.
func (s *Store) FindByTitle(query string) (*Task, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, nil
	}
	pending, err := s.Pending()
	if err != nil {
		return nil, err
	}
	for _, t := range pending {
		if strings.Contains(strings.ToLower(t.Title), query) {
			return t, nil
		}
	}
	matches := fuzzy.FindFrom(query, taskTitles(pending))
	if len(matches) == 0 {
		return nil, nil
	}
	return pending[matches[0].Index], nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*Task, error) {
	var (
		t         Task
		done      int
		created   string
		completed sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Title, &done, &created, &completed); err != nil {
		return nil, err
	}
	t.Done = done != 0
	var err error
	if t.CreatedAt, err = database.ParseTime(created); err != nil {
		return nil, err
	}
	if completed.Valid {
		ct, err := database.ParseTime(completed.String)
		if err != nil {
			return nil, err
		}
		t.CompletedAt = &ct
	}
	return &t, nil
}
