// Package conversation stores the append-only history of user requests
// and assistant replies. The question-answering handler reads the most
// recent exchanges as short-term context; the API exposes them read-only.
package conversation

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nugget/chatur/internal/database"
)

// DefaultRetention is how long exchanges are kept before Purge removes
// them.
const DefaultRetention = 30 * 24 * time.Hour

// Exchange is one request/response pair. It is never modified after
// Append.
type Exchange struct {
	ID                string    `json:"id"`
	UserInput         string    `json:"user_input"`
	AssistantResponse string    `json:"assistant_response"`
	IntentKind        string    `json:"intent_kind,omitempty"`
	SessionID         string    `json:"session_id,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// Store is the SQLite-backed exchange log.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS conversation_history (
	id                 TEXT PRIMARY KEY,
	user_input         TEXT NOT NULL,
	assistant_response TEXT NOT NULL,
	intent_kind        TEXT,
	session_id         TEXT,
	timestamp          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversation_timestamp ON conversation_history(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_conversation_session ON conversation_history(session_id);
`

// NewStore opens the history store at dbPath.
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

// Append records an exchange, filling in ID and Timestamp when unset.
func (s *Store) Append(ex *Exchange) error {
	if ex.ID == "" {
		ex.ID = database.NewID()
	}
	if ex.Timestamp.IsZero() {
		ex.Timestamp = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO conversation_history (id, user_input, assistant_response, intent_kind, session_id, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ex.ID, ex.UserInput, ex.AssistantResponse, nullable(ex.IntentKind), nullable(ex.SessionID),
		database.FormatTime(ex.Timestamp))
	if err != nil {
		return fmt.Errorf("append exchange: %w", err)
	}
	return nil
}

// Recent returns up to limit of the newest exchanges, oldest first, so
// the result reads as a transcript. An empty sessionID spans all
// sessions.
func (s *Store) Recent(limit int, sessionID string) ([]Exchange, error) {
	if limit <= 0 {
		limit = 10
	}
	q := `SELECT id, user_input, assistant_response, intent_kind, session_id, timestamp FROM conversation_history`
	args := []any{}
	if sessionID != "" {
		q += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	q += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var (
			ex           Exchange
			kind, sessID sql.NullString
			ts           string
		)
		if err := rows.Scan(&ex.ID, &ex.UserInput, &ex.AssistantResponse, &kind, &sessID, &ts); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		ex.IntentKind = kind.String
		ex.SessionID = sessID.String
		if ex.Timestamp, err = database.ParseTime(ts); err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Purge deletes exchanges older than olderThan and returns how many were
// removed.
func (s *Store) Purge(olderThan time.Duration) (int64, error) {
	cutoff := database.FormatTime(time.Now().Add(-olderThan))
	res, err := s.db.Exec(`DELETE FROM conversation_history WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge history: %w", err)
	}
	return res.RowsAffected()
}

// FormatContext renders exchanges as the short transcript handed to the
// language model.
func FormatContext(exchanges []Exchange) string {
	if len(exchanges) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Recent conversation:")
	for _, ex := range exchanges {
		b.WriteString("\nUser: ")
		b.WriteString(ex.UserInput)
		b.WriteString("\nAssistant: ")
		b.WriteString(ex.AssistantResponse)
	}
	return b.String()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
