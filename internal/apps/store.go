// Package apps is the registry of applications the assistant can open
// and close by name.
package apps

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/nugget/chatur/internal/database"
)

// Type distinguishes launch mechanisms.
type Type string

const (
	// TypeExec apps are started by running Command.
	TypeExec Type = "exec"
	// TypeURL apps are web apps opened in the browser at Command.
	TypeURL Type = "url"
)

// App is one launchable application.
type App struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Command     string   `json:"command"`
	Type        Type     `json:"type"`
	// Process is the executable name matched when closing the app.
	Process string   `json:"process,omitempty"`
	Aliases []string `json:"aliases,omitempty"`
}

// Defaults are seeded on first open. Existing rows are left alone so
// user edits survive restarts.
var Defaults = []App{
	{Name: "brave", DisplayName: "Brave Browser", Command: "brave-browser", Type: TypeExec, Process: "brave", Aliases: []string{"browser", "brave"}},
	{Name: "chrome", DisplayName: "Google Chrome", Command: "google-chrome", Type: TypeExec, Process: "chrome", Aliases: []string{"google"}},
	{Name: "firefox", DisplayName: "Mozilla Firefox", Command: "firefox", Type: TypeExec, Process: "firefox", Aliases: []string{"mozilla"}},
	{Name: "edge", DisplayName: "Microsoft Edge", Command: "microsoft-edge", Type: TypeExec, Process: "msedge", Aliases: []string{"microsoft"}},
	{Name: "gmail", DisplayName: "Gmail", Command: "https://mail.google.com", Type: TypeURL, Aliases: []string{"email", "mail"}},
	{Name: "calculator", DisplayName: "Calculator", Command: "gnome-calculator", Type: TypeExec, Process: "gnome-calculator", Aliases: []string{"calc"}},
	{Name: "notepad", DisplayName: "Text Editor", Command: "gnome-text-editor", Type: TypeExec, Process: "gnome-text-editor", Aliases: []string{"text", "editor"}},
	{Name: "explorer", DisplayName: "Files", Command: "nautilus", Type: TypeExec, Process: "nautilus", Aliases: []string{"files", "folder"}},
	{Name: "whatsapp", DisplayName: "WhatsApp", Command: "https://web.whatsapp.com", Type: TypeURL, Aliases: []string{"chat", "messaging"}},
	{Name: "spotify", DisplayName: "Spotify", Command: "spotify", Type: TypeExec, Process: "spotify", Aliases: []string{"music", "audio"}},
}

// Store is the SQLite-backed app registry.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS apps (
	name         TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	command      TEXT NOT NULL,
	app_type     TEXT NOT NULL,
	process      TEXT NOT NULL DEFAULT '',
	aliases      TEXT NOT NULL DEFAULT ''
);
`

// NewStore opens the registry at dbPath and seeds [Defaults].
func NewStore(dbPath string) (*Store, error) {
	db, err := database.Open(dbPath, schema)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	for _, a := range Defaults {
		if err := s.insert(a, false); err != nil {
			db.Close()
			return nil, fmt.Errorf("seed apps: %w", err)
		}
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put adds or replaces an app.
func (s *Store) Put(a App) error {
	return s.insert(a, true)
}

func (s *Store) insert(a App, replace bool) error {
	verb := "INSERT OR IGNORE"
	if replace {
		verb = "INSERT OR REPLACE"
	}
	_, err := s.db.Exec(verb+` INTO apps (name, display_name, command, app_type, process, aliases)
		VALUES (?, ?, ?, ?, ?, ?)`,
		strings.ToLower(a.Name), a.DisplayName, a.Command, string(a.Type), a.Process, strings.Join(a.Aliases, ","))
	if err != nil {
		return fmt.Errorf("store app %q: %w", a.Name, err)
	}
	return nil
}

// Lookup resolves name against app names first, then aliases. It returns
// nil when nothing matches.
func (s *Store) Lookup(name string) (*App, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, nil
	}
	row := s.db.QueryRow(`SELECT name, display_name, command, app_type, process, aliases FROM apps WHERE name = ?`, name)
	a, err := scanApp(row)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	all, err := s.List()
	if err != nil {
		return nil, err
	}
	for i := range all {
		for _, alias := range all[i].Aliases {
			if alias == name {
				return &all[i], nil
			}
		}
	}
	return nil, nil
}

// List returns every registered app ordered by display name.
func (s *Store) List() ([]App, error) {
	rows, err := s.db.Query(`SELECT name, display_name, command, app_type, process, aliases FROM apps ORDER BY display_name`)
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	defer rows.Close()

	var out []App
	for rows.Next() {
		a, err := scanApp(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanApp(row scanner) (*App, error) {
	var (
		a             App
		typ, aliasCSV string
	)
	if err := row.Scan(&a.Name, &a.DisplayName, &a.Command, &typ, &a.Process, &aliasCSV); err != nil {
		return nil, err
	}
	a.Type = Type(typ)
	if aliasCSV != "" {
		a.Aliases = strings.Split(aliasCSV, ",")
	}
	return &a, nil
}
