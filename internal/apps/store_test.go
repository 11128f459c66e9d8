package apps

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "apps_test.db")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDefaultsSeeded(t *testing.T) {
	s := newTestStore(t)
	all, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != len(Defaults) {
		t.Errorf("len(List()) = %d, want %d", len(all), len(Defaults))
	}
}

func TestLookup(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name string
		want string
	}{
		{"chrome", "chrome"},
		{"Chrome", "chrome"},
		{"calc", "calculator"},
		{"mail", "gmail"},
		{"nonexistent", ""},
		{"", ""},
	}
	for _, tt := range tests {
		got, err := s.Lookup(tt.name)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", tt.name, err)
		}
		switch {
		case tt.want == "" && got != nil:
			t.Errorf("Lookup(%q) = %q, want nil", tt.name, got.Name)
		case tt.want != "" && (got == nil || got.Name != tt.want):
			t.Errorf("Lookup(%q) = %v, want %q", tt.name, got, tt.want)
		}
	}
}

func TestPutReplacesAndReopenKeepsEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apps_test.db")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.Put(App{Name: "chrome", DisplayName: "Chromium", Command: "chromium", Type: TypeExec, Process: "chromium"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	s.Close()

	s, err = NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	got, err := s.Lookup("chrome")
	if err != nil || got == nil {
		t.Fatalf("Lookup: %v, %v", got, err)
	}
	if got.Command != "chromium" {
		t.Errorf("Command = %q, want chromium (seed must not overwrite edits)", got.Command)
	}
}
