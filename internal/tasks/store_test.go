package tasks

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "tasks_test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddAndPending(t *testing.T) {
	s := newTestStore(t)
	for _, title := range []string{"buy milk", "call the plumber"} {
		if _, err := s.Add(title); err != nil {
			t.Fatalf("Add(%q): %v", title, err)
		}
	}
	if _, err := s.Add("   "); err == nil {
		t.Error("Add(blank) succeeded, want error")
	}

	got, err := s.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(Pending()) = %d, want 2", len(got))
	}
	if got[0].Title != "buy milk" {
		t.Errorf("Pending()[0].Title = %q, want %q", got[0].Title, "buy milk")
	}
}

func TestComplete(t *testing.T) {
	s := newTestStore(t)
	task, err := s.Add("water plants")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	ok, err := s.Complete(task.ID)
	if err != nil || !ok {
		t.Fatalf("Complete = %v, %v; want true, nil", ok, err)
	}
	ok, err = s.Complete(task.ID)
	if err != nil || ok {
		t.Errorf("second Complete = %v, %v; want false, nil", ok, err)
	}

	pending, _ := s.Pending()
	if len(pending) != 0 {
		t.Errorf("len(Pending()) = %d after complete, want 0", len(pending))
	}
}

func TestFindByTitle(t *testing.T) {
	s := newTestStore(t)
	for _, title := range []string{"Buy milk", "Call the plumber", "File taxes"} {
		if _, err := s.Add(title); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	tests := []struct {
		query string
		want  string
	}{
		{"plumber", "Call the plumber"},
		{"MILK", "Buy milk"},
		{"fltx", "File taxes"},
		{"zzz", ""},
		{"", ""},
	}
	for _, tt := range tests {
		got, err := s.FindByTitle(tt.query)
		if err != nil {
			t.Fatalf("FindByTitle(%q): %v", tt.query, err)
		}
		switch {
		case tt.want == "" && got != nil:
			t.Errorf("FindByTitle(%q) = %q, want nil", tt.query, got.Title)
		case tt.want != "" && (got == nil || got.Title != tt.want):
			t.Errorf("FindByTitle(%q) = %v, want %q", tt.query, got, tt.want)
		}
	}
}
