package conversation

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "history_test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecent_OldestFirst(t *testing.T) {
	s := newTestStore(t)
	base := time.Now().Add(-time.Hour)
	for i := range 7 {
		ex := &Exchange{
			UserInput:         fmt.Sprintf("q%d", i),
			AssistantResponse: fmt.Sprintf("a%d", i),
			IntentKind:        "question",
			Timestamp:         base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.Append(ex); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := s.Recent(5, "")
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("len(Recent(5)) = %d, want 5", len(got))
	}
	if got[0].UserInput != "q2" || got[4].UserInput != "q6" {
		t.Errorf("Recent order = %q..%q, want q2..q6", got[0].UserInput, got[4].UserInput)
	}
}

func TestRecent_SessionFilter(t *testing.T) {
	s := newTestStore(t)
	for _, sess := range []string{"a", "b", "a", ""} {
		if err := s.Append(&Exchange{UserInput: "hi", AssistantResponse: "hello", SessionID: sess}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := s.Recent(10, "a")
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len(Recent(session a)) = %d, want 2", len(got))
	}
	for _, ex := range got {
		if ex.SessionID != "a" {
			t.Errorf("SessionID = %q, want a", ex.SessionID)
		}
	}
}

func TestAppend_NullableFields(t *testing.T) {
	s := newTestStore(t)
	if err := s.Append(&Exchange{UserInput: "x", AssistantResponse: "y"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, err := s.Recent(1, "")
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if got[0].IntentKind != "" || got[0].SessionID != "" {
		t.Errorf("IntentKind/SessionID = %q/%q, want empty", got[0].IntentKind, got[0].SessionID)
	}
}

func TestPurge(t *testing.T) {
	s := newTestStore(t)
	old := &Exchange{UserInput: "old", AssistantResponse: "x", Timestamp: time.Now().Add(-40 * 24 * time.Hour)}
	fresh := &Exchange{UserInput: "fresh", AssistantResponse: "y"}
	for _, ex := range []*Exchange{old, fresh} {
		if err := s.Append(ex); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	n, err := s.Purge(DefaultRetention)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n != 1 {
		t.Errorf("Purge removed %d, want 1", n)
	}
	got, _ := s.Recent(10, "")
	if len(got) != 1 || got[0].UserInput != "fresh" {
		t.Errorf("remaining = %+v, want only fresh", got)
	}
}

func TestFormatContext(t *testing.T) {
	if got := FormatContext(nil); got != "" {
		t.Errorf("FormatContext(nil) = %q, want empty", got)
	}
	got := FormatContext([]Exchange{
		{UserInput: "what's 2+2", AssistantResponse: "4"},
		{UserInput: "and times 3", AssistantResponse: "12"},
	})
	want := "Recent conversation:\nUser: what's 2+2\nAssistant: 4\nUser: and times 3\nAssistant: 12"
	if got != want {
		t.Errorf("FormatContext =\n%s\nwant\n%s", got, want)
	}
}
