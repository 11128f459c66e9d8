package handlers

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nugget/chatur/internal/intent"
	"github.com/nugget/chatur/internal/notes"
	"github.com/nugget/chatur/internal/qa"
	"github.com/nugget/chatur/internal/reminder"
)

type fakeReminderStore struct {
	text string
	at   time.Time
	lang string
	err  error
}

func (f *fakeReminderStore) Add(text string, at time.Time, language string) (*reminder.Reminder, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.text, f.at, f.lang = text, at, language
	return &reminder.Reminder{ID: "r1", Text: text, ScheduledTime: at, Language: language}, nil
}

func TestReminders_Handle(t *testing.T) {
	store := &fakeReminderStore{}
	h := NewReminders(store, nil)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	got, err := h.Handle(context.Background(), newIntent(intent.Reminder, "en", map[string]string{
		intent.ParamText: "call mom",
		intent.ParamTime: "5 pm",
	}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if want := "Reminder set: call mom at 05:00 PM on May 01"; got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
	if want := time.Date(2026, 5, 1, 17, 0, 0, 0, time.UTC); !store.at.Equal(want) {
		t.Errorf("stored at %v, want %v", store.at, want)
	}
	if store.lang != "en" {
		t.Errorf("stored language = %q, want en", store.lang)
	}
}

func TestReminders_Hindi(t *testing.T) {
	h := NewReminders(&fakeReminderStore{}, nil)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	got, err := h.Handle(context.Background(), newIntent(intent.Reminder, "hi", map[string]string{
		intent.ParamText: "दवाई",
		intent.ParamTime: "in 30 minutes",
	}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if want := "रिमाइंडर सेट कर दिया गया है: दवाई - 10:30 AM"; got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
}

func TestReminders_StoreFailure(t *testing.T) {
	h := NewReminders(&fakeReminderStore{err: errors.New("disk full")}, nil)
	_, err := h.Handle(context.Background(), newIntent(intent.Reminder, "en", map[string]string{
		intent.ParamText: "stretch",
	}))
	if err == nil {
		t.Fatal("Handle succeeded, want error")
	}
	if got := Describe(err, "en"); got != "Sorry, I couldn't set that reminder" {
		t.Errorf("Describe = %q", got)
	}
}

func TestTimers_FiresAndSpeaks(t *testing.T) {
	speaker := &recordingSpeaker{}
	notifier := &recordingNotifier{}
	h := NewTimers(notifier, speaker, nil)

	got, err := h.Handle(context.Background(), newIntent(intent.Timer, "en", map[string]string{
		intent.ParamDuration: "1 seconds",
		intent.ParamLabel:    "Tea",
	}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got != "Timer started for 1 second" {
		t.Errorf("reply = %q", got)
	}
	if h.Active() != 1 {
		t.Errorf("Active() = %d, want 1", h.Active())
	}

	h.Wait()
	if said := speaker.said(); len(said) != 1 || said[0] != "Tea finished" {
		t.Errorf("spoken = %q", said)
	}
	if len(notifier.titles) != 1 || notifier.titles[0] != "Timer Complete" || notifier.bodies[0] != "Tea" {
		t.Errorf("notified = %q / %q", notifier.titles, notifier.bodies)
	}
	if h.Active() != 0 {
		t.Errorf("Active() after fire = %d, want 0", h.Active())
	}
}

func TestTimers_Replies(t *testing.T) {
	tests := []struct {
		lang, duration, want string
	}{
		{"en", "5 minutes", "Timer started for 5 minutes"},
		{"en", "1 hours", "Timer started for 60 minutes"},
		{"en", "45 seconds", "Timer started for 45 seconds"},
		{"hi", "2 minutes", "टाइमर शुरू हो गया है: 2 मिनट"},
		{"hi", "30 seconds", "टाइमर शुरू हो गया है: 30 सेकंड"},
	}
	h := NewTimers(nil, nil, nil)
	t.Cleanup(h.Stop)
	for _, tt := range tests {
		got, err := h.Handle(context.Background(), newIntent(intent.Timer, tt.lang, map[string]string{
			intent.ParamDuration: tt.duration,
		}))
		if err != nil {
			t.Fatalf("Handle(%q): %v", tt.duration, err)
		}
		if got != tt.want {
			t.Errorf("Handle(%q) = %q, want %q", tt.duration, got, tt.want)
		}
	}
}

func TestTimers_Stop(t *testing.T) {
	speaker := &recordingSpeaker{}
	h := NewTimers(nil, speaker, nil)
	for range 3 {
		if _, err := h.Handle(context.Background(), newIntent(intent.Timer, "en", map[string]string{
			intent.ParamDuration: "10 minutes",
		})); err != nil {
			t.Fatalf("Handle: %v", err)
		}
	}
	h.Stop()
	h.Wait()
	if h.Active() != 0 {
		t.Errorf("Active() after Stop = %d, want 0", h.Active())
	}
	if said := speaker.said(); len(said) != 0 {
		t.Errorf("stopped timers spoke %q", said)
	}
}

func newNoteStore(t *testing.T) *notes.Store {
	t.Helper()
	s, err := notes.NewStore(filepath.Join(t.TempDir(), "notes_test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNotes_RoundTrip(t *testing.T) {
	h := NewNotes(newNoteStore(t))
	ctx := context.Background()
	value := "Remember that my locker code is 4-8-15, OK?"

	got, err := h.Handle(ctx, newIntent(intent.Note, "en", map[string]string{
		intent.ParamAction: "store",
		intent.ParamKey:    "note",
		intent.ParamValue:  value,
	}))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if got != "Got it, I'll remember that note" {
		t.Errorf("store reply = %q", got)
	}

	got, err = h.Handle(ctx, newIntent(intent.Note, "en", map[string]string{
		intent.ParamAction: "retrieve",
		intent.ParamKey:    "note",
	}))
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if got != value {
		t.Errorf("retrieve = %q, want %q", got, value)
	}
}

func TestNotes_Missing(t *testing.T) {
	h := NewNotes(newNoteStore(t))
	got, err := h.Handle(context.Background(), newIntent(intent.Note, "hi", map[string]string{
		intent.ParamAction: "retrieve",
		intent.ParamKey:    "wifi",
	}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got != "मुझे wifi याद नहीं है" {
		t.Errorf("reply = %q", got)
	}
}

func TestNotes_NoAction(t *testing.T) {
	h := NewNotes(newNoteStore(t))
	got, _ := h.Handle(context.Background(), newIntent(intent.Note, "en", nil))
	if got != "Please tell me what to remember or what you want to know" {
		t.Errorf("reply = %q", got)
	}
}

type fakeAnswerer struct {
	answer string
	err    error
	asked  string
}

func (f *fakeAnswerer) Answer(_ context.Context, question, _ string) (string, error) {
	f.asked = question
	return f.answer, f.err
}

func TestQuestions_Handle(t *testing.T) {
	a := &fakeAnswerer{answer: "Paris."}
	h := NewQuestions(a)
	got, err := h.Handle(context.Background(), newIntent(intent.Question, "en", map[string]string{
		intent.ParamQuestion: "What is the capital of France?",
	}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got != "Paris." {
		t.Errorf("reply = %q", got)
	}
	if a.asked != "What is the capital of France?" {
		t.Errorf("asked = %q", a.asked)
	}
}

func TestQuestions_Failures(t *testing.T) {
	q := newIntent(intent.Question, "en", map[string]string{intent.ParamQuestion: "why?"})
	tests := []struct {
		name     string
		answerer Answerer
		kind     error
		want     string
	}{
		{"no answerer", nil, ErrUnavailable, "Sorry, question answering is not available"},
		{"no backend", &fakeAnswerer{err: qa.ErrNoBackend}, ErrUnavailable, "Sorry, question answering is not available"},
		{"retries exhausted", &fakeAnswerer{err: errors.New("503")}, ErrTransient,
			"Sorry, I'm having trouble answering that right now. Please try again later."},
		{"empty answer", &fakeAnswerer{}, ErrTransient,
			"Sorry, I'm having trouble answering that right now. Please try again later."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewQuestions(tt.answerer)
			_, err := h.Handle(context.Background(), q)
			if !errors.Is(err, tt.kind) {
				t.Fatalf("err = %v, want %v", err, tt.kind)
			}
			if got := Describe(err, "en"); got != tt.want {
				t.Errorf("Describe = %q, want %q", got, tt.want)
			}
		})
	}
}
