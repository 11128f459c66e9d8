package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nugget/chatur/internal/intent"
)

func newIntent(kind intent.Kind, lang string, params map[string]string) intent.Intent {
	return intent.New(kind, lang, params, 1)
}

type recordingSpeaker struct {
	mu    sync.Mutex
	spoke []string
}

func (r *recordingSpeaker) Speak(_ context.Context, text, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spoke = append(r.spoke, text)
	return nil
}

func (r *recordingSpeaker) said() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.spoke...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	titles []string
	bodies []string
}

func (r *recordingNotifier) Notify(title, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, title)
	r.bodies = append(r.bodies, body)
}

// fakeSystem records every OS call the handlers make.
type fakeSystem struct {
	mu      sync.Mutex
	started [][]string
	opened  []string
	killed  []string
	ran     [][]string

	killResult bool
	err        error
}

func (f *fakeSystem) Start(name string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, append([]string{name}, args...))
	return f.err
}

func (f *fakeSystem) Open(target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, target)
	return f.err
}

func (f *fakeSystem) Kill(_ context.Context, process string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, process)
	return f.killResult, f.err
}

func (f *fakeSystem) Run(_ context.Context, name string, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ran = append(f.ran, append([]string{name}, args...))
	return "", f.err
}

type stubHandler struct{ handles }

func (stubHandler) Handle(context.Context, intent.Intent) (string, error) { return "ok", nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(intent.Timer, stubHandler{handles(intent.Timer)})
	r.Register(intent.Note, stubHandler{handles(intent.Note)})

	h, ok := r.Lookup(intent.Timer)
	if !ok {
		t.Fatal("Lookup(timer) not found")
	}
	if !h.CanHandle(newIntent(intent.Timer, "en", nil)) {
		t.Error("timer handler rejects timer intent")
	}
	if h.CanHandle(newIntent(intent.Note, "en", nil)) {
		t.Error("timer handler accepts note intent")
	}
	if _, ok := r.Lookup(intent.Weather); ok {
		t.Error("Lookup(weather) found a handler, want none")
	}

	kinds := r.Kinds()
	if len(kinds) != 2 || kinds[0] != intent.Note || kinds[1] != intent.Timer {
		t.Errorf("Kinds() = %v, want [note timer]", kinds)
	}

	r.Register(intent.Note, nil)
	if _, ok := r.Lookup(intent.Note); ok {
		t.Error("Register(nil) did not remove binding")
	}
}

func TestDescribe(t *testing.T) {
	cause := errors.New("connection refused")
	tests := []struct {
		name string
		err  error
		lang string
		want string
	}{
		{"nil", nil, "en", ""},
		{"plain error", cause, "en", "Sorry, something went wrong"},
		{"plain error hindi", cause, "hi", "माफ़ करें, कुछ गड़बड़ हो गई।"},
		{"not found", fail(ErrNotFound, "zoom", nil), "en", "I couldn't find zoom"},
		{"not found hindi", fail(ErrNotFound, "zoom", nil), "hi", "zoom नहीं मिला"},
		{"unavailable", fail(ErrUnavailable, "email", nil), "en", "Sorry, email is not available"},
		{"transient", fail(ErrTransient, "getting the weather", cause), "en",
			"Sorry, I'm having trouble getting the weather right now. Please try again later."},
		{"generic action", fail(nil, "open Firefox", cause), "en", "Sorry, I couldn't open Firefox"},
		{"invalid input", fail(ErrInvalidInput, "calculate that", cause), "en", "Sorry, I couldn't calculate that"},
		{"wrapped", fmt.Errorf("handler: %w", fail(ErrNotFound, "report.pdf", nil)), "en", "I couldn't find report.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Describe(tt.err, tt.lang); got != tt.want {
				t.Errorf("Describe() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFailure_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := fail(ErrTransient, "checking your email", cause)
	if !errors.Is(err, ErrTransient) {
		t.Error("errors.Is(err, ErrTransient) = false")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("errors.Is(err, ErrNotFound) = true")
	}
}

func TestKindName(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{errors.New("x"), "internal"},
		{fail(ErrUnavailable, "x", nil), "unavailable"},
		{fail(ErrTransient, "x", nil), "transient"},
		{fail(ErrNotFound, "x", nil), "not_found"},
		{fail(ErrInvalidInput, "x", nil), "invalid_input"},
		{fail(ErrUnsupported, "x", nil), "unsupported"},
		{fail(nil, "x", errors.New("y")), "internal"},
	}
	for _, tt := range tests {
		if got := KindName(tt.err); got != tt.want {
			t.Errorf("KindName(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestUnknownReply(t *testing.T) {
	if got := UnknownReply("en"); got != "I didn't understand that. Could you please repeat?" {
		t.Errorf("UnknownReply(en) = %q", got)
	}
	if got := UnknownReply("hi"); got != "मुझे समझ नहीं आया। कृपया दोबारा कहें।" {
		t.Errorf("UnknownReply(hi) = %q", got)
	}
	if got := UnknownReply(""); got != UnknownReply("en") {
		t.Errorf("UnknownReply(\"\") = %q, want English", got)
	}
}
