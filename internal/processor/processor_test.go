package processor

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nugget/chatur/internal/conversation"
	"github.com/nugget/chatur/internal/events"
	"github.com/nugget/chatur/internal/handlers"
	"github.com/nugget/chatur/internal/intent"
	"github.com/nugget/chatur/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type classifyFunc func(string) intent.Intent

func (f classifyFunc) Classify(text string) intent.Intent { return f(text) }

func always(kind intent.Kind, lang string) classifyFunc {
	return func(string) intent.Intent { return intent.New(kind, lang, nil, 1) }
}

type recordingSpeaker struct {
	mu    sync.Mutex
	texts []string
	langs []string
}

func (r *recordingSpeaker) Speak(_ context.Context, text, lang string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	r.langs = append(r.langs, lang)
	return nil
}

type recordingHistory struct {
	exchanges []*conversation.Exchange
	err       error
}

func (r *recordingHistory) Append(ex *conversation.Exchange) error {
	r.exchanges = append(r.exchanges, ex)
	return r.err
}

type stubHandler struct {
	kind   intent.Kind
	reply  string
	err    error
	panics bool
	calls  int
}

func (s *stubHandler) CanHandle(in intent.Intent) bool { return in.Kind() == s.kind }

func (s *stubHandler) Handle(context.Context, intent.Intent) (string, error) {
	s.calls++
	if s.panics {
		panic("handler exploded")
	}
	return s.reply, s.err
}

type harness struct {
	proc    *Processor
	reg     *handlers.Registry
	speaker *recordingSpeaker
	history *recordingHistory
}

func newHarness(t *testing.T, c Classifier) *harness {
	t.Helper()
	h := &harness{
		reg:     handlers.NewRegistry(),
		speaker: &recordingSpeaker{},
		history: &recordingHistory{},
	}
	h.proc = New(Config{
		Classifier: c,
		Registry:   h.reg,
		History:    h.history,
		Speaker:    h.speaker,
		SessionID:  "session-1",
	})
	return h
}

// assertOnce checks the one-append, one-speak contract.
func (h *harness) assertOnce(t *testing.T, want string) {
	t.Helper()
	if len(h.history.exchanges) != 1 {
		t.Fatalf("history appends = %d, want 1", len(h.history.exchanges))
	}
	if got := h.history.exchanges[0].AssistantResponse; got != want {
		t.Errorf("recorded response = %q, want %q", got, want)
	}
	if len(h.speaker.texts) != 1 {
		t.Fatalf("speak calls = %d, want 1", len(h.speaker.texts))
	}
	if got := h.speaker.texts[0]; got != want {
		t.Errorf("spoken = %q, want %q", got, want)
	}
}

func TestProcess_Success(t *testing.T) {
	h := newHarness(t, always(intent.Timer, "en"))
	stub := &stubHandler{kind: intent.Timer, reply: "Timer started for 5 minutes"}
	h.reg.Register(intent.Timer, stub)

	got := h.proc.Process(context.Background(), "set a timer for 5 minutes")
	if got != "Timer started for 5 minutes" {
		t.Errorf("Process = %q", got)
	}
	h.assertOnce(t, got)

	ex := h.history.exchanges[0]
	if ex.UserInput != "set a timer for 5 minutes" {
		t.Errorf("UserInput = %q", ex.UserInput)
	}
	if ex.IntentKind != "timer" {
		t.Errorf("IntentKind = %q, want %q", ex.IntentKind, "timer")
	}
	if ex.SessionID != "session-1" {
		t.Errorf("SessionID = %q, want %q", ex.SessionID, "session-1")
	}
}

func TestProcess_NoHandler(t *testing.T) {
	tests := []struct {
		name string
		lang string
		want string
	}{
		{"english", "en", "I didn't understand that. Could you please repeat?"},
		{"hindi", "hi", "मुझे समझ नहीं आया। कृपया दोबारा कहें।"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, always(intent.Unknown, tt.lang))
			got := h.proc.Process(context.Background(), "blorp")
			if got != tt.want {
				t.Errorf("Process = %q, want %q", got, tt.want)
			}
			h.assertOnce(t, tt.want)
			if h.speaker.langs[0] != tt.lang {
				t.Errorf("spoken language = %q, want %q", h.speaker.langs[0], tt.lang)
			}
		})
	}
}

func TestProcess_HandlerRejects(t *testing.T) {
	h := newHarness(t, always(intent.Note, "en"))
	stub := &stubHandler{kind: intent.Task, reply: "should not run"}
	h.reg.Register(intent.Note, stub)

	got := h.proc.Process(context.Background(), "remember this")
	if got != handlers.UnknownReply("en") {
		t.Errorf("Process = %q", got)
	}
	if stub.calls != 0 {
		t.Errorf("handler calls = %d, want 0", stub.calls)
	}
	h.assertOnce(t, got)
}

func TestProcess_HandlerError(t *testing.T) {
	h := newHarness(t, always(intent.Question, "en"))
	h.reg.Register(intent.Question, &stubHandler{kind: intent.Question, err: errors.New("boom")})

	res := h.proc.Run(context.Background(), "why is the sky blue")
	if res.Response != "Sorry, something went wrong" {
		t.Errorf("Response = %q", res.Response)
	}
	if res.Err == nil {
		t.Error("Err = nil, want handler error")
	}
	h.assertOnce(t, res.Response)
}

func TestProcess_HandlerPanic(t *testing.T) {
	h := newHarness(t, always(intent.Math, "en"))
	h.reg.Register(intent.Math, &stubHandler{kind: intent.Math, panics: true})

	got := h.proc.Process(context.Background(), "2 plus 2")
	if got != apologyEN {
		t.Errorf("Process = %q, want %q", got, apologyEN)
	}
	h.assertOnce(t, apologyEN)
	if h.history.exchanges[0].IntentKind != "math" {
		t.Errorf("IntentKind = %q, want math", h.history.exchanges[0].IntentKind)
	}
}

func TestProcess_ClassifierPanic(t *testing.T) {
	h := newHarness(t, classifyFunc(func(string) intent.Intent { panic("bad rule") }))

	got := h.proc.Process(context.Background(), "anything")
	if got != apologyEN {
		t.Errorf("Process = %q, want %q", got, apologyEN)
	}
	h.assertOnce(t, apologyEN)
	if h.history.exchanges[0].IntentKind != "unknown" {
		t.Errorf("IntentKind = %q, want unknown", h.history.exchanges[0].IntentKind)
	}
}

func TestProcess_EmptyReply(t *testing.T) {
	h := newHarness(t, always(intent.Note, "hi"))
	h.reg.Register(intent.Note, &stubHandler{kind: intent.Note})

	got := h.proc.Process(context.Background(), "yaad rakho")
	if got != apologyHI {
		t.Errorf("Process = %q, want %q", got, apologyHI)
	}
}

func TestProcess_HistoryFailureStillReplies(t *testing.T) {
	h := newHarness(t, always(intent.Timer, "en"))
	h.history.err = errors.New("disk full")
	h.reg.Register(intent.Timer, &stubHandler{kind: intent.Timer, reply: "ok"})

	if got := h.proc.Process(context.Background(), "timer"); got != "ok" {
		t.Errorf("Process = %q, want %q", got, "ok")
	}
	if len(h.speaker.texts) != 1 {
		t.Errorf("speak calls = %d, want 1", len(h.speaker.texts))
	}
}

func TestProcess_EventAndMetrics(t *testing.T) {
	bus := events.New()
	ch := bus.Subscribe(4)
	defer bus.Unsubscribe(ch)

	reg := prometheus.NewRegistry()
	m := metrics.MustNew(reg, nil)

	registry := handlers.NewRegistry()
	registry.Register(intent.Weather, &stubHandler{
		kind: intent.Weather,
		err:  &handlers.Failure{Kind: handlers.ErrTransient, What: "getting the weather"},
	})
	p := New(Config{
		Classifier: always(intent.Weather, "en"),
		Registry:   registry,
		Bus:        bus,
		Metrics:    m,
	})

	got := p.Process(context.Background(), "weather")
	want := "Sorry, I'm having trouble getting the weather right now. Please try again later."
	if got != want {
		t.Errorf("Process = %q, want %q", got, want)
	}

	select {
	case e := <-ch:
		if e.Kind != events.KindCommandProcessed {
			t.Errorf("event kind = %q, want %q", e.Kind, events.KindCommandProcessed)
		}
		if e.Data["intent"] != "weather" {
			t.Errorf("event intent = %v, want weather", e.Data["intent"])
		}
		if e.Data["response"] != want {
			t.Errorf("event response = %v", e.Data["response"])
		}
	default:
		t.Fatal("no command_processed event published")
	}

	if n, err := testutil.GatherAndCount(reg, "chatur_handler_failures_total"); err != nil || n != 1 {
		t.Errorf("handler_failures series = %d (%v), want 1", n, err)
	}
}

func TestProcess_RealHistoryStore(t *testing.T) {
	store, err := conversation.NewStore(filepath.Join(t.TempDir(), "conversation.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	registry := handlers.NewRegistry()
	registry.Register(intent.Timer, &stubHandler{kind: intent.Timer, reply: "Timer started for 1 minute"})
	p := New(Config{
		Classifier: always(intent.Timer, "en"),
		Registry:   registry,
		History:    store,
	})

	p.Process(context.Background(), "timer one minute")
	p.Process(context.Background(), "timer one minute")

	recent, err := store.Recent(10, "")
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("exchanges = %d, want 2", len(recent))
	}
	if recent[0].AssistantResponse != "Timer started for 1 minute" {
		t.Errorf("AssistantResponse = %q", recent[0].AssistantResponse)
	}
}
