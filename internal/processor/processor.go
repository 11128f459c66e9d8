// Package processor runs one request/response cycle: classify the
// utterance, dispatch it to the registered handler, record the exchange
// and speak the reply.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nugget/chatur/internal/conversation"
	"github.com/nugget/chatur/internal/events"
	"github.com/nugget/chatur/internal/handlers"
	"github.com/nugget/chatur/internal/intent"
	"github.com/nugget/chatur/internal/metrics"
	"github.com/nugget/chatur/internal/speech"
)

// Replies for a cycle that failed outside any handler's control.
const (
	apologyEN = "Sorry, I had trouble processing that command"
	apologyHI = "माफ़ करें, उस कमांड को समझने में दिक्कत हुई।"
)

// Classifier turns raw text into an intent. It must never fail.
type Classifier interface {
	Classify(text string) intent.Intent
}

// History receives one exchange per processed command.
type History interface {
	Append(ex *conversation.Exchange) error
}

// Config wires a Processor. Classifier and Registry are required.
type Config struct {
	Classifier Classifier
	Registry   *handlers.Registry
	History    History
	Speaker    speech.Speaker
	Bus        *events.Bus
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	// SessionID tags every exchange recorded by this processor.
	SessionID string
	// Language is used for the apology when classification never ran.
	Language string
}

// Processor is safe for concurrent use as long as its handlers are.
type Processor struct {
	classifier Classifier
	registry   *handlers.Registry
	history    History
	speaker    *speech.Safe
	bus        *events.Bus
	metrics    *metrics.Metrics
	logger     *slog.Logger
	sessionID  string
	language   string
}

// New builds a processor. The speaker is wrapped so playback failures
// never reach the caller.
func New(cfg Config) *Processor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Registry == nil {
		cfg.Registry = handlers.NewRegistry()
	}
	if cfg.Language == "" {
		cfg.Language = intent.English
	}
	return &Processor{
		classifier: cfg.Classifier,
		registry:   cfg.Registry,
		history:    cfg.History,
		speaker:    speech.NewSafe(cfg.Speaker, cfg.Logger),
		bus:        cfg.Bus,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		sessionID:  cfg.SessionID,
		language:   cfg.Language,
	}
}

// Result describes one processed command.
type Result struct {
	Response string
	Intent   intent.Intent
	// Err is the handler or recovered failure behind an apology, nil on
	// success.
	Err error
}

// Process runs one full cycle and returns the reply. It always records
// exactly one exchange and speaks exactly once, whatever happens.
func (p *Processor) Process(ctx context.Context, text string) string {
	return p.Run(ctx, text).Response
}

// Run is Process with the classification and failure exposed.
func (p *Processor) Run(ctx context.Context, text string) Result {
	start := time.Now()
	res := p.respond(ctx, text)
	elapsed := time.Since(start)

	kind := string(res.Intent.Kind())
	if kind == "" {
		kind = string(intent.Unknown)
	}
	p.record(text, res.Response, kind)
	p.speaker.Speak(ctx, res.Response, p.replyLanguage(res.Intent))

	p.metrics.CommandProcessed(kind, elapsed)
	if res.Err != nil {
		p.metrics.HandlerFailed(kind, handlers.KindName(res.Err))
	}
	p.bus.Emit(events.SourceProcessor, events.KindCommandProcessed, map[string]any{
		"input":      text,
		"response":   res.Response,
		"intent":     kind,
		"elapsed_ms": elapsed.Milliseconds(),
		"failed":     res.Err != nil,
	})
	p.logger.Info("command processed",
		"intent", kind,
		"language", res.Intent.Language(),
		"elapsed", elapsed.Round(time.Millisecond),
		"failed", res.Err != nil,
	)
	return res
}

func (p *Processor) respond(ctx context.Context, text string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("command processing panic", "error", fmt.Sprint(r), "text", text)
			res.Response = p.apology(res.Intent)
			res.Err = fmt.Errorf("processing panic: %v", r)
		}
	}()

	res.Intent = p.classifier.Classify(text)
	lang := p.replyLanguage(res.Intent)

	h, ok := p.registry.Lookup(res.Intent.Kind())
	if !ok || !h.CanHandle(res.Intent) {
		p.logger.Debug("no handler for intent", "kind", res.Intent.Kind())
		res.Response = handlers.UnknownReply(lang)
		return res
	}

	reply, err := h.Handle(ctx, res.Intent)
	if err != nil {
		p.logger.Warn("handler failed",
			"kind", res.Intent.Kind(),
			"error_kind", handlers.KindName(err),
			"error", err,
		)
		res.Response = handlers.Describe(err, lang)
		res.Err = err
		return res
	}
	if reply == "" {
		reply = p.apology(res.Intent)
	}
	res.Response = reply
	return res
}

func (p *Processor) record(input, response, kind string) {
	if p.history == nil {
		return
	}
	ex := &conversation.Exchange{
		UserInput:         input,
		AssistantResponse: response,
		IntentKind:        kind,
		SessionID:         p.sessionID,
	}
	if err := p.history.Append(ex); err != nil {
		p.logger.Warn("failed to record exchange", "error", err)
	}
}

func (p *Processor) replyLanguage(in intent.Intent) string {
	if lang := in.ResponseLanguage(); lang != "" {
		return lang
	}
	return p.language
}

func (p *Processor) apology(in intent.Intent) string {
	if p.replyLanguage(in) == intent.Hindi {
		return apologyHI
	}
	return apologyEN
}
