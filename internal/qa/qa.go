// Package qa answers open-ended questions with the language model,
// giving it the last few exchanges as short-term context.
package qa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nugget/chatur/internal/conversation"
	"github.com/nugget/chatur/internal/llm"
)

// ErrNoBackend is returned when no language model is configured.
var ErrNoBackend = errors.New("no question-answering backend configured")

// Defaults.
const (
	DefaultAttempts         = 3
	DefaultContextExchanges = 5
	DefaultMaxTokens        = 150
)

// History supplies recent exchanges.
type History interface {
	Recent(limit int, sessionID string) ([]conversation.Exchange, error)
}

// Config configures an [Answerer].
type Config struct {
	Client    llm.Client // nil disables answering
	Model     string
	MaxTokens int
	// Name is how the assistant refers to itself in the system prompt.
	Name string
	// History and ContextExchanges control the transcript prepended to
	// each question.
	History          History
	ContextExchanges int
	// Attempts bounds the number of calls per question.
	Attempts int
	// NewBackOff overrides the retry policy (tests use a zero delay).
	NewBackOff func() backoff.BackOff
	Logger     *slog.Logger
}

// Answerer is safe for concurrent use.
type Answerer struct {
	cfg    Config
	logger *slog.Logger
}

// New applies defaults to cfg.
func New(cfg Config) *Answerer {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.ContextExchanges <= 0 {
		cfg.ContextExchanges = DefaultContextExchanges
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.Name == "" {
		cfg.Name = "Chatur"
	}
	if cfg.NewBackOff == nil {
		attempts := cfg.Attempts
		cfg.NewBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 2 * time.Second
			b.MaxInterval = 10 * time.Second
			b.MaxElapsedTime = 0
			return backoff.WithMaxRetries(b, uint64(attempts-1))
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Answerer{cfg: cfg, logger: logger}
}

// Available reports whether a backend is configured.
func (a *Answerer) Available() bool {
	return a.cfg.Client != nil
}

// Answer asks the model. Rate limiting and server failures are retried
// with exponential backoff; client errors are returned immediately.
func (a *Answerer) Answer(ctx context.Context, question, language string) (string, error) {
	if a.cfg.Client == nil {
		return "", ErrNoBackend
	}

	req := llm.ChatRequest{
		Model:       a.cfg.Model,
		Messages:    a.messages(question, language),
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: 0.7,
	}

	var (
		answer  string
		attempt int
	)
	op := func() error {
		attempt++
		resp, err := a.cfg.Client.Chat(ctx, req)
		if err != nil {
			var se *llm.StatusError
			if errors.As(err, &se) && !se.Temporary() {
				return backoff.Permanent(err)
			}
			a.logger.Warn("question answering attempt failed", "attempt", attempt, "error", err)
			return err
		}
		answer = strings.TrimSpace(resp.Message.Content)
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(a.cfg.NewBackOff(), ctx)); err != nil {
		return "", fmt.Errorf("answer question after %d attempts: %w", attempt, err)
	}
	a.logger.Info("answered question", "question", truncate(question, 50), "attempts", attempt)
	return answer, nil
}

func (a *Answerer) messages(question, language string) []llm.Message {
	lang := "English"
	if language == "hi" {
		lang = "Hindi"
	}
	system := fmt.Sprintf(`You are %s, a helpful voice assistant. Answer the user's question concisely in %s.

Keep responses:
- Short (2-3 sentences max)
- Conversational
- In the same language as the question`, a.cfg.Name, lang)

	if a.cfg.History != nil {
		recent, err := a.cfg.History.Recent(a.cfg.ContextExchanges, "")
		if err != nil {
			a.logger.Warn("load conversation context failed", "error", err)
		} else if c := conversation.FormatContext(recent); c != "" {
			system += "\n\n" + c
		}
	}

	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: question},
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
