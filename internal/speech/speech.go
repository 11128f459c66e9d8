// Package speech wraps the speech-to-text and text-to-speech engines the
// assistant talks through. Both are external programs or services; this
// package only adapts them to the Listener and Speaker contracts.
package speech

import (
	"context"
	"log/slog"
)

// Listener captures one utterance and returns its transcript. An empty
// string with a nil error means nothing intelligible was heard.
type Listener interface {
	Listen(ctx context.Context) (string, error)
}

// Speaker renders text as audio in the given language. It blocks until
// playback finishes.
type Speaker interface {
	Speak(ctx context.Context, text, language string) error
}

// Safe wraps a Speaker so that failures are logged rather than
// returned. Reply paths use it because a failed playback leaves nothing
// for the caller to do.
type Safe struct {
	speaker Speaker
	logger  *slog.Logger
}

// NewSafe wraps s. A nil s yields a speaker that only logs.
func NewSafe(s Speaker, logger *slog.Logger) *Safe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Safe{speaker: s, logger: logger}
}

// Speak implements [Speaker] and always returns nil.
func (s *Safe) Speak(ctx context.Context, text, language string) error {
	if text == "" {
		return nil
	}
	if s.speaker == nil {
		s.logger.Info("speak (no tts)", "text", text, "language", language)
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("speech panic", "error", p)
		}
	}()
	if err := s.speaker.Speak(ctx, text, language); err != nil {
		s.logger.Warn("speech failed", "error", err, "language", language)
	}
	return nil
}

// SafeListener is the capture-side counterpart of [Safe].
type SafeListener struct {
	listener Listener
	logger   *slog.Logger
}

// NewSafeListener wraps l.
func NewSafeListener(l Listener, logger *slog.Logger) *SafeListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &SafeListener{listener: l, logger: logger}
}

// Listen never errors either; a failed capture is reported as silence.
func (s *SafeListener) Listen(ctx context.Context) string {
	if s.listener == nil {
		return ""
	}
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("listener panic", "error", p)
		}
	}()
	text, err := s.listener.Listen(ctx)
	if err != nil {
		s.logger.Warn("listen failed", "error", err)
		return ""
	}
	return text
}
