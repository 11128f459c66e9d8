package speech

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// CommandConfig configures a [CommandSpeaker].
type CommandConfig struct {
	// Command is the TTS program; empty means "espeak-ng".
	Command string
	// Voices maps a language code to the engine's voice name. Languages
	// without an entry use the "en" voice.
	Voices map[string]string
	// Rate is words per minute; zero leaves the engine default.
	Rate int
	// Volume is the engine amplitude (espeak-ng uses 0-200); zero leaves
	// the engine default.
	Volume int
	Logger *slog.Logger
}

// CommandSpeaker speaks by running an espeak-compatible program:
//
//	espeak-ng -v <voice> [-s <rate>] [-a <volume>] <text>
//
// Calls are serialized; there is one audio device.
type CommandSpeaker struct {
	cfg    CommandConfig
	logger *slog.Logger
	mu     sync.Mutex
}

// NewCommandSpeaker applies defaults to cfg.
func NewCommandSpeaker(cfg CommandConfig) *CommandSpeaker {
	if cfg.Command == "" {
		cfg.Command = "espeak-ng"
	}
	if cfg.Voices == nil {
		cfg.Voices = map[string]string{"en": "en-us", "hi": "hi"}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandSpeaker{cfg: cfg, logger: logger}
}

// Args returns the argument list for text in language.
func (s *CommandSpeaker) Args(text, language string) []string {
	voice, ok := s.cfg.Voices[language]
	if !ok {
		voice = s.cfg.Voices["en"]
	}
	var args []string
	if voice != "" {
		args = append(args, "-v", voice)
	}
	if s.cfg.Rate > 0 {
		args = append(args, "-s", strconv.Itoa(s.cfg.Rate))
	}
	if s.cfg.Volume > 0 {
		args = append(args, "-a", strconv.Itoa(s.cfg.Volume))
	}
	return append(args, "--", text)
}

// Speak implements [Speaker].
func (s *CommandSpeaker) Speak(ctx context.Context, text, language string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd := exec.CommandContext(ctx, s.cfg.Command, s.Args(text, language)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", s.cfg.Command, err, strings.TrimSpace(stderr.String()))
	}
	s.logger.Debug("spoke", "language", language, "chars", len(text))
	return nil
}
