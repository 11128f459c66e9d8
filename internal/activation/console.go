package activation

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/nugget/chatur/internal/speech"
)

// ErrQuit is returned by [Console.Run] when the user asks to leave.
var ErrQuit = errors.New("user requested exit")

var quitWords = map[string]bool{"quit": true, "exit": true, "bye": true}

// Submitter runs a cycle for already captured text and returns the
// reply. It is [assistant.Cycle.Submit] in production.
type Submitter func(ctx context.Context, text string) (reply string, ran bool)

// ConsoleConfig configures a Console.
type ConsoleConfig struct {
	In     io.Reader
	Out    io.Writer
	Submit Submitter
	// Speaker says goodbye on quit. Optional.
	Speaker speech.Speaker
	// Prompt is written before each line is read (default "You: ").
	Prompt string
	// Name prefixes replies (default "Chatur").
	Name   string
	Logger *slog.Logger
}

// Console treats each typed line as one utterance. It is the text-mode
// stand-in for a microphone.
type Console struct {
	in      io.Reader
	out     io.Writer
	submit  Submitter
	speaker speech.Speaker
	prompt  string
	name    string
	logger  *slog.Logger
}

// NewConsole builds a console source.
func NewConsole(cfg ConsoleConfig) *Console {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if cfg.Prompt == "" {
		cfg.Prompt = "You: "
	}
	if cfg.Name == "" {
		cfg.Name = "Chatur"
	}
	return &Console{
		in:      cfg.In,
		out:     cfg.Out,
		submit:  cfg.Submit,
		speaker: speech.NewSafe(cfg.Speaker, cfg.Logger),
		prompt:  cfg.Prompt,
		name:    cfg.Name,
		logger:  cfg.Logger,
	}
}

// Run reads lines until EOF, ctx cancellation or a quit word. Lines are
// handled one at a time; the next prompt appears after the reply.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		fmt.Fprint(c.out, c.prompt)
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("read console: %w", err)
			}
			c.logger.Info("console input closed")
			return nil
		case line := <-lines:
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if quitWords[strings.ToLower(line)] {
				c.logger.Info("user requested exit")
				fmt.Fprintf(c.out, "%s: Goodbye!\n", c.name)
				c.speaker.Speak(ctx, "Goodbye!", "en")
				return ErrQuit
			}
			reply, ran := c.submit(ctx, line)
			if !ran {
				fmt.Fprintf(c.out, "%s is busy, try again in a moment.\n", c.name)
				continue
			}
			fmt.Fprintf(c.out, "%s: %s\n\n", c.name, reply)
		}
	}
}
