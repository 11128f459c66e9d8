package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nugget/chatur/internal/intent"
	"github.com/nugget/chatur/internal/notify"
	"github.com/nugget/chatur/internal/speech"
	"github.com/nugget/chatur/internal/timeparse"
)

// Timers runs in-memory countdowns. Timers do not survive a restart.
type Timers struct {
	handles
	notifier notify.Notifier
	speaker  speech.Speaker
	logger   *slog.Logger

	mu     sync.Mutex
	active map[string]*time.Timer
	fired  sync.WaitGroup
}

// NewTimers creates the timer handler. Either collaborator may be nil.
func NewTimers(notifier notify.Notifier, speaker speech.Speaker, logger *slog.Logger) *Timers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Timers{
		handles:  handles(intent.Timer),
		notifier: notifier,
		speaker:  speaker,
		logger:   logger,
		active:   make(map[string]*time.Timer),
	}
}

// Handle implements [Handler].
func (h *Timers) Handle(_ context.Context, in intent.Intent) (string, error) {
	lang := in.ResponseLanguage()
	d := timeparse.ParseDuration(in.Param(intent.ParamDuration))
	label := strings.TrimSpace(in.Param(intent.ParamLabel))
	if label == "" {
		label = "Timer"
	}
	h.start(d, label, in.Language())

	if minutes := int(d / time.Minute); minutes > 0 {
		return say(lang,
			"Timer started for "+plural(minutes, "minute"),
			fmt.Sprintf("टाइमर शुरू हो गया है: %d मिनट", minutes)), nil
	}
	seconds := int(d / time.Second)
	return say(lang,
		"Timer started for "+plural(seconds, "second"),
		fmt.Sprintf("टाइमर शुरू हो गया है: %d सेकंड", seconds)), nil
}

func (h *Timers) start(d time.Duration, label, lang string) string {
	id := uuid.NewString()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fired.Add(1)
	h.active[id] = time.AfterFunc(d, func() {
		defer h.fired.Done()
		h.finish(id, label, lang)
	})
	h.logger.Info("timer started", "id", id, "label", label, "duration", d)
	return id
}

func (h *Timers) finish(id, label, lang string) {
	h.mu.Lock()
	delete(h.active, id)
	h.mu.Unlock()

	h.logger.Info("timer finished", "id", id, "label", label)
	if h.notifier != nil {
		h.notifier.Notify("Timer Complete", label)
	}
	if h.speaker != nil {
		msg := say(lang, label+" finished", label+" पूरा हो गया")
		if err := h.speaker.Speak(context.Background(), msg, lang); err != nil {
			h.logger.Warn("timer speech failed", "id", id, "error", err)
		}
	}
}

// Active returns the number of running timers.
func (h *Timers) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.active)
}

// Stop cancels every running timer without firing it.
func (h *Timers) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, t := range h.active {
		if t.Stop() {
			h.fired.Done()
		}
		delete(h.active, id)
	}
}

// Wait blocks until every started timer has fired or been stopped.
func (h *Timers) Wait() {
	h.fired.Wait()
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}
