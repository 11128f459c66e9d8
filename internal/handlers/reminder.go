package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nugget/chatur/internal/intent"
	"github.com/nugget/chatur/internal/reminder"
	"github.com/nugget/chatur/internal/timeparse"
)

// ReminderStore persists reminders for the scheduler to fire.
type ReminderStore interface {
	Add(text string, at time.Time, language string) (*reminder.Reminder, error)
}

// Reminders stores a reminder at the time named in the utterance.
type Reminders struct {
	handles
	store  ReminderStore
	now    func() time.Time
	logger *slog.Logger
}

// NewReminders creates the reminder handler.
func NewReminders(store ReminderStore, logger *slog.Logger) *Reminders {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reminders{handles: handles(intent.Reminder), store: store, now: time.Now, logger: logger}
}

// Handle implements [Handler].
func (h *Reminders) Handle(_ context.Context, in intent.Intent) (string, error) {
	lang := in.ResponseLanguage()
	text := strings.TrimSpace(in.Param(intent.ParamText))
	if text == "" {
		return say(lang, "What should I remind you about?", "किस बारे में याद दिलाऊं?"), nil
	}

	when := timeparse.ParseTime(in.Param(intent.ParamTime), h.now())
	r, err := h.store.Add(text, when, in.Language())
	if err != nil {
		return "", fail(nil, "set that reminder", err)
	}
	h.logger.Info("reminder scheduled", "id", r.ID, "at", when, "text", text)

	return say(lang,
		fmt.Sprintf("Reminder set: %s at %s", text, when.Format("03:04 PM on January 02")),
		fmt.Sprintf("रिमाइंडर सेट कर दिया गया है: %s - %s", text, when.Format("03:04 PM"))), nil
}
