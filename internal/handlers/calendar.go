package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nugget/chatur/internal/calendar"
	"github.com/nugget/chatur/internal/intent"
	"github.com/nugget/chatur/internal/timeparse"
)

// Calendar defaults.
const (
	calendarHorizon   = 7 * 24 * time.Hour
	calendarMaxEvents = 5
	eventDuration     = time.Hour
)

// CalendarClient reads and writes events.
type CalendarClient interface {
	Upcoming(ctx context.Context, from, to time.Time, limit int) ([]calendar.Event, error)
	Create(ctx context.Context, summary string, start time.Time, dur time.Duration) (*calendar.Event, error)
}

// Calendar lists upcoming events and schedules new ones.
type Calendar struct {
	handles
	client CalendarClient
	now    func() time.Time
}

// NewCalendar creates the calendar handler. A nil client makes every
// request report the calendar as unavailable.
func NewCalendar(client CalendarClient) *Calendar {
	return &Calendar{handles: handles(intent.Calendar), client: client, now: time.Now}
}

// Handle implements [Handler].
func (h *Calendar) Handle(ctx context.Context, in intent.Intent) (string, error) {
	if h.client == nil {
		return "", fail(ErrUnavailable, "the calendar", nil)
	}
	if in.Param(intent.ParamAction) == "create" {
		return h.create(ctx, in)
	}
	return h.list(ctx)
}

func (h *Calendar) list(ctx context.Context) (string, error) {
	now := h.now()
	events, err := h.client.Upcoming(ctx, now, now.Add(calendarHorizon), calendarMaxEvents)
	if err != nil {
		return "", fail(ErrTransient, "reading your calendar", err)
	}
	if len(events) == 0 {
		return "You have no upcoming events.", nil
	}

	var b strings.Builder
	b.WriteString("Here are your upcoming events:")
	for _, ev := range events {
		fmt.Fprintf(&b, "\n- %s on %s", ev.Summary, ev.Start.In(now.Location()).Format("Monday at 03:04 PM"))
	}
	return b.String(), nil
}

func (h *Calendar) create(ctx context.Context, in intent.Intent) (string, error) {
	summary := strings.TrimSpace(in.Param(intent.ParamTitle))
	when := strings.TrimSpace(in.Param(intent.ParamTime))
	if when == "" {
		return "When should I schedule that?", nil
	}
	if summary == "" {
		return "What should I call the event?", nil
	}

	start := timeparse.ParseTime(when, h.now())
	ev, err := h.client.Create(ctx, summary, start, eventDuration)
	if err != nil {
		return "", fail(ErrTransient, "updating your calendar", err)
	}
	return fmt.Sprintf("Okay, I've added '%s' to your calendar for %s.",
		ev.Summary, start.Format("Monday at 03:04 PM")), nil
}
