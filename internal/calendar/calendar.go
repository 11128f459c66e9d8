// Package calendar reads and writes the user's CalDAV calendar.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"

	"github.com/nugget/chatur/internal/database"
	"github.com/nugget/chatur/internal/httpkit"
)

// Config locates the calendar. It lives under the "calendar" YAML key.
type Config struct {
	// URL is the CalDAV server root or principal URL.
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// Calendar is the display name or path of the calendar to use; empty
	// picks the first calendar that supports events.
	Calendar string `yaml:"calendar"`
}

// Configured reports whether a server URL is set.
func (c Config) Configured() bool {
	return c.URL != ""
}

// Event is one calendar entry.
type Event struct {
	UID     string
	Summary string
	Start   time.Time
	End     time.Time
}

// Client talks to one CalDAV calendar. The calendar path is discovered
// on first use and cached.
type Client struct {
	cfg    Config
	dav    *caldav.Client
	logger *slog.Logger

	mu   sync.Mutex
	path string
}

// NewClient builds a client for cfg.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if !cfg.Configured() {
		return nil, errors.New("calendar url is not configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	var hc webdav.HTTPClient = httpkit.NewClient()
	if cfg.Username != "" {
		hc = webdav.HTTPClientWithBasicAuth(hc, cfg.Username, cfg.Password)
	}
	dav, err := caldav.NewClient(hc, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("caldav client: %w", err)
	}
	return &Client{cfg: cfg, dav: dav, logger: logger}, nil
}

// calendarPath resolves the configured calendar once.
func (c *Client) calendarPath(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.path != "" {
		return c.path, nil
	}

	principal, err := c.dav.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("find principal: %w", err)
	}
	home, err := c.dav.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return "", fmt.Errorf("find calendar home: %w", err)
	}
	cals, err := c.dav.FindCalendars(ctx, home)
	if err != nil {
		return "", fmt.Errorf("list calendars: %w", err)
	}
	path, err := pickCalendar(cals, c.cfg.Calendar)
	if err != nil {
		return "", err
	}
	c.logger.Info("calendar selected", "path", path)
	c.path = path
	return path, nil
}

func pickCalendar(cals []caldav.Calendar, want string) (string, error) {
	for _, cal := range cals {
		if want != "" && (cal.Name == want || cal.Path == want) {
			return cal.Path, nil
		}
	}
	if want != "" {
		return "", fmt.Errorf("calendar %q not found", want)
	}
	for _, cal := range cals {
		if supportsEvents(cal) {
			return cal.Path, nil
		}
	}
	return "", errors.New("no calendar supports events")
}

func supportsEvents(cal caldav.Calendar) bool {
	if len(cal.SupportedComponentSet) == 0 {
		return true
	}
	for _, comp := range cal.SupportedComponentSet {
		if comp == ical.CompEvent {
			return true
		}
	}
	return false
}

// Upcoming returns up to limit events starting in [from, to), soonest
// first.
func (c *Client) Upcoming(ctx context.Context, from, to time.Time, limit int) ([]Event, error) {
	path, err := c.calendarPath(ctx)
	if err != nil {
		return nil, err
	}
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:  ical.CompCalendar,
			Comps: []caldav.CalendarCompRequest{{Name: ical.CompEvent, AllProps: true}},
		},
		CompFilter: caldav.CompFilter{
			Name:  ical.CompCalendar,
			Comps: []caldav.CompFilter{{Name: ical.CompEvent, Start: from, End: to}},
		},
	}
	objs, err := c.dav.QueryCalendar(ctx, path, query)
	if err != nil {
		return nil, fmt.Errorf("query calendar: %w", err)
	}
	events := eventsFrom(objs, from.Location())
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// eventsFrom flattens calendar objects into events sorted by start.
// Events without a parseable start are dropped.
func eventsFrom(objs []caldav.CalendarObject, loc *time.Location) []Event {
	var out []Event
	for _, obj := range objs {
		if obj.Data == nil {
			continue
		}
		for _, ev := range obj.Data.Events() {
			start, err := ev.DateTimeStart(loc)
			if err != nil {
				continue
			}
			end, _ := ev.DateTimeEnd(loc)
			uid, _ := ev.Props.Text(ical.PropUID)
			summary, _ := ev.Props.Text(ical.PropSummary)
			out = append(out, Event{UID: uid, Summary: summary, Start: start, End: end})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Create adds an event and returns it.
func (c *Client) Create(ctx context.Context, summary string, start time.Time, dur time.Duration) (*Event, error) {
	path, err := c.calendarPath(ctx)
	if err != nil {
		return nil, err
	}
	ev := Event{
		UID:     database.NewID(),
		Summary: summary,
		Start:   start,
		End:     start.Add(dur),
	}
	objPath := path + ev.UID + ".ics"
	if _, err := c.dav.PutCalendarObject(ctx, objPath, newCalendar(ev, time.Now())); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	c.logger.Info("calendar event created", "summary", summary, "start", start)
	return &ev, nil
}

// newCalendar wraps ev in a VCALENDAR ready to upload.
func newCalendar(ev Event, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//chatur//voice assistant//EN")

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, ev.UID)
	event.Props.SetText(ical.PropSummary, ev.Summary)
	event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, ev.Start.UTC())
	event.Props.SetDateTime(ical.PropDateTimeEnd, ev.End.UTC())
	cal.Children = append(cal.Children, event.Component)
	return cal
}
