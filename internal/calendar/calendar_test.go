package calendar

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
)

func TestNewCalendarEncodes(t *testing.T) {
	start := time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC)
	cal := newCalendar(Event{UID: "abc", Summary: "Dentist", Start: start, End: start.Add(time.Hour)}, start)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"BEGIN:VEVENT", "SUMMARY:Dentist", "UID:abc", "DTSTART:20260501T150000Z", "DTEND:20260501T160000Z"} {
		if !strings.Contains(out, want) {
			t.Errorf("encoded calendar missing %q:\n%s", want, out)
		}
	}
}

func TestEventsFromSortsByStart(t *testing.T) {
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	late := newCalendar(Event{UID: "2", Summary: "Lunch", Start: base.Add(3 * time.Hour), End: base.Add(4 * time.Hour)}, base)
	early := newCalendar(Event{UID: "1", Summary: "Standup", Start: base, End: base.Add(15 * time.Minute)}, base)

	got := eventsFrom([]caldav.CalendarObject{{Data: late}, {Data: nil}, {Data: early}}, time.UTC)
	if len(got) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(got))
	}
	if got[0].Summary != "Standup" || got[1].Summary != "Lunch" {
		t.Errorf("order = %q, %q; want Standup, Lunch", got[0].Summary, got[1].Summary)
	}
	if !got[0].Start.Equal(base) {
		t.Errorf("Start = %v, want %v", got[0].Start, base)
	}
}

func TestPickCalendar(t *testing.T) {
	cals := []caldav.Calendar{
		{Path: "/cal/tasks/", Name: "Tasks", SupportedComponentSet: []string{ical.CompToDo}},
		{Path: "/cal/home/", Name: "Home", SupportedComponentSet: []string{ical.CompEvent}},
		{Path: "/cal/work/", Name: "Work"},
	}

	tests := []struct {
		want    string
		path    string
		wantErr bool
	}{
		{"", "/cal/home/", false},
		{"Work", "/cal/work/", false},
		{"/cal/tasks/", "/cal/tasks/", false},
		{"Missing", "", true},
	}
	for _, tt := range tests {
		got, err := pickCalendar(cals, tt.want)
		if (err != nil) != tt.wantErr {
			t.Errorf("pickCalendar(%q) error = %v, wantErr %v", tt.want, err, tt.wantErr)
			continue
		}
		if got != tt.path {
			t.Errorf("pickCalendar(%q) = %q, want %q", tt.want, got, tt.path)
		}
	}
}

func TestNewClientRequiresURL(t *testing.T) {
	if _, err := NewClient(Config{}, nil); err == nil {
		t.Error("NewClient(empty) succeeded, want error")
	}
}
