// Package timeparse converts the loose time and duration phrases that
// come out of the classifier ("5 pm", "tomorrow at 8", "in 10 minutes",
// "30 seconds") into concrete values. Parsing never fails; unparseable
// input degrades to a documented default.
package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Defaults applied when an expression cannot be understood.
const (
	DefaultDelay    = time.Hour
	DefaultDuration = 5 * time.Minute
	// morningHour is used for "tomorrow" without an explicit hour.
	morningHour = 9
)

var (
	relativePattern = regexp.MustCompile(`\bin\s+(\d+)\s*(second|sec|minute|min|hour|hr)`)
	clockPattern    = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*(am|pm|a\.m\.|p\.m\.)?`)
	numberPattern   = regexp.MustCompile(`(\d+)`)
)

// ParseTime resolves expr relative to now. Recognized forms, in order:
//
//   - "in N seconds|minutes|hours"
//   - "tomorrow" / "kal", optionally with an hour (default 9am)
//   - a clock time ("5", "5pm", "17:30", "7:15 am"), rolled forward a
//     day when it has already passed
//
// Anything else is now plus [DefaultDelay].
func ParseTime(expr string, now time.Time) time.Time {
	s := strings.ToLower(strings.TrimSpace(expr))

	if m := relativePattern.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return now.Add(time.Duration(n) * unit(m[2]))
	}

	if containsWord(s, "tomorrow") || containsWord(s, "kal") {
		base := now.AddDate(0, 0, 1)
		hour, minute := morningHour, 0
		if h, mi, ok := clock(s); ok {
			hour, minute = h, mi
		}
		return time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, now.Location())
	}

	if hour, minute, ok := clock(s); ok {
		target := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if target.Before(now) {
			target = target.AddDate(0, 0, 1)
		}
		return target
	}

	return now.Add(DefaultDelay)
}

// clock finds the first plausible clock time in s.
func clock(s string) (hour, minute int, ok bool) {
	for _, m := range clockPattern.FindAllStringSubmatch(s, -1) {
		h, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		mi := 0
		if m[2] != "" {
			mi, _ = strconv.Atoi(m[2])
		}
		switch strings.ReplaceAll(m[3], ".", "") {
		case "pm":
			if h < 12 {
				h += 12
			}
		case "am":
			if h == 12 {
				h = 0
			}
		}
		if h > 23 || mi > 59 {
			continue
		}
		return h, mi, true
	}
	return 0, 0, false
}

// ParseDuration reads "N seconds|minutes|hours". A bare number is taken
// as minutes; no number at all yields [DefaultDuration].
func ParseDuration(expr string) time.Duration {
	s := strings.ToLower(strings.TrimSpace(expr))
	m := numberPattern.FindStringSubmatch(s)
	if m == nil {
		return DefaultDuration
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return DefaultDuration
	}
	switch {
	case strings.Contains(s, "sec"):
		return time.Duration(n) * time.Second
	case strings.Contains(s, "hour"), strings.Contains(s, "hr"):
		return time.Duration(n) * time.Hour
	default:
		return time.Duration(n) * time.Minute
	}
}

// Describe renders d the way the assistant speaks durations:
// "1 minute", "90 seconds", "2 hours".
func Describe(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return plural(int(d/time.Second), "second")
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return strconv.Itoa(n) + " " + word + "s"
}

func unit(s string) time.Duration {
	switch s {
	case "second", "sec":
		return time.Second
	case "hour", "hr":
		return time.Hour
	default:
		return time.Minute
	}
}

func containsWord(s, word string) bool {
	for _, f := range strings.FieldsFunc(s, func(r rune) bool {
		return !('a' <= r && r <= 'z')
	}) {
		if f == word {
			return true
		}
	}
	return false
}
