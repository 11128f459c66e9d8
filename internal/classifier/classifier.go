// Package classifier turns raw utterance text into a typed [intent.Intent]
// using an ordered, first-match-wins set of keyword rules. Branch order
// resolves ambiguous input: a higher branch always shadows every branch
// after it, so the order of the checks in [Classifier.Classify] is part
// of the behavior.
package classifier

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/nugget/chatur/internal/intent"
)

// Confidence values attached to classifications. Rule matches are
// certain by construction; the question fallback only means "nothing
// else matched".
const (
	ruleConfidence     = 1.0
	fallbackConfidence = 0.5
)

// Config carries the externally configured vocabularies.
type Config struct {
	// RecognizedApps are matched as substrings of the utterance, in order.
	RecognizedApps []string
	// DefaultApp is selected when an open request names no recognized app,
	// and for every URL or site request.
	DefaultApp string
	// TLDs build the URL pattern (e.g. "com", "org").
	TLDs []string
	// Extensions build the file pattern (e.g. "pdf", "docx").
	Extensions []string
	// Language is reported when detection is disabled or finds nothing.
	Language string
	// DetectLanguage enables the script/keyword heuristic.
	DetectLanguage bool
	// HindiCharThreshold is the fraction of Devanagari letters at which
	// an utterance is reported as Hindi.
	HindiCharThreshold float64
}

// Classifier is safe for concurrent use; it holds only compiled patterns.
type Classifier struct {
	cfg        Config
	apps       []string
	urlPattern *regexp.Regexp
	filePat    *regexp.Regexp
	logger     *slog.Logger
}

var (
	timerSeconds = regexp.MustCompile(`(\d+)\s*sec`)
	timerMinutes = regexp.MustCompile(`(\d+)\s*min`)
	timerHours   = regexp.MustCompile(`(\d+)\s*(?:hour|hr)`)
	atWord       = regexp.MustCompile(`\bat\b`)
	siteName     = regexp.MustCompile(`(\w+)\s+(?:site|website)`)
	volumeLevel  = regexp.MustCompile(`(?:volume|awaz|awaaz)\s*(?:to|ko|pe|at)?\s*(\d+)|(\d+)\s*(?:%|percent)`)
	mathExpr     = regexp.MustCompile(`\d+(?:\.\d+)?\s*(?:[-+*/^x%]|plus|minus|times|into|over|divided|multiplied|power|mod)\s*(?:by\s+|of\s+)?\d`)
)

// New compiles the vocabulary patterns. Empty TLD or extension lists
// disable the corresponding sub-branch.
func New(cfg Config, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Language == "" {
		cfg.Language = intent.English
	}
	if cfg.HindiCharThreshold <= 0 {
		cfg.HindiCharThreshold = 0.3
	}
	apps := make([]string, 0, len(cfg.RecognizedApps))
	for _, a := range cfg.RecognizedApps {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			apps = append(apps, a)
		}
	}
	if cfg.DefaultApp == "" {
		cfg.DefaultApp = "browser"
		if len(apps) > 0 {
			cfg.DefaultApp = apps[0]
		}
	}
	c := &Classifier{cfg: cfg, apps: apps, logger: logger}
	if alt := alternation(cfg.TLDs); alt != "" {
		c.urlPattern = regexp.MustCompile(`(?:https?://)?(?:www\.)?[a-z0-9-]+\.(?:` + alt + `)\b(?:/[^\s]*)?`)
	}
	if alt := alternation(cfg.Extensions); alt != "" {
		c.filePat = regexp.MustCompile(`[a-z0-9_\-.]+\.(?:` + alt + `)\b`)
	}
	return c
}

func alternation(words []string) string {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(w)), ".")
		if w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}
	return strings.Join(quoted, "|")
}

// Classify never fails. Any panic inside a rule branch is logged and
// reported as an unknown intent with zero confidence.
func (c *Classifier) Classify(text string) (result intent.Intent) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("classifier panic", "error", fmt.Sprint(r), "text", text)
			result = intent.Unrecognized(c.cfg.Language)
		}
	}()

	u := newUtterance(text)
	if len(u.tokens) == 0 {
		return intent.Unrecognized(c.cfg.Language)
	}
	lang := c.detectLanguage(u)

	rules := []func(utterance, string) (intent.Intent, bool){
		c.email,
		c.reminder,
		c.timer,
		c.note,
		c.appLaunch,
		c.media,
		c.task,
		c.weather,
		c.calendar,
		c.math,
		c.systemInfo,
		c.fileSearch,
	}
	for _, rule := range rules {
		if in, ok := rule(u, lang); ok {
			c.logger.Debug("utterance classified", "kind", in.Kind(), "language", lang)
			return in
		}
	}
	return intent.New(intent.Question, lang, map[string]string{intent.ParamQuestion: u.raw}, fallbackConfidence)
}

func matched(kind intent.Kind, lang string, params map[string]string) (intent.Intent, bool) {
	return intent.New(kind, lang, params, ruleConfidence), true
}

func (c *Classifier) email(u utterance, lang string) (intent.Intent, bool) {
	if !u.has(emailWords...) {
		return intent.Intent{}, false
	}
	if !u.has(emailSearchWords...) {
		return matched(intent.Email, lang, map[string]string{intent.ParamAction: "read"})
	}
	query := u.without(emailNoise)
	if sender := u.after("from"); sender != "" {
		query = "from:" + sender
	}
	return matched(intent.Email, lang, map[string]string{
		intent.ParamAction: "search",
		intent.ParamQuery:  strings.TrimSpace(query),
	})
}

func (c *Classifier) reminder(u utterance, lang string) (intent.Intent, bool) {
	hasTime := u.has(timeWords...)
	if !u.has(reminderWords...) && !(u.has(remindWords...) && hasTime) {
		return intent.Intent{}, false
	}
	when := "in 1 hour"
	switch {
	case u.index("at") >= 0 && atWord.MatchString(u.lower):
		loc := atWord.FindStringIndex(u.lower)
		when = strings.Trim(u.lower[loc[1]:], " .,!?")
	case u.has(oclockWords...):
		when = u.lower
	}
	return matched(intent.Reminder, lang, map[string]string{
		intent.ParamText: u.raw,
		intent.ParamTime: when,
	})
}

func (c *Classifier) timer(u utterance, lang string) (intent.Intent, bool) {
	if !u.has(timerWords...) {
		return intent.Intent{}, false
	}
	duration := "5 minutes"
	if m := timerSeconds.FindStringSubmatch(u.lower); m != nil {
		duration = m[1] + " seconds"
	} else if m := timerMinutes.FindStringSubmatch(u.lower); m != nil {
		duration = m[1] + " minutes"
	} else if m := timerHours.FindStringSubmatch(u.lower); m != nil {
		duration = m[1] + " hours"
	}
	return matched(intent.Timer, lang, map[string]string{
		intent.ParamDuration: duration,
		intent.ParamLabel:    "Timer",
	})
}

func (c *Classifier) note(u utterance, lang string) (intent.Intent, bool) {
	if !u.has(noteWords...) {
		return intent.Intent{}, false
	}
	if u.has(noteRecallWords...) {
		return matched(intent.Note, lang, map[string]string{
			intent.ParamAction: "retrieve",
			intent.ParamKey:    "note",
		})
	}
	return matched(intent.Note, lang, map[string]string{
		intent.ParamAction: "store",
		intent.ParamKey:    "note",
		intent.ParamValue:  u.raw,
	})
}

func (c *Classifier) appLaunch(u utterance, lang string) (intent.Intent, bool) {
	if !u.has(launchWords...) {
		return intent.Intent{}, false
	}
	action := "open"
	if u.has(closeWords...) {
		action = "close"
	}

	var url string
	if c.urlPattern != nil {
		url = c.urlPattern.FindString(u.lower)
	}
	isSite := u.has(siteWords...)
	if url != "" || isSite {
		if url == "" {
			if m := siteName.FindStringSubmatch(u.lower); m != nil && !siteNoise[m[1]] {
				url = m[1] + ".com"
			}
		}
		params := map[string]string{
			intent.ParamAppName: c.cfg.DefaultApp,
			intent.ParamAction:  action,
		}
		if url != "" {
			if !strings.HasPrefix(url, "http") {
				url = "https://" + url
			}
			params[intent.ParamURL] = url
		}
		return matched(intent.AppLaunch, lang, params)
	}

	if name := c.fileName(u); name != "" {
		return matched(intent.FileSearch, lang, map[string]string{intent.ParamQuery: name})
	}

	app := c.cfg.DefaultApp
	for _, a := range c.apps {
		if strings.Contains(u.lower, a) {
			app = a
			break
		}
	}
	return matched(intent.AppLaunch, lang, map[string]string{
		intent.ParamAppName: app,
		intent.ParamAction:  action,
	})
}

func (c *Classifier) fileName(u utterance) string {
	if c.filePat == nil {
		return ""
	}
	return c.filePat.FindString(u.lower)
}

func (c *Classifier) media(u utterance, lang string) (intent.Intent, bool) {
	if !u.has(mediaWords...) {
		return intent.Intent{}, false
	}
	if m := volumeLevel.FindStringSubmatch(u.lower); m != nil {
		level := m[1]
		if level == "" {
			level = m[2]
		}
		return matched(intent.MediaControl, lang, map[string]string{
			intent.ParamAction:      "set_volume",
			intent.ParamVolumeLevel: level,
		})
	}
	action := "play"
	for _, a := range mediaActions {
		if u.has(a.words...) {
			action = a.action
			break
		}
	}
	return matched(intent.MediaControl, lang, map[string]string{intent.ParamAction: action})
}

func (c *Classifier) task(u utterance, lang string) (intent.Intent, bool) {
	if !u.has(taskWords...) && !u.has(completeTriggers...) && !u.has(remindWords...) {
		return intent.Intent{}, false
	}
	if u.has(completeWords...) {
		title := u.trimWords(taskLeadNoise, taskTrailNoise, taskCompleteNoise)
		return matched(intent.Task, lang, map[string]string{
			intent.ParamAction: "complete",
			intent.ParamTitle:  title,
		})
	}
	title := capitalize(u.trimWords(taskLeadNoise, taskTrailNoise, nil))
	explicitAdd := u.has(taskAddWords...)
	if title == "" || (!explicitAdd && u.has(taskListWords...)) {
		return matched(intent.Task, lang, map[string]string{intent.ParamAction: "list"})
	}
	return matched(intent.Task, lang, map[string]string{
		intent.ParamAction: "add",
		intent.ParamTitle:  title,
	})
}

func (c *Classifier) weather(u utterance, lang string) (intent.Intent, bool) {
	if !u.has(weatherWords...) {
		return intent.Intent{}, false
	}
	params := map[string]string{}
	if loc := u.after("in"); loc != "" {
		params[intent.ParamLocation] = loc
	}
	return matched(intent.Weather, lang, params)
}

func (c *Classifier) calendar(u utterance, lang string) (intent.Intent, bool) {
	if !u.has(calendarWords...) {
		return intent.Intent{}, false
	}
	if u.has(calendarNew...) && !u.has(calendarList...) {
		params := map[string]string{intent.ParamAction: "create", intent.ParamTitle: u.raw}
		if loc := atWord.FindStringIndex(u.lower); loc != nil && loc[0] <= len(u.raw) {
			params[intent.ParamTime] = strings.Trim(u.lower[loc[1]:], " .,!?")
			title := strings.TrimSpace(u.raw[:loc[0]])
			title = u.stripCalendarVerbs(title)
			if title != "" {
				params[intent.ParamTitle] = title
			}
		}
		return matched(intent.Calendar, lang, params)
	}
	return matched(intent.Calendar, lang, map[string]string{intent.ParamAction: "list"})
}

func (u utterance) stripCalendarVerbs(title string) string {
	sub := newUtterance(title)
	return capitalize(sub.trimWords(
		setOf("schedule", "book", "create", "add", "new", "set", "up", "a", "an", "the", "please"),
		setOf("on", "my", "calendar", "to", "for", "the"),
		nil,
	))
}

func (c *Classifier) math(u utterance, lang string) (intent.Intent, bool) {
	if !u.has(mathWords...) && !mathExpr.MatchString(u.lower) {
		return intent.Intent{}, false
	}
	return matched(intent.Math, lang, map[string]string{intent.ParamExpression: u.lower})
}

func (c *Classifier) systemInfo(u utterance, lang string) (intent.Intent, bool) {
	if !u.has(systemWords...) {
		return intent.Intent{}, false
	}
	query := "system"
	switch {
	case u.has("time", "samay"):
		query = "time"
	case u.has("date", "day"):
		query = "date"
	}
	return matched(intent.SystemInfo, lang, map[string]string{intent.ParamQuery: query})
}

func (c *Classifier) fileSearch(u utterance, lang string) (intent.Intent, bool) {
	name := c.fileName(u)
	if name == "" {
		return intent.Intent{}, false
	}
	return matched(intent.FileSearch, lang, map[string]string{intent.ParamQuery: name})
}
