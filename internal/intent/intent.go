// Package intent defines the structured result of classifying one user
// utterance. An Intent is produced by the classifier, read by exactly one
// handler, and discarded when the processing cycle finishes.
package intent

import (
	"encoding/json"
	"maps"
	"sort"
)

// Kind names the capability an utterance asks for.
type Kind string

// Recognized intent kinds.
const (
	Reminder     Kind = "reminder"
	Timer        Kind = "timer"
	Note         Kind = "note"
	Question     Kind = "question"
	AppLaunch    Kind = "app_launch"
	MediaControl Kind = "media_control"
	FileSearch   Kind = "file_search"
	Weather      Kind = "weather"
	SystemInfo   Kind = "system_info"
	Math         Kind = "math"
	Calendar     Kind = "calendar"
	Email        Kind = "email"
	Task         Kind = "task"
	Unknown      Kind = "unknown"
)

// Kinds lists every kind in declaration order.
var Kinds = []Kind{
	Reminder, Timer, Note, Question, AppLaunch, MediaControl, FileSearch,
	Weather, SystemInfo, Math, Calendar, Email, Task, Unknown,
}

// Valid reports whether k is one of the recognized kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Supported languages.
const (
	English = "en"
	Hindi   = "hi"
)

// Parameter keys shared between the classifier and the handlers.
const (
	ParamAction      = "action"
	ParamText        = "text"
	ParamTime        = "time"
	ParamDuration    = "duration"
	ParamLabel       = "label"
	ParamKey         = "key"
	ParamValue       = "value"
	ParamAppName     = "app_name"
	ParamURL         = "url"
	ParamQuery       = "query"
	ParamVolumeLevel = "volume_level"
	ParamQuestion    = "question"
	ParamTitle       = "title"
	ParamExpression  = "expression"
	ParamLocation    = "location"
)

// Intent is an immutable classification result. Construct it with New;
// the parameter map is copied on the way in and never exposed for
// mutation.
type Intent struct {
	kind             Kind
	language         string
	responseLanguage string
	confidence       float64
	params           map[string]string
}

// New builds an intent. Confidence is clamped into [0, 1]. An empty
// language becomes English, and the response language defaults to the
// detected language.
func New(kind Kind, language string, params map[string]string, confidence float64) Intent {
	if language == "" {
		language = English
	}
	switch {
	case confidence < 0:
		confidence = 0
	case confidence > 1:
		confidence = 1
	}
	return Intent{
		kind:             kind,
		language:         language,
		responseLanguage: language,
		confidence:       confidence,
		params:           maps.Clone(params),
	}
}

// Unrecognized is the intent produced when classification fails.
func Unrecognized(language string) Intent {
	return New(Unknown, language, nil, 0)
}

// Kind returns the intent kind.
func (i Intent) Kind() Kind { return i.kind }

// Language returns the detected language of the utterance.
func (i Intent) Language() string { return i.language }

// ResponseLanguage returns the language the reply should be rendered in.
func (i Intent) ResponseLanguage() string { return i.responseLanguage }

// Confidence returns the classification confidence in [0, 1].
func (i Intent) Confidence() float64 { return i.confidence }

// Param returns the named parameter, or "" when absent.
func (i Intent) Param(key string) string { return i.params[key] }

// Has reports whether the named parameter is present.
func (i Intent) Has(key string) bool {
	_, ok := i.params[key]
	return ok
}

// Params returns a copy of the parameter map.
func (i Intent) Params() map[string]string { return maps.Clone(i.params) }

// Keys returns the parameter names in sorted order.
func (i Intent) Keys() []string {
	keys := make([]string, 0, len(i.params))
	for k := range i.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type wireIntent struct {
	Kind             Kind              `json:"kind"`
	Language         string            `json:"detected_language"`
	ResponseLanguage string            `json:"response_language"`
	Confidence       float64           `json:"confidence"`
	Parameters       map[string]string `json:"parameters"`
}

// MarshalJSON renders the intent for the classify subcommand and the
// API debug surface.
func (i Intent) MarshalJSON() ([]byte, error) {
	params := i.params
	if params == nil {
		params = map[string]string{}
	}
	return json.Marshal(wireIntent{
		Kind:             i.kind,
		Language:         i.language,
		ResponseLanguage: i.responseLanguage,
		Confidence:       i.confidence,
		Parameters:       params,
	})
}
