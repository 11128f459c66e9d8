package handlers

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers wrap failures in a [Failure] carrying one of
// these so callers can match with errors.Is.
var (
	// ErrUnavailable means a collaborator is not configured or not
	// reachable (missing credentials, no backend, no such program).
	ErrUnavailable = errors.New("unavailable")
	// ErrTransient means a collaborator failed in a way that may succeed
	// later (timeouts, rate limits, server errors).
	ErrTransient = errors.New("transient failure")
	// ErrNotFound means the thing the user named does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput means the request could not be acted on as given.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupported means the request is understood but not possible.
	ErrUnsupported = errors.New("unsupported")
)

// Failure is a classified handler error. What is the subject of the
// failure as it should be spoken: the missing item for ErrNotFound, the
// missing capability for ErrUnavailable, and otherwise the action that
// failed ("open Firefox", "set the volume").
type Failure struct {
	Kind error
	What string
	Err  error
}

func (f *Failure) Error() string {
	kind := "failed"
	if f.Kind != nil {
		kind = f.Kind.Error()
	}
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.What, kind, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.What, kind)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (f *Failure) Unwrap() []error {
	var errs []error
	if f.Kind != nil {
		errs = append(errs, f.Kind)
	}
	if f.Err != nil {
		errs = append(errs, f.Err)
	}
	return errs
}

func fail(kind error, what string, err error) error {
	return &Failure{Kind: kind, What: what, Err: err}
}

// KindName labels err for logs and metrics.
func KindName(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	default:
		return "internal"
	}
}

// Fallback replies used when nothing more specific applies.
const (
	genericEN = "Sorry, something went wrong"
	genericHI = "माफ़ करें, कुछ गड़बड़ हो गई।"
)

// Describe turns any error into the sentence spoken to the user. It
// never exposes the underlying error text.
func Describe(err error, lang string) string {
	if err == nil {
		return ""
	}
	var f *Failure
	if !errors.As(err, &f) || f.What == "" {
		return say(lang, genericEN, genericHI)
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return say(lang,
			"I couldn't find "+f.What,
			f.What+" नहीं मिला")
	case errors.Is(err, ErrUnavailable):
		return say(lang,
			fmt.Sprintf("Sorry, %s is not available", f.What),
			fmt.Sprintf("माफ़ करें, %s उपलब्ध नहीं है", f.What))
	case errors.Is(err, ErrTransient):
		return say(lang,
			fmt.Sprintf("Sorry, I'm having trouble %s right now. Please try again later.", f.What),
			"माफ़ करें, अभी दिक्कत हो रही है। कृपया बाद में कोशिश करें।")
	default:
		return say(lang,
			"Sorry, I couldn't "+f.What,
			fmt.Sprintf("माफ़ करें, %s में समस्या हुई", f.What))
	}
}

// UnknownReply is the fixed response for intents no handler accepts.
func UnknownReply(lang string) string {
	return say(lang,
		"I didn't understand that. Could you please repeat?",
		"मुझे समझ नहीं आया। कृपया दोबारा कहें।")
}
