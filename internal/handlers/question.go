package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/nugget/chatur/internal/intent"
	"github.com/nugget/chatur/internal/qa"
)

// Answerer answers open-ended questions.
type Answerer interface {
	Answer(ctx context.Context, question, language string) (string, error)
}

// Questions forwards anything the rules did not match to the language
// model.
type Questions struct {
	handles
	answerer Answerer
}

// NewQuestions creates the question handler. A nil answerer makes every
// question report the backend as unavailable.
func NewQuestions(a Answerer) *Questions {
	return &Questions{handles: handles(intent.Question), answerer: a}
}

// Handle implements [Handler].
func (h *Questions) Handle(ctx context.Context, in intent.Intent) (string, error) {
	lang := in.ResponseLanguage()
	q := strings.TrimSpace(in.Param(intent.ParamQuestion))
	if q == "" {
		return say(lang, "What would you like to know?", "आप क्या जानना चाहते हैं?"), nil
	}
	if h.answerer == nil {
		return "", fail(ErrUnavailable, "question answering", qa.ErrNoBackend)
	}

	answer, err := h.answerer.Answer(ctx, q, lang)
	switch {
	case errors.Is(err, qa.ErrNoBackend):
		return "", fail(ErrUnavailable, "question answering", err)
	case err != nil:
		return "", fail(ErrTransient, "answering that", err)
	case answer == "":
		return "", fail(ErrTransient, "answering that", errors.New("empty answer"))
	}
	return answer, nil
}
