package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/nugget/chatur/internal/intent"
)

// NoteStore is a key/value note store. Values are stored and returned
// verbatim.
type NoteStore interface {
	Put(key, value string) error
	Get(key string) (string, bool, error)
}

// Notes stores and recalls free-form notes.
type Notes struct {
	handles
	store NoteStore
}

// NewNotes creates the note handler.
func NewNotes(store NoteStore) *Notes {
	return &Notes{handles: handles(intent.Note), store: store}
}

// Handle implements [Handler].
func (h *Notes) Handle(_ context.Context, in intent.Intent) (string, error) {
	lang := in.ResponseLanguage()
	key := strings.TrimSpace(in.Param(intent.ParamKey))
	if key == "" {
		key = "note"
	}

	switch in.Param(intent.ParamAction) {
	case "store":
		value := in.Param(intent.ParamValue)
		if value == "" {
			break
		}
		if err := h.store.Put(key, value); err != nil {
			return "", fail(nil, "save that note", err)
		}
		return say(lang,
			"Got it, I'll remember that "+key,
			"याद रख लिया: "+key), nil

	case "retrieve":
		value, ok, err := h.store.Get(key)
		if err != nil {
			return "", fail(nil, "look up that note", err)
		}
		if !ok {
			return say(lang,
				fmt.Sprintf("I don't remember anything about %s", key),
				fmt.Sprintf("मुझे %s याद नहीं है", key)), nil
		}
		return value, nil
	}

	return say(lang,
		"Please tell me what to remember or what you want to know",
		"कृपया स्पष्ट रूप से बताएं"), nil
}
