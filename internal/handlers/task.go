package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/nugget/chatur/internal/intent"
	"github.com/nugget/chatur/internal/tasks"
)

const maxListedTasks = 10

// TaskStore is the local to-do list.
type TaskStore interface {
	Add(title string) (*tasks.Task, error)
	Pending() ([]*tasks.Task, error)
	Complete(id string) (bool, error)
	FindByTitle(query string) (*tasks.Task, error)
}

// Tasks adds, lists and completes to-do items.
type Tasks struct {
	handles
	store TaskStore
}

// NewTasks creates the task handler.
func NewTasks(store TaskStore) *Tasks {
	return &Tasks{handles: handles(intent.Task), store: store}
}

// Handle implements [Handler].
func (h *Tasks) Handle(_ context.Context, in intent.Intent) (string, error) {
	lang := in.ResponseLanguage()
	title := strings.TrimSpace(in.Param(intent.ParamTitle))

	switch action := in.Param(intent.ParamAction); action {
	case "", "add":
		if title == "" {
			return say(lang, "What should I add to your list?", "सूची में क्या जोड़ूं?"), nil
		}
		t, err := h.store.Add(title)
		if err != nil {
			return "", fail(nil, "add that task", err)
		}
		return say(lang,
			fmt.Sprintf("Added '%s' to your tasks.", t.Title),
			fmt.Sprintf("'%s' आपके कामों में जोड़ दिया।", t.Title)), nil

	case "list":
		pending, err := h.store.Pending()
		if err != nil {
			return "", fail(nil, "read your task list", err)
		}
		if len(pending) == 0 {
			return say(lang, "You have no pending tasks.", "आपका कोई काम बाकी नहीं है।"), nil
		}
		var b strings.Builder
		b.WriteString(say(lang, "Here are your tasks:", "आपके काम:"))
		for i, t := range pending {
			if i == maxListedTasks {
				break
			}
			b.WriteString("\n- " + t.Title)
		}
		return b.String(), nil

	case "complete":
		if title == "" {
			return "Which task should I complete?", nil
		}
		t, err := h.store.FindByTitle(title)
		if err != nil {
			return "", fail(nil, "read your task list", err)
		}
		if t == nil {
			return "", fail(ErrNotFound, fmt.Sprintf("a task named '%s'", title), nil)
		}
		if _, err := h.store.Complete(t.ID); err != nil {
			return "", fail(nil, "complete that task", err)
		}
		return say(lang,
			"Completed task: "+t.Title,
			"काम पूरा हुआ: "+t.Title), nil

	default:
		return "", fail(ErrUnsupported, action+" tasks", nil)
	}
}
