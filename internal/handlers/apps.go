package handlers

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/nugget/chatur/internal/apps"
	"github.com/nugget/chatur/internal/desktop"
	"github.com/nugget/chatur/internal/intent"
)

// System is the OS binding used by the app, file and media handlers.
// [desktop.Runner] implements it.
type System interface {
	Start(name string, args ...string) error
	Open(target string) error
	Kill(ctx context.Context, process string) (bool, error)
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// AppStore resolves spoken app names.
type AppStore interface {
	Lookup(name string) (*apps.App, error)
}

// Apps opens and closes applications and opens URLs in the browser.
type Apps struct {
	handles
	store   AppStore
	sys     System
	browser string
	logger  *slog.Logger
}

// NewApps creates the app handler. browser names the registry entry
// used for URLs; an unknown browser falls back to the system opener.
func NewApps(store AppStore, sys System, browser string, logger *slog.Logger) *Apps {
	if logger == nil {
		logger = slog.Default()
	}
	return &Apps{handles: handles(intent.AppLaunch), store: store, sys: sys, browser: browser, logger: logger}
}

// Handle implements [Handler].
func (h *Apps) Handle(ctx context.Context, in intent.Intent) (string, error) {
	lang := in.ResponseLanguage()
	closing := in.Param(intent.ParamAction) == "close"

	if url := in.Param(intent.ParamURL); url != "" {
		if closing {
			return h.close(ctx, h.browser, lang)
		}
		if err := h.openURL(url); err != nil {
			return "", fail(nil, "open "+url, err)
		}
		return say(lang, "Opening "+url, url+" खोल रहा हूं"), nil
	}

	name := strings.TrimSpace(in.Param(intent.ParamAppName))
	if name == "" {
		return say(lang, "Which app?", "कौन सा ऐप?"), nil
	}
	if closing {
		return h.close(ctx, name, lang)
	}

	app, err := h.lookup(name)
	if err != nil {
		return "", err
	}
	if err := h.launch(app); err != nil {
		return "", fail(nil, "open "+app.DisplayName, err)
	}
	return say(lang,
		"Done: Opening "+app.DisplayName,
		app.DisplayName+" खोल रहा हूं"), nil
}

func (h *Apps) lookup(name string) (*apps.App, error) {
	app, err := h.store.Lookup(name)
	if err != nil {
		return nil, fail(nil, "look up "+name, err)
	}
	if app == nil {
		return nil, fail(ErrNotFound, name, nil)
	}
	return app, nil
}

func (h *Apps) launch(app *apps.App) error {
	if app.Type == apps.TypeURL {
		return h.openURL(app.Command)
	}
	name, args := desktop.Split(app.Command)
	if name == "" {
		return fail(ErrUnavailable, app.DisplayName, nil)
	}
	return h.sys.Start(name, args...)
}

// openURL prefers the configured browser so "open youtube.com" behaves
// the same as "open youtube.com in brave".
func (h *Apps) openURL(url string) error {
	if h.browser != "" {
		if b, err := h.store.Lookup(h.browser); err == nil && b != nil && b.Type == apps.TypeExec {
			if name, args := desktop.Split(b.Command); name != "" {
				return h.sys.Start(name, append(args, url)...)
			}
		}
	}
	return h.sys.Open(url)
}

func (h *Apps) close(ctx context.Context, name, lang string) (string, error) {
	app, err := h.lookup(name)
	if err != nil {
		return "", err
	}
	if app.Type == apps.TypeURL {
		return "", fail(ErrUnsupported, "close "+app.DisplayName, nil)
	}

	process := app.Process
	if process == "" {
		cmd, _ := desktop.Split(app.Command)
		process = filepath.Base(cmd)
	}
	killed, err := h.sys.Kill(ctx, process)
	if err != nil {
		return "", fail(nil, "close "+app.DisplayName, err)
	}
	if !killed {
		return say(lang,
			app.DisplayName+" isn't running",
			app.DisplayName+" चल नहीं रहा है"), nil
	}
	h.logger.Info("closed app", "app", app.Name, "process", process)
	return say(lang,
		"Done: Closed "+app.DisplayName,
		app.DisplayName+" बंद कर दिया"), nil
}
