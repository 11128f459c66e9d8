// Package activation holds the triggers that start an interaction
// cycle: a console line reader, a wake-word event stream and (in the
// hotkey subpackage) a global keyboard shortcut. Exactly one runs at a
// time, selected by configuration, and all of them report through a
// [Trigger].
package activation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

// Trigger starts one interaction cycle and reports whether it ran. It
// is [assistant.Cycle.Activate] in production.
type Trigger func(ctx context.Context) bool

// Source is a running activation trigger. Run blocks until ctx is
// cancelled or the source fails.
type Source interface {
	Run(ctx context.Context) error
}

// Inflight runs triggers on their own goroutines so a source keeps
// draining its input while a cycle is in progress. Overlapping triggers
// are rejected by the cycle itself. The zero value is ready to use; a
// source calls Wait before Run returns.
type Inflight struct {
	wg     sync.WaitGroup
	Logger *slog.Logger
}

// Fire runs trigger on a tracked goroutine.
func (f *Inflight) Fire(ctx context.Context, trigger Trigger, source string) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		if !trigger(ctx) && f.Logger != nil {
			f.Logger.Debug("activation ignored", "source", source)
		}
	}()
}

// Wait blocks until every fired trigger has returned.
func (f *Inflight) Wait() { f.wg.Wait() }

// Hotkey is a parsed key combination such as "ctrl+space".
type Hotkey struct {
	Modifiers []string
	Key       string
}

func (h Hotkey) String() string {
	return strings.Join(append(append([]string(nil), h.Modifiers...), h.Key), "+")
}

var modifierNames = map[string]string{
	"ctrl":    "ctrl",
	"control": "ctrl",
	"shift":   "shift",
	"alt":     "alt",
	"option":  "alt",
	"super":   "super",
	"cmd":     "super",
	"win":     "super",
}

// ParseHotkey parses a "+"-separated combination. Modifier names are
// normalized (control becomes ctrl, cmd and win become super); the key
// must be a letter, a digit, space or f1 through f12.
func ParseHotkey(s string) (Hotkey, error) {
	parts := strings.Split(strings.ToLower(strings.ReplaceAll(s, " ", "")), "+")
	if len(parts) < 2 {
		return Hotkey{}, fmt.Errorf("hotkey %q: need at least one modifier and a key", s)
	}

	var hk Hotkey
	seen := map[string]bool{}
	for _, p := range parts[:len(parts)-1] {
		mod, ok := modifierNames[p]
		if !ok {
			return Hotkey{}, fmt.Errorf("hotkey %q: unknown modifier %q", s, p)
		}
		if !seen[mod] {
			seen[mod] = true
			hk.Modifiers = append(hk.Modifiers, mod)
		}
	}

	key := parts[len(parts)-1]
	if !validKey(key) {
		return Hotkey{}, fmt.Errorf("hotkey %q: unsupported key %q", s, key)
	}
	hk.Key = key
	return hk, nil
}

func validKey(k string) bool {
	switch {
	case k == "space":
		return true
	case len(k) == 1:
		return (k[0] >= 'a' && k[0] <= 'z') || (k[0] >= '0' && k[0] <= '9')
	case len(k) >= 2 && k[0] == 'f':
		n, err := strconv.Atoi(k[1:])
		return err == nil && k[1] >= '1' && k[1] <= '9' && n <= 12
	}
	return false
}
