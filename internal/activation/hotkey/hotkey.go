// Package hotkey is the global keyboard shortcut activation source. It
// lives apart from package activation because registering a system-wide
// key needs cgo and a windowing system (X11 on Linux); builds that never
// select the hotkey source do not pay for it.
//
// On macOS the key events are delivered on the main thread, so the
// process must hand its main goroutine to mainthread.Init.
package hotkey

import (
	"context"
	"fmt"
	"log/slog"

	"golang.design/x/hotkey"

	"github.com/nugget/chatur/internal/activation"
)

var keys = map[string]hotkey.Key{
	"space": hotkey.KeySpace,
	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD,
	"e": hotkey.KeyE, "f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH,
	"i": hotkey.KeyI, "j": hotkey.KeyJ, "k": hotkey.KeyK, "l": hotkey.KeyL,
	"m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO, "p": hotkey.KeyP,
	"q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX,
	"y": hotkey.KeyY, "z": hotkey.KeyZ,
	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3,
	"4": hotkey.Key4, "5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7,
	"8": hotkey.Key8, "9": hotkey.Key9,
	"f1": hotkey.KeyF1, "f2": hotkey.KeyF2, "f3": hotkey.KeyF3, "f4": hotkey.KeyF4,
	"f5": hotkey.KeyF5, "f6": hotkey.KeyF6, "f7": hotkey.KeyF7, "f8": hotkey.KeyF8,
	"f9": hotkey.KeyF9, "f10": hotkey.KeyF10, "f11": hotkey.KeyF11, "f12": hotkey.KeyF12,
}

// Source triggers a cycle each time the combination is pressed.
type Source struct {
	combo   activation.Hotkey
	trigger activation.Trigger
	logger  *slog.Logger
}

// New parses combo (for example "ctrl+space") and builds the source.
func New(combo string, trigger activation.Trigger, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	hk, err := activation.ParseHotkey(combo)
	if err != nil {
		return nil, err
	}
	return &Source{combo: hk, trigger: trigger, logger: logger}, nil
}

// Run registers the hotkey and blocks until ctx is cancelled and every
// cycle it started has finished. Each press starts a cycle on its own
// goroutine; presses during a cycle are dropped by the cycle.
func (s *Source) Run(ctx context.Context) error {
	mods := make([]hotkey.Modifier, 0, len(s.combo.Modifiers))
	for _, name := range s.combo.Modifiers {
		m, ok := modifiers[name]
		if !ok {
			return fmt.Errorf("hotkey %s: modifier %q not supported on this platform", s.combo, name)
		}
		mods = append(mods, m)
	}
	key, ok := keys[s.combo.Key]
	if !ok {
		return fmt.Errorf("hotkey %s: key %q not supported", s.combo, s.combo.Key)
	}

	hk := hotkey.New(mods, key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("register hotkey %s: %w", s.combo, err)
	}
	defer func() {
		if err := hk.Unregister(); err != nil {
			s.logger.Warn("failed to unregister hotkey", "hotkey", s.combo.String(), "error", err)
		}
	}()
	s.logger.Info("hotkey activation listening", "hotkey", s.combo.String())

	done := make(chan struct{})
	defer close(done)
	presses := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case <-hk.Keydown():
				select {
				case presses <- struct{}{}:
				default:
				}
			case <-done:
				return
			}
		}
	}()

	running := activation.Inflight{Logger: s.logger}
	defer running.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-presses:
			s.logger.Info("activation hotkey pressed", "hotkey", s.combo.String())
			running.Fire(ctx, s.trigger, "hotkey")
		}
	}
}
