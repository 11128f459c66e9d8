// Package notify shows user-visible notifications for fired reminders
// and finished timers.
package notify

import (
	"context"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/nugget/chatur/internal/events"
)

// Notifier shows a notification. Implementations must not block the
// caller for long and must be safe to call from any goroutine.
type Notifier interface {
	Notify(title, body string)
}

// Desktop runs notify-send (or a compatible program) in the background.
type Desktop struct {
	command string
	appName string
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewDesktop returns a notifier that runs command; empty means
// "notify-send".
func NewDesktop(command, appName string, logger *slog.Logger) *Desktop {
	if command == "" {
		command = "notify-send"
	}
	if appName == "" {
		appName = "Chatur"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Desktop{command: command, appName: appName, timeout: 5 * time.Second, logger: logger}
}

// Notify implements [Notifier]. It returns before the program exits.
func (d *Desktop) Notify(title, body string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		cmd := exec.CommandContext(ctx, d.command, "--app-name="+d.appName, title, body)
		if err := cmd.Run(); err != nil {
			d.logger.Debug("desktop notification failed", "command", d.command, "error", err)
		}
	}()
}

// Wait blocks until every in-flight notification program has exited.
func (d *Desktop) Wait() {
	d.wg.Wait()
}

// Bus publishes notifications as events so the WebSocket and MQTT
// surfaces can show them.
type Bus struct {
	bus    *events.Bus
	source string
}

// NewBus returns a notifier that publishes on bus with the given source.
func NewBus(bus *events.Bus, source string) *Bus {
	return &Bus{bus: bus, source: source}
}

// Notify implements [Notifier].
func (b *Bus) Notify(title, body string) {
	b.bus.Emit(b.source, events.KindNotification, map[string]any{
		"title": title,
		"body":  body,
	})
}

// Multi fans out to several notifiers. Nil entries are skipped.
type Multi []Notifier

// Notify implements [Notifier].
func (m Multi) Notify(title, body string) {
	for _, n := range m {
		if n != nil {
			n.Notify(title, body)
		}
	}
}
