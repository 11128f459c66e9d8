package handlers

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/nugget/chatur/internal/buildinfo"
	"github.com/nugget/chatur/internal/intent"
)

// SystemInfo answers "what time is it", "what's the date" and general
// questions about the machine and the assistant process.
type SystemInfo struct {
	handles
	now func() time.Time
}

// NewSystemInfo creates the system information handler.
func NewSystemInfo() *SystemInfo {
	return &SystemInfo{handles: handles(intent.SystemInfo), now: time.Now}
}

// Handle implements [Handler].
func (h *SystemInfo) Handle(_ context.Context, in intent.Intent) (string, error) {
	lang := in.ResponseLanguage()
	now := h.now()

	switch in.Param(intent.ParamQuery) {
	case "time":
		return say(lang,
			"It's "+now.Format("03:04 PM"),
			"अभी "+now.Format("03:04 PM")+" बजे हैं"), nil
	case "date":
		return say(lang,
			"Today is "+now.Format("Monday, January 02, 2006"),
			"आज "+now.Format("Monday, January 02, 2006")+" है"), nil
	case "memory":
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		return fmt.Sprintf("I'm using %.1f MB of memory across %d goroutines",
			float64(ms.Alloc)/(1<<20), runtime.NumGoroutine()), nil
	case "uptime":
		return "I've been running for " + humanDuration(buildinfo.Uptime()), nil
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return fmt.Sprintf("You're running %s on %s architecture with %d CPUs. Chatur %s has been up for %s and is using %.1f MB of memory.",
		runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), buildinfo.Version,
		humanDuration(buildinfo.Uptime()), float64(ms.Alloc)/(1<<20)), nil
}

// humanDuration renders d in the largest two units: "3 hours and 5
// minutes", "42 seconds".
func humanDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	switch {
	case h > 0 && m > 0:
		return plural(h, "hour") + " and " + plural(m, "minute")
	case h > 0:
		return plural(h, "hour")
	case m > 0:
		return plural(m, "minute")
	default:
		return plural(s, "second")
	}
}
