package mqtt

import (
	"sync"
	"time"
)

// DailyCounter counts processed commands and resets at local midnight.
// It is safe for concurrent use.
type DailyCounter struct {
	mu       sync.Mutex
	total    int64
	failures int64
	day      int // day-of-year of last reset
	loc      *time.Location
	now      func() time.Time
}

// NewDailyCounter uses loc for midnight detection; nil means
// [time.Local].
func NewDailyCounter(loc *time.Location) *DailyCounter {
	if loc == nil {
		loc = time.Local
	}
	d := &DailyCounter{loc: loc, now: time.Now}
	d.day = d.now().In(loc).YearDay()
	return d
}

// Record counts one command. failed marks an apology reply.
func (d *DailyCounter) Record(failed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.maybeReset()
	d.total++
	if failed {
		d.failures++
	}
}

// Snapshot returns today's totals.
func (d *DailyCounter) Snapshot() (total, failures int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.maybeReset()
	return d.total, d.failures
}

// maybeReset must be called with d.mu held.
func (d *DailyCounter) maybeReset() {
	if today := d.now().In(d.loc).YearDay(); today != d.day {
		d.total = 0
		d.failures = 0
		d.day = today
	}
}
