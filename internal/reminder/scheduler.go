package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nugget/chatur/internal/events"
)

// Default timings.
const (
	DefaultInterval = 30 * time.Second
	DefaultWindow   = 30 * time.Second
)

// Speaker renders text as audio. Implementations may block for the
// length of the utterance.
type Speaker interface {
	Speak(ctx context.Context, text, language string) error
}

// Notifier shows a user-visible notification.
type Notifier interface {
	Notify(title, body string)
}

// pendingSource is the subset of [Store] a pass needs.
type pendingSource interface {
	Pending() ([]*Reminder, error)
	MarkTriggered(id string) (bool, error)
}

// SchedulerConfig holds the collaborators and timings for a Scheduler.
type SchedulerConfig struct {
	Store    pendingSource
	Speaker  Speaker  // optional
	Notifier Notifier // optional
	Bus      *events.Bus
	Logger   *slog.Logger
	// Interval between checks; zero means DefaultInterval.
	Interval time.Duration
	// Window is the due tolerance on either side of the scheduled time;
	// zero means DefaultWindow.
	Window time.Duration
	// OnFire is called once per fired reminder (metrics hook).
	OnFire func()
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Scheduler polls the store on a fixed interval and fires reminders whose
// scheduled time lies within Window of the current time. Speech for each
// fired reminder runs on its own goroutine so a pass never waits on TTS.
type Scheduler struct {
	store    pendingSource
	speaker  Speaker
	notifier Notifier
	bus      *events.Bus
	logger   *slog.Logger
	interval time.Duration
	window   time.Duration
	onFire   func()
	now      func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	running bool

	speech sync.WaitGroup
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	s := &Scheduler{
		store:    cfg.Store,
		speaker:  cfg.Speaker,
		notifier: cfg.Notifier,
		bus:      cfg.Bus,
		logger:   cfg.Logger,
		interval: cfg.Interval,
		window:   cfg.Window,
		onFire:   cfg.OnFire,
		now:      cfg.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.window <= 0 {
		s.window = DefaultWindow
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Start schedules the interval job. Calling Start on a running scheduler
// is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	c := cron.New(
		cron.WithLogger(cronLogger{s.logger}),
		cron.WithChain(cron.Recover(cronLogger{s.logger}), cron.SkipIfStillRunning(cronLogger{s.logger})),
	)
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() { s.Check() }); err != nil {
		return fmt.Errorf("schedule reminder check: %w", err)
	}
	c.Start()
	s.cron = c
	s.running = true

	s.logger.Info("reminder scheduler started", "interval", s.interval, "window", s.window)
	return nil
}

// Stop removes the interval job and waits for an in-flight pass to
// finish, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	select {
	case <-c.Stop().Done():
		s.logger.Info("reminder scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop reminder scheduler: %w", ctx.Err())
	}
}

// Run starts the scheduler, blocks until ctx is cancelled, then stops it.
// It fits the supervisor's worker signature.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Stop(stopCtx)
}

// Running reports whether the interval job is scheduled.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Check runs one pass and returns how many reminders fired. A failure on
// one reminder is logged and the pass moves on to the next.
func (s *Scheduler) Check() int {
	pending, err := s.store.Pending()
	if err != nil {
		s.logger.Error("reminder check failed", "error", err)
		return 0
	}

	now := s.now()
	fired := 0
	for _, r := range pending {
		if s.checkOne(r, now) {
			fired++
		}
	}
	if fired > 0 {
		s.logger.Debug("reminder pass complete", "pending", len(pending), "fired", fired)
	}
	return fired
}

func (s *Scheduler) checkOne(r *Reminder, now time.Time) (fired bool) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("reminder trigger panic", "id", r.ID, "error", fmt.Sprint(p))
		}
	}()

	diff := r.ScheduledTime.Sub(now)
	if diff < -s.window || diff > s.window {
		return false
	}

	claimed, err := s.store.MarkTriggered(r.ID)
	if err != nil {
		s.logger.Error("reminder mark failed", "id", r.ID, "error", err)
		return false
	}
	if !claimed {
		return false
	}

	s.logger.Info("reminder fired", "id", r.ID, "text", r.Text, "late", -diff)
	s.fire(r)
	return true
}

func (s *Scheduler) fire(r *Reminder) {
	if s.speaker != nil {
		msg := "Reminder: " + r.Text
		if r.Language == "hi" {
			msg = "रिमाइंडर: " + r.Text
		}
		s.speech.Add(1)
		go func() {
			defer s.speech.Done()
			if err := s.speaker.Speak(context.Background(), msg, r.Language); err != nil {
				s.logger.Warn("reminder speech failed", "id", r.ID, "error", err)
			}
		}()
	}
	if s.notifier != nil {
		s.notifier.Notify("Reminder", r.Text)
	}
	s.bus.Emit(events.SourceScheduler, events.KindReminderFired, map[string]any{
		"id":   r.ID,
		"text": r.Text,
	})
	if s.onFire != nil {
		s.onFire()
	}
}

// WaitSpeech blocks until every detached speech goroutine has returned.
func (s *Scheduler) WaitSpeech() {
	s.speech.Wait()
}

// cronLogger adapts slog to the cron.Logger interface. Cron's routine
// chatter goes to Debug.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
