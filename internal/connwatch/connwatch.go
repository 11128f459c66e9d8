// Package connwatch tracks whether the assistant's network
// collaborators are reachable: the language model behind question
// answering and the speech-to-text endpoint behind the microphone.
// Neither is required to start; handlers degrade while a dependency is
// down and /health reports which one.
//
// Each Watcher probes one dependency in two phases:
//  1. Startup: exponential backoff (2s, 4s, 8s, ... capped at 60s)
//  2. Background: periodic polling with state-transition callbacks
package connwatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nugget/chatur/internal/events"
	"github.com/nugget/chatur/internal/httpkit"
)

// ProbeFunc checks whether a dependency is reachable. Return nil if
// healthy.
type ProbeFunc func(ctx context.Context) error

// BackoffConfig controls startup retries and background polling.
type BackoffConfig struct {
	// InitialDelay is the delay before the first retry (default 2s).
	InitialDelay time.Duration
	// MaxDelay caps backoff growth (default 60s).
	MaxDelay time.Duration
	// Multiplier scales the delay after each retry (default 2.0).
	Multiplier float64
	// MaxRetries bounds the startup probe attempts (default 10).
	MaxRetries int
	// PollInterval is the background check interval (default 60s).
	PollInterval time.Duration
	// ProbeTimeout limits each probe call (default 10s).
	ProbeTimeout time.Duration
}

// DefaultBackoffConfig returns 2s, 4s, 8s, 16s, 32s, 60s (capped) with
// 10 startup attempts and 60-second background polling.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 2 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		MaxRetries:   10,
		PollInterval: 60 * time.Second,
		ProbeTimeout: 10 * time.Second,
	}
}

func (c *BackoffConfig) applyDefaults() {
	d := DefaultBackoffConfig()
	if c.InitialDelay <= 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.Multiplier <= 0 {
		c.Multiplier = d.Multiplier
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = d.ProbeTimeout
	}
}

// startup builds the retry schedule for phase one. Jitter is off so the
// delays match the documented sequence.
func (c BackoffConfig) startup() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialDelay
	b.MaxInterval = c.MaxDelay
	b.Multiplier = c.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(c.MaxRetries-1))
}

// WatcherConfig configures one dependency watcher.
type WatcherConfig struct {
	// Name identifies the dependency in logs, events and /health
	// ("ollama", "stt").
	Name  string
	Probe ProbeFunc
	// Backoff zero fields take DefaultBackoffConfig values.
	Backoff BackoffConfig

	// OnReady runs on its own goroutine when the dependency becomes
	// reachable. Optional.
	OnReady func()
	// OnDown runs on its own goroutine when a reachable dependency
	// stops answering. Optional.
	OnDown func(err error)

	// Bus receives a dependency event on every transition. Optional.
	Bus    *events.Bus
	Logger *slog.Logger
}

// ServiceStatus is the health of one dependency as /health reports it.
type ServiceStatus struct {
	Name      string    `json:"name"`
	Ready     bool      `json:"ready"`
	LastCheck time.Time `json:"last_check"`
	LastError string    `json:"last_error,omitempty"`
}

// Watcher monitors one dependency.
type Watcher struct {
	config WatcherConfig
	ready  atomic.Bool
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	lastErr   error
	lastCheck time.Time
}

// IsReady reports whether the dependency answered its last probe.
func (w *Watcher) IsReady() bool {
	return w.ready.Load()
}

// LastError returns the most recent probe error, or nil if healthy.
func (w *Watcher) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Status returns the current health snapshot.
func (w *Watcher) Status() ServiceStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := ServiceStatus{
		Name:      w.config.Name,
		Ready:     w.ready.Load(),
		LastCheck: w.lastCheck,
	}
	if w.lastErr != nil {
		s.LastError = w.lastErr.Error()
	}
	return s
}

// Wait blocks until the watcher goroutine exits.
func (w *Watcher) Wait() {
	<-w.done
}

// Stop cancels the watcher and waits for it.
func (w *Watcher) Stop() {
	w.cancel()
	<-w.done
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	cfg := w.config.Backoff
	logger := w.config.Logger

	attempts := 0
	err := backoff.RetryNotify(
		func() error {
			attempts++
			err := w.probe(ctx)
			w.recordResult(err)
			return err
		},
		backoff.WithContext(cfg.startup(), ctx),
		func(err error, next time.Duration) {
			logger.Debug("startup probe failed, retrying",
				"dependency", w.config.Name,
				"attempt", attempts,
				"next_delay", next,
				"error", err,
			)
		},
	)
	if ctx.Err() != nil {
		return
	}
	if err == nil {
		logger.Info("dependency reachable", "dependency", w.config.Name, "after_attempts", attempts)
		w.transition(true, nil)
	} else {
		logger.Info("dependency unreachable at startup, polling in background",
			"dependency", w.config.Name,
			"attempts", attempts,
			"error", err,
		)
		w.publish(false, err)
	}

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := w.probe(ctx)
			w.recordResult(err)
			wasReady := w.ready.Load()
			switch {
			case wasReady && err != nil:
				logger.Info("dependency became unreachable", "dependency", w.config.Name, "error", err)
				w.transition(false, err)
			case !wasReady && err == nil:
				logger.Info("dependency recovered", "dependency", w.config.Name)
				w.transition(true, nil)
			case !wasReady:
				logger.Debug("dependency still unreachable", "dependency", w.config.Name, "error", err)
			}
		}
	}
}

func (w *Watcher) transition(ready bool, err error) {
	w.ready.Store(ready)
	w.publish(ready, err)
	if ready && w.config.OnReady != nil {
		go w.config.OnReady()
	}
	if !ready && w.config.OnDown != nil {
		go w.config.OnDown(err)
	}
}

func (w *Watcher) publish(ready bool, err error) {
	data := map[string]any{"name": w.config.Name, "ready": ready}
	if err != nil {
		data["error"] = err.Error()
	}
	w.config.Bus.Emit(events.SourceConnwatch, events.KindDependency, data)
}

func (w *Watcher) probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, w.config.Backoff.ProbeTimeout)
	defer cancel()
	return w.config.Probe(probeCtx)
}

func (w *Watcher) recordResult(err error) {
	w.mu.Lock()
	w.lastErr = err
	w.lastCheck = time.Now()
	w.mu.Unlock()
}

// HTTPProbe reports a dependency healthy when a GET of url answers with
// anything below 500. Speech endpoints usually only accept POST, so a
// 404 or 405 still proves the server is up.
func HTTPProbe(client *http.Client, url string) ProbeFunc {
	if client == nil {
		client = httpkit.NewClient(httpkit.WithTimeout(10 * time.Second))
	}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		httpkit.DrainAndClose(resp.Body, 4096)
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%s: HTTP %d", url, resp.StatusCode)
		}
		return nil
	}
}

// Manager owns the watchers for one process.
type Manager struct {
	mu       sync.RWMutex
	watchers map[string]*Watcher
	logger   *slog.Logger
}

// NewManager creates an empty manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		watchers: make(map[string]*Watcher),
		logger:   logger,
	}
}

// Watch registers and starts a watcher that runs until ctx is cancelled
// or Stop is called. An empty Name or nil Probe is a programming error
// and panics.
func (m *Manager) Watch(ctx context.Context, cfg WatcherConfig) *Watcher {
	if cfg.Name == "" {
		panic("connwatch: WatcherConfig.Name must not be empty")
	}
	if cfg.Probe == nil {
		panic("connwatch: WatcherConfig.Probe must not be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = m.logger
	}
	cfg.Backoff.applyDefaults()

	watchCtx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		config: cfg,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go w.run(watchCtx)

	m.mu.Lock()
	m.watchers[cfg.Name] = w
	m.mu.Unlock()
	return w
}

// Watcher returns the named watcher, or nil.
func (m *Manager) Watcher(name string) *Watcher {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.watchers[name]
}

// Status returns the health of every watched dependency.
func (m *Manager) Status() map[string]ServiceStatus {
	if m == nil {
		return map[string]ServiceStatus{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	status := make(map[string]ServiceStatus, len(m.watchers))
	for name, w := range m.watchers {
		status[name] = w.Status()
	}
	return status
}

// Stop shuts down all watchers and waits for them.
func (m *Manager) Stop() {
	m.mu.RLock()
	watchers := make([]*Watcher, 0, len(m.watchers))
	for _, w := range m.watchers {
		watchers = append(watchers, w)
	}
	m.mu.RUnlock()
	for _, w := range watchers {
		w.Stop()
	}
}
