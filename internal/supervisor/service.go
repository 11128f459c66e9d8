// Package supervisor runs a background loop under a start, stop and
// restart lifecycle, and optionally restarts it after a crash.
//
// [Service] is the lifecycle itself. [Managed] adds a command queue
// consumed by a control loop, so hosts (the tray, the HTTP API, MQTT)
// never call into the lifecycle directly.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nugget/chatur/internal/events"
)

// RunFunc is a supervised loop. It must return promptly once ctx is
// cancelled. Returning nil or the context's error is a clean exit; any
// other error is recorded as a crash.
type RunFunc func(ctx context.Context) error

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// Name identifies the service in logs and events.
	Name string
	Run  RunFunc
	// RestartPause separates stop and start in Restart (default 500ms).
	RestartPause time.Duration
	Bus          *events.Bus
	Logger       *slog.Logger
}

// Service is safe for concurrent use.
type Service struct {
	name         string
	runFn        RunFunc
	restartPause time.Duration
	bus          *events.Bus
	logger       *slog.Logger

	mu      sync.Mutex
	current *worker
	err     error
}

// worker is one goroutine's lifetime. A worker that outlives a timed
// out Stop cannot clobber the state of its successor.
type worker struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a stopped service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = "service"
	}
	if cfg.RestartPause <= 0 {
		cfg.RestartPause = 500 * time.Millisecond
	}
	return &Service{
		name:         cfg.Name,
		runFn:        cfg.Run,
		restartPause: cfg.RestartPause,
		bus:          cfg.Bus,
		logger:       cfg.Logger.With("service", cfg.Name),
	}
}

// Name returns the configured service name.
func (s *Service) Name() string { return s.name }

// Start launches the loop and returns immediately. It reports false,
// without spawning anything, when the service is already running.
func (s *Service) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.logger.Warn("service already running")
		return false
	}
	if s.runFn == nil {
		s.err = errors.New("no run function configured")
		s.logger.Error("failed to start service", "error", s.err)
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &worker{cancel: cancel, done: make(chan struct{})}
	s.current = w
	s.err = nil
	go s.run(ctx, w)

	s.logger.Info("service started")
	s.publish(true, nil)
	return true
}

func (s *Service) run(ctx context.Context, w *worker) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			err = nil
		}

		s.mu.Lock()
		if s.current == w {
			s.current = nil
			s.err = err
		}
		s.mu.Unlock()
		close(w.done)

		if err != nil {
			s.logger.Error("service crashed", "error", err)
		} else {
			s.logger.Info("service loop finished")
		}
		s.publish(false, err)
	}()

	err = s.runFn(ctx)
}

// Stop signals the loop and waits up to timeout for it to exit. Stopping
// a stopped service succeeds and clears any crash error, so a crashed
// service that was explicitly stopped is not restarted. It reports false
// when the loop is still running after the timeout.
func (s *Service) Stop(timeout time.Duration) bool {
	s.mu.Lock()
	w := s.current
	if w == nil {
		s.err = nil
	}
	s.mu.Unlock()
	if w == nil {
		s.logger.Debug("service not running")
		return true
	}

	s.logger.Info("stopping service")
	w.cancel()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-w.done:
		s.logger.Info("service stopped")
		return true
	case <-t.C:
		s.logger.Error("service did not stop in time", "timeout", timeout)
		return false
	}
}

// Restart is Stop followed by Start after a short pause.
func (s *Service) Restart(timeout time.Duration) bool {
	s.logger.Info("restarting service")
	if !s.Stop(timeout) {
		s.logger.Error("failed to stop service for restart")
		return false
	}
	time.Sleep(s.restartPause)
	return s.Start()
}

// IsRunning reports whether the loop is live.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Err returns the error from the last crash, cleared by Start.
func (s *Service) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Service) publish(running bool, err error) {
	data := map[string]any{"service": s.name, "running": running}
	if err != nil {
		data["error"] = err.Error()
	}
	s.bus.Emit(events.SourceSupervisor, events.KindServiceStatus, data)
}
