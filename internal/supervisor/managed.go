package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nugget/chatur/internal/metrics"
)

// Command is a request for the control loop.
type Command string

// Commands accepted by [Managed.Send].
const (
	CmdStart    Command = "start"
	CmdStop     Command = "stop"
	CmdRestart  Command = "restart"
	CmdStatus   Command = "status"
	CmdShutdown Command = "shutdown"
)

// ErrUnknownCommand is returned by ParseCommand for anything outside
// the command set.
var ErrUnknownCommand = errors.New("unknown service command")

// ErrClosed is returned by Send after the control loop has exited.
var ErrClosed = errors.New("control loop is not running")

// ParseCommand accepts a command name in any case.
func ParseCommand(s string) (Command, error) {
	switch c := Command(strings.ToLower(strings.TrimSpace(s))); c {
	case CmdStart, CmdStop, CmdRestart, CmdStatus, CmdShutdown:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
	}
}

// Status is a snapshot of the supervised service.
type Status struct {
	Service  string `json:"service"`
	Running  bool   `json:"running"`
	Error    string `json:"error,omitempty"`
	Restarts int    `json:"restarts"`
}

// State renders Running as the word the tray and the API show.
func (s Status) State() string {
	if s.Running {
		return "running"
	}
	return "stopped"
}

// ManagedConfig configures a Managed service.
type ManagedConfig struct {
	Service     *Service
	AutoRestart bool
	// RestartDelay is the pause before an automatic restart (default 2s).
	RestartDelay time.Duration
	// StopTimeout bounds stop and restart commands (default 5s).
	StopTimeout time.Duration
	// Tick is how often the control loop checks for a crash when no
	// command arrives (default 1s).
	Tick    time.Duration
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

type request struct {
	cmd   Command
	reply chan Status
}

// Managed owns a Service and drives it from a command queue.
type Managed struct {
	svc          *Service
	autoRestart  bool
	restartDelay time.Duration
	stopTimeout  time.Duration
	tick         time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger

	queue    chan request
	done     chan struct{}
	restarts atomic.Int64
}

// NewManaged wraps cfg.Service. The control loop does not run until Run
// is called.
func NewManaged(cfg ManagedConfig) *Managed {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = 2 * time.Second
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 5 * time.Second
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	return &Managed{
		svc:          cfg.Service,
		autoRestart:  cfg.AutoRestart,
		restartDelay: cfg.RestartDelay,
		stopTimeout:  cfg.StopTimeout,
		tick:         cfg.Tick,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger.With("service", cfg.Service.Name()),
		queue:        make(chan request, 16),
		done:         make(chan struct{}),
	}
}

// Service returns the wrapped lifecycle.
func (m *Managed) Service() *Service { return m.svc }

// Send queues cmd. The returned channel receives the service status once
// the command has been carried out; callers that do not care may drop
// it. Send blocks only while the queue is full.
func (m *Managed) Send(ctx context.Context, cmd Command) (<-chan Status, error) {
	req := request{cmd: cmd, reply: make(chan Status, 1)}
	select {
	case <-m.done:
		return nil, ErrClosed
	default:
	}
	select {
	case m.queue <- req:
		m.logger.Debug("service command queued", "command", cmd)
		return req.reply, nil
	case <-m.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed when the control loop exits.
func (m *Managed) Done() <-chan struct{} { return m.done }

// Run is the control loop. It returns when ctx is cancelled or a
// shutdown command is processed, stopping the service on the way out.
func (m *Managed) Run(ctx context.Context) error {
	defer close(m.done)
	m.logger.Info("service control loop running", "auto_restart", m.autoRestart)

	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.svc.Stop(m.stopTimeout)
			m.logger.Info("service control loop exiting")
			return nil
		case req := <-m.queue:
			if m.handle(req) {
				m.logger.Info("service control loop shut down")
				return nil
			}
		case <-ticker.C:
		}

		if m.autoRestart && !m.svc.IsRunning() && m.svc.Err() != nil {
			m.restartCrashed(ctx)
		}
	}
}

// handle executes one command and reports whether the loop should end.
func (m *Managed) handle(req request) (shutdown bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("service command panic", "command", req.cmd, "error", fmt.Sprint(r))
		}
		req.reply <- m.Status()
	}()

	m.logger.Info("processing service command", "command", req.cmd)
	switch req.cmd {
	case CmdStart:
		m.svc.Start()
	case CmdStop:
		m.svc.Stop(m.stopTimeout)
	case CmdRestart:
		if m.svc.Restart(m.stopTimeout) {
			m.countRestart()
		}
	case CmdStatus:
		st := m.Status()
		m.logger.Info("service status", "state", st.State(), "error", st.Error)
	case CmdShutdown:
		m.svc.Stop(m.stopTimeout)
		return true
	default:
		m.logger.Warn("unknown service command", "command", req.cmd)
	}
	return false
}

// restartCrashed restarts a crashed service once. A further crash is
// picked up on a later tick.
func (m *Managed) restartCrashed(ctx context.Context) {
	m.logger.Warn("service crashed, restarting", "error", m.svc.Err(), "delay", m.restartDelay)

	t := time.NewTimer(m.restartDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return
	case <-t.C:
	}
	if m.svc.Start() {
		m.countRestart()
	}
}

func (m *Managed) countRestart() {
	m.restarts.Add(1)
	m.metrics.ServiceRestarted(m.svc.Name())
}

// Status reports the current state of the service.
func (m *Managed) Status() Status {
	st := Status{
		Service:  m.svc.Name(),
		Running:  m.svc.IsRunning(),
		Restarts: int(m.restarts.Load()),
	}
	if err := m.svc.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}
