// Package desktop runs the local programs the assistant drives: app
// launchers, the URL/file opener, process killing, and the media and
// volume utilities.
package desktop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Config selects the helper programs. Zero values fall back to the
// freedesktop defaults.
type Config struct {
	// Opener opens a URL or path with the user's preferred handler.
	Opener string
	// Killer terminates processes by exact name.
	Killer string
	// Timeout bounds Run and Kill.
	Timeout time.Duration
	// MaxOutputBytes caps captured output from Run.
	MaxOutputBytes int
	Logger         *slog.Logger
}

// Runner executes programs on behalf of the handlers. It is safe for
// concurrent use.
type Runner struct {
	opener    string
	killer    string
	timeout   time.Duration
	maxOutput int
	logger    *slog.Logger
}

// New creates a Runner.
func New(cfg Config) *Runner {
	if cfg.Opener == "" {
		cfg.Opener = "xdg-open"
	}
	if cfg.Killer == "" {
		cfg.Killer = "pkill"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = 16 * 1024
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runner{
		opener:    cfg.Opener,
		killer:    cfg.Killer,
		timeout:   cfg.Timeout,
		maxOutput: cfg.MaxOutputBytes,
		logger:    cfg.Logger,
	}
}

// Start launches name detached from the caller and returns once the
// process has started. The child is reaped in the background.
func (r *Runner) Start(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	r.logger.Info("launched program", "command", name, "args", args, "pid", cmd.Process.Pid)
	go func() {
		if err := cmd.Wait(); err != nil {
			r.logger.Debug("launched program exited", "command", name, "error", err)
		}
	}()
	return nil
}

// Open hands target (a URL or a file path) to the opener program.
func (r *Runner) Open(target string) error {
	return r.Start(r.opener, target)
}

// Kill terminates every process named process. It reports false with a
// nil error when nothing was running under that name.
func (r *Runner) Kill(ctx context.Context, process string) (bool, error) {
	if strings.TrimSpace(process) == "" {
		return false, errors.New("empty process name")
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := exec.CommandContext(ctx, r.killer, "-x", process).Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		r.logger.Info("killed program", "process", process)
		return true, nil
	case errors.As(err, &exitErr) && exitErr.ExitCode() == 1:
		// pkill exits 1 when no process matched.
		return false, nil
	default:
		return false, fmt.Errorf("kill %s: %w", process, err)
	}
}

// Run executes name with args, waits for it, and returns its trimmed
// combined output.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	output := out.String()
	if len(output) > r.maxOutput {
		output = output[:r.maxOutput]
	}
	output = strings.TrimSpace(output)

	r.logger.Debug("ran program", "command", name, "args", args, "duration", time.Since(start).Round(time.Millisecond))
	if ctx.Err() == context.DeadlineExceeded {
		return output, fmt.Errorf("%s timed out after %s", name, r.timeout)
	}
	if err != nil {
		if output != "" {
			return output, fmt.Errorf("%s: %w: %s", name, err, output)
		}
		return output, fmt.Errorf("%s: %w", name, err)
	}
	return output, nil
}

// Split breaks a configured command line into program and arguments.
// Quoting is not interpreted.
func Split(command string) (name string, args []string) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}
