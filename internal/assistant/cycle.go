package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nugget/chatur/internal/metrics"
)

// Listener captures one utterance. An empty string means nothing was
// heard; failures are reported the same way.
type Listener interface {
	Listen(ctx context.Context) string
}

// Processor turns an utterance into a reply. It is expected to speak
// the reply itself.
type Processor interface {
	Process(ctx context.Context, text string) string
}

// CycleConfig wires a Cycle.
type CycleConfig struct {
	Machine   *Machine
	Listener  Listener
	Processor Processor
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Cycle is the activation entry point shared by every trigger.
type Cycle struct {
	machine   *Machine
	listener  Listener
	processor Processor
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewCycle builds the activation entry point.
func NewCycle(cfg CycleConfig) *Cycle {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Machine == nil {
		cfg.Machine = NewMachine(nil, cfg.Logger)
	}
	return &Cycle{
		machine:   cfg.Machine,
		listener:  cfg.Listener,
		processor: cfg.Processor,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// Machine returns the state machine the cycle drives.
func (c *Cycle) Machine() *Machine { return c.machine }

// Activate runs one full listen, process and speak cycle on the calling
// goroutine. A trigger that arrives while a cycle is already running is
// ignored and Activate reports false. The machine is back in Idle when
// Activate returns, whatever happened in between.
func (c *Cycle) Activate(ctx context.Context) bool {
	_, ran := c.run(ctx, c.listen)
	return ran
}

// Submit runs a cycle for text that was captured elsewhere, such as a
// typed console line, and returns the reply. It follows the same rules
// as Activate.
func (c *Cycle) Submit(ctx context.Context, text string) (reply string, ran bool) {
	return c.run(ctx, func(context.Context) string { return text })
}

func (c *Cycle) run(ctx context.Context, capture func(context.Context) string) (reply string, ran bool) {
	if !c.machine.begin() {
		c.logger.Info("activation ignored, assistant busy", "state", c.machine.State())
		c.metrics.Activation(metrics.OutcomeBusy)
		return "", false
	}
	ran = true

	outcome := metrics.OutcomeFailed
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("activation cycle panic", "error", fmt.Sprint(r))
			outcome = metrics.OutcomeFailed
		}
		c.machine.TransitionTo(Idle)
		c.metrics.Activation(outcome)
		c.logger.Debug("activation cycle finished",
			"outcome", outcome,
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
	}()

	text := strings.TrimSpace(capture(ctx))
	if text == "" {
		c.logger.Info("no speech detected")
		outcome = metrics.OutcomeSilent
		return "", true
	}
	c.logger.Info("heard utterance", "text", text)

	c.machine.TransitionTo(Processing)
	reply = c.processor.Process(ctx, text)
	c.machine.TransitionTo(Speaking)
	c.logger.Debug("cycle replied", "response", reply)

	outcome = metrics.OutcomeCompleted
	return reply, true
}

func (c *Cycle) listen(ctx context.Context) string {
	if c.listener == nil {
		return ""
	}
	return c.listener.Listen(ctx)
}
