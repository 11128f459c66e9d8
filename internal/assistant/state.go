// Package assistant holds the activation state machine and the
// interaction cycle that drives it.
//
// The machine is a single last-write-wins value. It keeps no queue of
// pending transitions; [Cycle] is the only caller that sequences
// LISTENING, PROCESSING and SPEAKING, and it always returns the machine
// to IDLE on the way out.
package assistant

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nugget/chatur/internal/events"
	"github.com/nugget/chatur/internal/speech"
)

// State is one phase of the activation cycle.
type State string

// The four states. Idle is both the initial state and the end of every
// cycle.
const (
	Idle       State = "idle"
	Listening  State = "listening"
	Processing State = "processing"
	Speaking   State = "speaking"
)

// Machine is safe for concurrent use.
type Machine struct {
	mu       sync.Mutex
	state    State
	bus      *events.Bus
	logger   *slog.Logger
	watchers []func(State)
}

// NewMachine returns a machine in the Idle state. Transitions are
// published on bus as [events.KindStateChange].
func NewMachine(bus *events.Bus, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{state: Idle, bus: bus, logger: logger}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsIdle reports whether no cycle is in progress.
func (m *Machine) IsIdle() bool { return m.State() == Idle }

// IsActive is the negation of IsIdle.
func (m *Machine) IsActive() bool { return m.State() != Idle }

// OnChange registers fn to be called with each new state. Callbacks run
// while the transition lock is held and must not call back into the
// machine.
func (m *Machine) OnChange(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchers = append(m.watchers, fn)
}

// TransitionTo moves to s and broadcasts the change. Transitioning to
// the current state does nothing and reports false.
func (m *Machine) TransitionTo(s State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set(s)
}

// begin moves Idle to Listening atomically. It fails when another cycle
// already owns the machine.
func (m *Machine) begin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Idle {
		return false
	}
	return m.set(Listening)
}

func (m *Machine) set(s State) bool {
	if m.state == s {
		return false
	}
	old := m.state
	m.state = s
	m.logger.Debug("assistant state transition", "from", old, "to", s)

	// Published under the lock so subscribers see transitions in order.
	m.bus.Emit(events.SourceAssistant, events.KindStateChange, map[string]any{
		"state": string(s),
	})
	for _, fn := range m.watchers {
		fn(s)
	}
	return true
}

// Speaker wraps s so that speech produced while a cycle is in
// Processing moves the machine to Speaking first. Speech outside a
// cycle (API requests, reminders) leaves the state alone.
func (m *Machine) Speaker(s speech.Speaker) speech.Speaker {
	return &stateSpeaker{machine: m, next: s}
}

type stateSpeaker struct {
	machine *Machine
	next    speech.Speaker
}

func (s *stateSpeaker) Speak(ctx context.Context, text, language string) error {
	s.machine.mu.Lock()
	if s.machine.state == Processing {
		s.machine.set(Speaking)
	}
	s.machine.mu.Unlock()

	if s.next == nil {
		return nil
	}
	return s.next.Speak(ctx, text, language)
}
