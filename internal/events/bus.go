// Package events carries notifications from worker goroutines (the
// activation cycle, the reminder scheduler, the supervisor) to whatever
// presents them: the WebSocket hub, the MQTT publisher, the console.
// Publishers never touch presentation state directly; each consumer owns
// a channel and drains it on its own goroutine.
//
// A nil *Bus is valid and discards everything, so components can be
// constructed without one in tests.
package events

import (
	"sync"
	"time"
)

// Sources identify the publishing component.
const (
	SourceAssistant  = "assistant"
	SourceProcessor  = "processor"
	SourceScheduler  = "scheduler"
	SourceSupervisor = "supervisor"
	SourceTimer      = "timer"
	SourceConnwatch  = "connwatch"
)

// Kinds describe what happened.
const (
	// KindStateChange reports an assistant state transition.
	// Data: state.
	KindStateChange = "state_change"
	// KindCommandProcessed reports one finished request/response cycle.
	// Data: input, response, intent, elapsed_ms.
	KindCommandProcessed = "command_processed"
	// KindReminderFired reports a due reminder. Data: id, text.
	KindReminderFired = "reminder_fired"
	// KindNotification is a user-visible popup. Data: title, body.
	KindNotification = "notification"
	// KindServiceStatus reports supervisor lifecycle changes.
	// Data: service, running, error.
	KindServiceStatus = "service_status"
	// KindDependency reports a collaborator (language model, speech
	// recognizer) becoming reachable or unreachable.
	// Data: name, ready, error.
	KindDependency = "dependency"
)

// Event is one published occurrence.
type Event struct {
	Timestamp time.Time      `json:"ts"`
	Source    string         `json:"source"`
	Kind      string         `json:"kind"`
	Data      map[string]any `json:"data,omitempty"`
}

// Bus is a non-blocking fan-out. A subscriber whose buffer is full misses
// events instead of stalling the publisher.
type Bus struct {
	mu   sync.RWMutex
	subs map[<-chan Event]chan Event
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[<-chan Event]chan Event)}
}

// Publish delivers e to every subscriber that has room. A zero Timestamp
// is filled in.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Emit is shorthand for publishing an event built from its parts.
func (b *Bus) Emit(source, kind string, data map[string]any) {
	b.Publish(Event{Source: source, Kind: kind, Data: data})
}

// Subscribe registers a consumer with the given buffer size. The caller
// must Unsubscribe when done.
func (b *Bus) Subscribe(bufSize int) <-chan Event {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = ch
	return ch
}

// Unsubscribe removes and closes a subscription. Unknown channels are
// ignored.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	send, ok := b.subs[ch]
	if !ok {
		return
	}
	delete(b.subs, ch)
	close(send)
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
