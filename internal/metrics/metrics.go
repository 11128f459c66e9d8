// Package metrics defines the Prometheus collectors exported on
// /metrics. All methods are safe on a nil *Metrics so components can
// run without instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chatur"

// Metrics holds the assistant's collectors.
type Metrics struct {
	commands         *prometheus.CounterVec
	handlerFailures  *prometheus.CounterVec
	processDuration  prometheus.Histogram
	remindersFired   prometheus.Counter
	activations      *prometheus.CounterVec
	serviceRestarts  *prometheus.CounterVec
	eventSubscribers prometheus.GaugeFunc
}

// MustNew creates the collectors and registers them on reg, panicking on
// a registration conflict. A nil reg means the default registerer.
// subscribers, when non-nil, backs the websocket subscriber gauge.
func MustNew(reg prometheus.Registerer, subscribers func() int) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_processed_total",
			Help:      "Commands processed, by intent kind.",
		}, []string{"kind"}),
		handlerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_failures_total",
			Help:      "Handler errors, by intent kind and error kind.",
		}, []string{"kind", "error"}),
		processDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_duration_seconds",
			Help:      "Time from utterance text to reply text.",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		remindersFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_fired_total",
			Help:      "Reminders fired by the scheduler.",
		}),
		activations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activation_cycles_total",
			Help:      "Activation triggers, by outcome.",
		}, []string{"outcome"}),
		serviceRestarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "service_restarts_total",
			Help:      "Supervised service restarts, by service.",
		}, []string{"service"}),
	}
	reg.MustRegister(m.commands, m.handlerFailures, m.processDuration, m.remindersFired, m.activations, m.serviceRestarts)

	if subscribers != nil {
		m.eventSubscribers = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_subscribers",
			Help:      "Live event bus subscribers.",
		}, func() float64 { return float64(subscribers()) })
		reg.MustRegister(m.eventSubscribers)
	}
	return m
}

// CommandProcessed records one processed command.
func (m *Metrics) CommandProcessed(kind string, took time.Duration) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(kind).Inc()
	m.processDuration.Observe(took.Seconds())
}

// HandlerFailed records a handler error.
func (m *Metrics) HandlerFailed(kind, errKind string) {
	if m == nil {
		return
	}
	m.handlerFailures.WithLabelValues(kind, errKind).Inc()
}

// ReminderFired records one fired reminder.
func (m *Metrics) ReminderFired() {
	if m == nil {
		return
	}
	m.remindersFired.Inc()
}

// Activation outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeBusy      = "busy"
	OutcomeSilent    = "silent"
	OutcomeFailed    = "failed"
)

// Activation records the outcome of one activation trigger.
func (m *Metrics) Activation(outcome string) {
	if m == nil {
		return
	}
	m.activations.WithLabelValues(outcome).Inc()
}

// ServiceRestarted records an automatic or requested restart.
func (m *Metrics) ServiceRestarted(service string) {
	if m == nil {
		return
	}
	m.serviceRestarts.WithLabelValues(service).Inc()
}
