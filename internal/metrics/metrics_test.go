package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNew(reg, nil)

	m.CommandProcessed("timer", 20*time.Millisecond)
	m.CommandProcessed("timer", 30*time.Millisecond)
	m.CommandProcessed("question", time.Second)
	m.HandlerFailed("weather", "transient")
	m.ReminderFired()
	m.Activation(OutcomeBusy)
	m.ServiceRestarted("assistant")

	if got := testutil.ToFloat64(m.commands.WithLabelValues("timer")); got != 2 {
		t.Errorf("commands{timer} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.handlerFailures.WithLabelValues("weather", "transient")); got != 1 {
		t.Errorf("handler_failures{weather,transient} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.remindersFired); got != 1 {
		t.Errorf("reminders_fired = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.activations.WithLabelValues(OutcomeBusy)); got != 1 {
		t.Errorf("activations{busy} = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.processDuration); got != 1 {
		t.Errorf("process_duration series = %d, want 1", got)
	}
}

func TestMetrics_SubscriberGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	n := 3
	MustNew(reg, func() int { return n })

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == "chatur_event_subscribers" {
			if got := f.GetMetric()[0].GetGauge().GetValue(); got != 3 {
				t.Errorf("event_subscribers = %v, want 3", got)
			}
			return
		}
	}
	t.Error("chatur_event_subscribers not registered")
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.CommandProcessed("x", time.Second)
	m.HandlerFailed("x", "y")
	m.ReminderFired()
	m.Activation(OutcomeFailed)
	m.ServiceRestarted("x")
}

func TestMustNew_DuplicatePanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustNew(reg, nil)
	defer func() {
		if recover() == nil {
			t.Error("second MustNew on the same registry did not panic")
		}
	}()
	MustNew(reg, nil)
}
