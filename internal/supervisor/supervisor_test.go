package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// blockingLoop runs until cancelled and counts how many times it was
// started.
func blockingLoop(starts *atomic.Int32) RunFunc {
	return func(ctx context.Context) error {
		starts.Add(1)
		<-ctx.Done()
		return ctx.Err()
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestService(t *testing.T, run RunFunc) *Service {
	t.Helper()
	s := NewService(ServiceConfig{Name: "test", Run: run, RestartPause: time.Millisecond})
	t.Cleanup(func() { s.Stop(time.Second) })
	return s
}

func TestService_StartStop(t *testing.T) {
	var starts atomic.Int32
	s := newTestService(t, blockingLoop(&starts))

	if s.IsRunning() {
		t.Fatal("new service reports running")
	}
	if !s.Start() {
		t.Fatal("Start() = false")
	}
	if !s.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}
	if !s.Stop(time.Second) {
		t.Fatal("Stop() = false")
	}
	if s.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
	if err := s.Err(); err != nil {
		t.Errorf("Err() = %v after clean stop, want nil", err)
	}
}

func TestService_DoubleStart(t *testing.T) {
	var starts atomic.Int32
	s := newTestService(t, blockingLoop(&starts))

	if !s.Start() {
		t.Fatal("first Start() = false")
	}
	if s.Start() {
		t.Error("second Start() = true, want false")
	}
	waitFor(t, "loop to start", func() bool { return starts.Load() >= 1 })
	time.Sleep(20 * time.Millisecond)
	if got := starts.Load(); got != 1 {
		t.Errorf("loop started %d times, want 1", got)
	}
}

func TestService_StopWhenStopped(t *testing.T) {
	s := newTestService(t, func(context.Context) error { return nil })
	if !s.Stop(time.Second) {
		t.Error("Stop() on a stopped service = false")
	}
}

func TestService_StopTimeout(t *testing.T) {
	release := make(chan struct{})
	s := newTestService(t, func(ctx context.Context) error {
		<-release
		return nil
	})
	s.Start()

	if s.Stop(20 * time.Millisecond) {
		t.Error("Stop() = true for a loop that ignores cancellation")
	}
	if !s.IsRunning() {
		t.Error("IsRunning() = false while the loop is still alive")
	}
	close(release)
	waitFor(t, "loop exit", func() bool { return !s.IsRunning() })
}

func TestService_CrashRecordsError(t *testing.T) {
	boom := errors.New("microphone unplugged")
	s := newTestService(t, func(context.Context) error { return boom })

	s.Start()
	waitFor(t, "crash", func() bool { return !s.IsRunning() })
	if !errors.Is(s.Err(), boom) {
		t.Errorf("Err() = %v, want %v", s.Err(), boom)
	}

	// An explicit stop clears the crash.
	s.Stop(time.Second)
	if s.Err() != nil {
		t.Errorf("Err() = %v after Stop, want nil", s.Err())
	}
}

func TestService_PanicIsCrash(t *testing.T) {
	s := newTestService(t, func(context.Context) error { panic("nil map") })
	s.Start()
	waitFor(t, "crash", func() bool { return !s.IsRunning() })
	if s.Err() == nil {
		t.Error("Err() = nil after panic")
	}
}

func TestService_Restart(t *testing.T) {
	var starts atomic.Int32
	s := newTestService(t, blockingLoop(&starts))
	s.Start()
	waitFor(t, "first start", func() bool { return starts.Load() == 1 })

	if !s.Restart(time.Second) {
		t.Fatal("Restart() = false")
	}
	waitFor(t, "second start", func() bool { return starts.Load() == 2 })
	if !s.IsRunning() {
		t.Error("IsRunning() = false after Restart")
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in      string
		want    Command
		wantErr bool
	}{
		{"start", CmdStart, false},
		{" STOP ", CmdStop, false},
		{"Restart", CmdRestart, false},
		{"status", CmdStatus, false},
		{"shutdown", CmdShutdown, false},
		{"reboot", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCommand(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCommand(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrUnknownCommand) {
			t.Errorf("ParseCommand(%q) err = %v, want ErrUnknownCommand", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseCommand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func newTestManaged(t *testing.T, run RunFunc, autoRestart bool) (*Managed, context.CancelFunc) {
	t.Helper()
	svc := NewService(ServiceConfig{Name: "assistant", Run: run, RestartPause: time.Millisecond})
	m := NewManaged(ManagedConfig{
		Service:      svc,
		AutoRestart:  autoRestart,
		RestartDelay: 10 * time.Millisecond,
		StopTimeout:  time.Second,
		Tick:         10 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-m.Done()
	})
	return m, cancel
}

func send(t *testing.T, m *Managed, cmd Command) Status {
	t.Helper()
	reply, err := m.Send(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Send(%s): %v", cmd, err)
	}
	select {
	case st := <-reply:
		return st
	case <-time.After(5 * time.Second):
		t.Fatalf("no reply to %s", cmd)
		return Status{}
	}
}

func TestManaged_Commands(t *testing.T) {
	var starts atomic.Int32
	m, _ := newTestManaged(t, blockingLoop(&starts), false)

	if st := send(t, m, CmdStart); !st.Running {
		t.Errorf("after start: Running = false")
	}
	st := send(t, m, CmdStatus)
	if st.State() != "running" || st.Service != "assistant" {
		t.Errorf("status = %+v", st)
	}
	if st := send(t, m, CmdRestart); !st.Running || st.Restarts != 1 {
		t.Errorf("after restart: %+v, want running with 1 restart", st)
	}
	if st := send(t, m, CmdStop); st.Running {
		t.Errorf("after stop: Running = true")
	}
	if got := m.Status().State(); got != "stopped" {
		t.Errorf("State() = %q, want stopped", got)
	}
}

func TestManaged_Shutdown(t *testing.T) {
	var starts atomic.Int32
	m, _ := newTestManaged(t, blockingLoop(&starts), true)

	send(t, m, CmdStart)
	if st := send(t, m, CmdShutdown); st.Running {
		t.Errorf("after shutdown: Running = true")
	}
	select {
	case <-m.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("control loop did not exit after shutdown")
	}
	if _, err := m.Send(context.Background(), CmdStart); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after shutdown err = %v, want ErrClosed", err)
	}
}

func TestManaged_AutoRestart(t *testing.T) {
	var starts atomic.Int32
	crashes := make(chan struct{}, 1)
	crashes <- struct{}{}
	run := func(ctx context.Context) error {
		starts.Add(1)
		select {
		case <-crashes:
			return errors.New("audio device lost")
		default:
		}
		<-ctx.Done()
		return nil
	}
	m, _ := newTestManaged(t, run, true)

	send(t, m, CmdStart)
	waitFor(t, "automatic restart", func() bool { return starts.Load() == 2 && m.Status().Running })
	if got := m.Status().Restarts; got != 1 {
		t.Errorf("Restarts = %d, want 1", got)
	}
	if m.Status().Error != "" {
		t.Errorf("Error = %q after recovery, want empty", m.Status().Error)
	}
}

func TestManaged_NoAutoRestart(t *testing.T) {
	var starts atomic.Int32
	m, _ := newTestManaged(t, func(context.Context) error {
		starts.Add(1)
		return errors.New("boom")
	}, false)

	send(t, m, CmdStart)
	waitFor(t, "crash", func() bool { return !m.Status().Running })
	time.Sleep(100 * time.Millisecond)
	if got := starts.Load(); got != 1 {
		t.Errorf("loop started %d times with auto-restart off, want 1", got)
	}
	if m.Status().Error == "" {
		t.Error("Status().Error empty after crash")
	}
}

func TestManaged_ContextCancelStopsService(t *testing.T) {
	var starts atomic.Int32
	m, cancel := newTestManaged(t, blockingLoop(&starts), false)
	send(t, m, CmdStart)

	cancel()
	<-m.Done()
	if m.Service().IsRunning() {
		t.Error("service still running after control loop exit")
	}
}
