package desktop

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

// writeScript creates an executable shell script in a temp dir.
func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestRun_Output(t *testing.T) {
	r := New(Config{})
	out, err := r.Run(context.Background(), "sh", "-c", "echo '  hello  '")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "hello" {
		t.Errorf("Run output = %q, want %q", out, "hello")
	}
}

func TestRun_FailureIncludesOutput(t *testing.T) {
	r := New(Config{})
	_, err := r.Run(context.Background(), "sh", "-c", "echo broken >&2; exit 3")
	if err == nil {
		t.Fatal("Run succeeded, want error")
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("error = %q, want it to mention output", err)
	}
}

func TestRun_Timeout(t *testing.T) {
	r := New(Config{Timeout: 50 * time.Millisecond})
	_, err := r.Run(context.Background(), "sleep", "5")
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("Run error = %v, want timeout", err)
	}
}

func TestKill_ExitCodes(t *testing.T) {
	tests := []struct {
		name  string
		exit  int
		want  bool
		isErr bool
	}{
		{"killed", 0, true, false},
		{"nothing matched", 1, false, false},
		{"killer failed", 2, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			killer := writeScript(t, "pkill", "exit "+strconv.Itoa(tt.exit))
			r := New(Config{Killer: killer})
			got, err := r.Kill(context.Background(), "firefox")
			if (err != nil) != tt.isErr {
				t.Fatalf("Kill error = %v, wantErr %v", err, tt.isErr)
			}
			if got != tt.want {
				t.Errorf("Kill = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKill_EmptyName(t *testing.T) {
	r := New(Config{})
	if _, err := r.Kill(context.Background(), " "); err == nil {
		t.Error("Kill(\"\") succeeded, want error")
	}
}

func TestOpen_PassesTarget(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "opened")
	opener := writeScript(t, "opener", `echo "$1" > `+marker)
	r := New(Config{Opener: opener})

	if err := r.Open("https://example.com"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if data, err := os.ReadFile(marker); err == nil && strings.TrimSpace(string(data)) == "https://example.com" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("opener never received the target")
}

func TestStart_MissingProgram(t *testing.T) {
	r := New(Config{})
	if err := r.Start(filepath.Join(t.TempDir(), "no-such-program")); err == nil {
		t.Error("Start succeeded for missing program")
	}
}

func TestSplit(t *testing.T) {
	name, args := Split("  pactl set-sink-volume @DEFAULT_SINK@ +10% ")
	if name != "pactl" {
		t.Errorf("name = %q, want pactl", name)
	}
	if len(args) != 3 || args[2] != "+10%" {
		t.Errorf("args = %q", args)
	}
	if name, args := Split(""); name != "" || args != nil {
		t.Errorf("Split(\"\") = %q, %q", name, args)
	}
}
