package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTestConfig writes a config that keeps every store under a temp
// directory and speech off.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "data_dir: " + filepath.Join(dir, "data") + "\n" +
		"listen:\n  port: 0\n" +
		"speech:\n  tts:\n    enabled: false\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runTest(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), strings.NewReader(""), &stdout, &stderr, args)
	return stdout.String(), err
}

func TestRun_Usage(t *testing.T) {
	for _, args := range [][]string{nil, {"-h"}, {"--help"}} {
		out, err := runTest(t, args...)
		if err != nil {
			t.Fatalf("run(%v) error = %v", args, err)
		}
		if !strings.Contains(out, "Usage: chatur") {
			t.Errorf("run(%v) output missing usage: %q", args, out)
		}
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown command", []string{"dance"}, "unknown command"},
		{"unknown flag", []string{"-verbose"}, "unknown flag"},
		{"bad output", []string{"-o", "xml", "version"}, "unknown output format"},
		{"ask without text", []string{"ask"}, "usage: chatur ask"},
		{"classify without text", []string{"classify"}, "usage: chatur classify"},
		{"history bad n", []string{"history", "many"}, "usage: chatur history"},
		{"missing config", []string{"-config", "/nonexistent/chatur.yaml", "ask", "hi"}, "config file not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runTest(t, tt.args...)
			if err == nil {
				t.Fatal("run() error = nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestRun_Version(t *testing.T) {
	out, err := runTest(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out, "go_version:") {
		t.Errorf("text output = %q", out)
	}

	out, err = runTest(t, "-o", "json", "version")
	if err != nil {
		t.Fatalf("json version error = %v", err)
	}
	var info map[string]string
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("unmarshal version: %v", err)
	}
	if info["version"] == "" {
		t.Errorf("version missing from %v", info)
	}
}

func TestRun_Classify(t *testing.T) {
	cfg := writeTestConfig(t)
	out, err := runTest(t, "-config", cfg, "classify", "what", "is", "12", "plus", "30")
	if err != nil {
		t.Fatalf("classify error = %v", err)
	}
	var got struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("unmarshal %q: %v", out, err)
	}
	if got.Kind != "math" {
		t.Errorf("kind = %q, want math", got.Kind)
	}
}

func TestRun_AskHistoryPurge(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := runTest(t, "-config", cfg, "ask", "what is 2 plus 2")
	if err != nil {
		t.Fatalf("ask error = %v", err)
	}
	if got := strings.TrimSpace(out); got != "The answer is 4" {
		t.Errorf("ask = %q, want %q", got, "The answer is 4")
	}

	out, err = runTest(t, "-config", cfg, "history", "5")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if !strings.Contains(out, "The answer is 4") || !strings.Contains(out, "(math)") {
		t.Errorf("history = %q", out)
	}

	out, err = runTest(t, "-config", cfg, "-o", "json", "history")
	if err != nil {
		t.Fatalf("json history error = %v", err)
	}
	var exchanges []map[string]any
	if err := json.Unmarshal([]byte(out), &exchanges); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(exchanges) != 1 {
		t.Errorf("len(history) = %d, want 1", len(exchanges))
	}

	out, err = runTest(t, "-config", cfg, "purge", "7")
	if err != nil {
		t.Fatalf("purge error = %v", err)
	}
	if !strings.Contains(out, "Removed 0 exchange(s) older than 7 day(s)") {
		t.Errorf("purge = %q", out)
	}
}

func TestRun_HistoryEmpty(t *testing.T) {
	out, err := runTest(t, "-config", writeTestConfig(t), "history")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if !strings.Contains(out, "No conversation history.") {
		t.Errorf("history = %q", out)
	}
}

func TestOptionalInt(t *testing.T) {
	tests := []struct {
		args    []string
		want    int
		wantErr bool
	}{
		{nil, 10, false},
		{[]string{"3"}, 3, false},
		{[]string{"0"}, 0, false},
		{[]string{"-1"}, 0, true},
		{[]string{"ten"}, 0, true},
	}
	for _, tt := range tests {
		got, err := optionalInt(tt.args, 10)
		if (err != nil) != tt.wantErr {
			t.Errorf("optionalInt(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("optionalInt(%v) = %d, want %d", tt.args, got, tt.want)
		}
	}
}
