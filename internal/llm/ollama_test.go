package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaChat(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"model":"llama3.2","message":{"role":"assistant","content":"Paris."},"done":true,"prompt_eval_count":12,"eval_count":3}`))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, nil)
	resp, err := c.Chat(context.Background(), ChatRequest{
		Model:     "llama3.2",
		Messages:  []Message{{Role: RoleUser, Content: "capital of France?"}},
		MaxTokens: 150,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "Paris." {
		t.Errorf("Content = %q, want %q", resp.Message.Content, "Paris.")
	}
	if resp.InputTokens != 12 || resp.OutputTokens != 3 {
		t.Errorf("tokens = %d/%d, want 12/3", resp.InputTokens, resp.OutputTokens)
	}
	if got.Stream {
		t.Error("request Stream = true, want false")
	}
	if got.Options == nil || got.Options.NumPredict != 150 {
		t.Errorf("request Options = %+v, want num_predict 150", got.Options)
	}
}

func TestOllamaChat_StatusError(t *testing.T) {
	tests := []struct {
		code     int
		wantTemp bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusNotFound, false},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tt.code)
		}))
		_, err := NewOllamaClient(srv.URL, nil).Chat(context.Background(), ChatRequest{Model: "m"})
		srv.Close()

		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("status %d: error = %v, want *StatusError", tt.code, err)
		}
		if se.Temporary() != tt.wantTemp {
			t.Errorf("status %d: Temporary() = %v, want %v", tt.code, se.Temporary(), tt.wantTemp)
		}
	}
}

func TestOllamaPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	if err := NewOllamaClient(srv.URL, nil).Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
