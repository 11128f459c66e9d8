// Package llm is the client for the language model that answers
// open-ended questions.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Client is implemented by every model provider.
type Client interface {
	// Chat sends messages and returns the model's reply.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Ping checks that the provider is reachable.
	Ping(ctx context.Context) error
}

// Message is one turn of a chat.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatRequest is a provider-neutral completion request.
type ChatRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// ChatResponse is the provider-neutral reply.
type ChatResponse struct {
	Model        string
	Message      Message
	InputTokens  int
	OutputTokens int
	Duration     time.Duration
}

// StatusError reports a non-200 response from the provider.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the same request may succeed: rate
// limiting and server-side failures.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
