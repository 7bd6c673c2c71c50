// Package llm provides the language-model collaborator used by handlers and
// background jobs: an OpenAI-compatible HTTP client, a retry decorator, and a
// structured-output helper that repairs malformed model JSON.
package llm

import "context"

// Client represents any LLM provider.
type Client interface {
	// Complete sends messages and returns a single non-streaming response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Model returns the model identifier.
	Model() string
}

// Message is one conversation message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest holds the parameters of one completion call.
type CompletionRequest struct {
	Messages    []Message      `json:"messages"`
	Temperature float64        `json:"temperature,omitempty"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// CompletionResponse is the model's reply.
type CompletionResponse struct {
	Content    string     `json:"content"`
	StopReason string     `json:"stop_reason,omitempty"`
	Usage      TokenUsage `json:"usage"`
}

// TokenUsage tracks token consumption per call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Config configures an HTTP-based client.
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    int // seconds, defaults to 60
	MaxRetries int
	Headers    map[string]string
}

// System is a convenience constructor for a system message.
func System(content string) Message { return Message{Role: "system", Content: content} }

// User is a convenience constructor for a user message.
func User(content string) Message { return Message{Role: "user", Content: content} }
