// Package llm defines the Provider interface for chat completion backends
// and the message types exchanged with them.
package llm

import "context"

// Message roles, matching the OpenAI-style chat wire format.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest describes one chat completion call.
type CompletionRequest struct {
	// SystemPrompt is prepended as a system message when non-empty.
	SystemPrompt string

	// Messages is the conversation so far, oldest first.
	Messages []Message

	// Temperature controls sampling randomness. 0 means provider default.
	Temperature float64

	// MaxTokens caps the response length. 0 means provider default.
	MaxTokens int
}

// Usage reports token consumption for one completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionResponse is the result of one chat completion call.
type CompletionResponse struct {
	// Content is the assistant's reply text.
	Content string

	// Usage is token accounting, when the provider reports it.
	Usage Usage
}

// Provider is the abstraction over any chat completion backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Complete performs a full (non-streaming) chat completion.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
