// Package llm defines the chat-completion capability used to polish final
// transcripts.
//
// Only single-shot completions are needed: the polisher sends a system
// prompt and one user message and reads back one reply. Implementations must
// be safe for concurrent use and return promptly when ctx is cancelled.
package llm

import "context"

// Role constants for [Message].
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the conversation sent to the model.
type Message struct {
	Role    string
	Content string
}

// Usage holds token accounting reported by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a reply.
type CompletionRequest struct {
	// SystemPrompt is sent as a leading "system" message when non-empty.
	SystemPrompt string

	// Messages is the ordered conversation; at least one message is required.
	Messages []Message

	// Temperature is the sampling temperature. Zero leaves the provider
	// default in place.
	Temperature float64

	// MaxTokens caps the reply length. Zero leaves the provider default.
	MaxTokens int
}

// CompletionResponse is the reply of [Provider.Complete].
type CompletionResponse struct {
	Content string
	Usage   Usage

	// Truncated is set when the backend stopped because it hit MaxTokens
	// rather than finishing the reply.
	Truncated bool
}

// FinishLength is the finish reason OpenAI-style backends report when a
// reply was cut off at the token limit.
const FinishLength = "length"

// Provider is a chat-completion backend.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
