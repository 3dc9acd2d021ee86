package services

import (
	"context"

	"adventure-engine/pkg/story"
)

// ChatResponse is the raw text completion plus the token usage the upstream
// reported for the call. Usage feeds the analytics counters.
type ChatResponse struct {
	Message      string
	InputTokens  int
	OutputTokens int
	Cost         float64
}

// Tokens returns the total token count for the call.
func (r *ChatResponse) Tokens() int {
	return r.InputTokens + r.OutputTokens
}

// LLMService defines the interface for the external text-completion API.
// Implementations send an ordered message list and return one block of
// generated text. They never retry; retry policy lives with callers.
type LLMService interface {
	// InitModel initializes the model on startup
	InitModel(ctx context.Context, modelName string) error

	// Chat generates a completion for the ordered message list
	Chat(ctx context.Context, messages []story.Message) (*ChatResponse, error)
}
