package ai

import (
	"context"
	"errors"
)

// ErrNotConfigured indicates no LLM provider credentials were supplied.
var ErrNotConfigured = errors.New("llm client not configured")

// CompletionRequest is a single-turn prompt sent to a language model.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// CompletionResponse is the free-text reply of a language model.
type CompletionResponse struct {
	Text         string `json:"text"`
	Model        string `json:"model"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
}

// Client describes a language model capable of answering a prompt.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	Provider() string
}
