package providers

import (
	"context"
	"errors"
	"time"

	"github.com/upb/butterfly-chat/backend/models"
)

// Embedder turns text into a vector using an external embedding model
type Embedder interface {
	// Name returns the provider name (e.g., "openai")
	Name() string

	// Embed returns the embedding of text produced by model
	Embed(ctx context.Context, model, text string) (*models.Embedding, error)
}

// StreamingProvider sends a conversation to a chat completion model and
// delivers the answer incrementally
type StreamingProvider interface {
	// Name returns the provider name (e.g., "openai")
	Name() string

	// ChatCompletionStream performs a streaming chat completion, invoking
	// callback once per received chunk. An error returned by callback aborts
	// the stream and is returned unchanged.
	ChatCompletionStream(ctx context.Context, req *ChatRequest, callback StreamCallback) error
}

// ChatRequest represents a streaming chat completion request
type ChatRequest struct {
	// Model identifier (e.g., "gpt-4o-mini")
	Model string `json:"model"`

	// Messages in the conversation, sent as is
	Messages []models.Message `json:"messages"`

	// User identifier for abuse monitoring
	User string `json:"user,omitempty"`
}

// StreamChunk is one incremental piece of a streamed completion
type StreamChunk struct {
	// ID of the completion this chunk belongs to
	ID string `json:"id"`

	// Model that produced the chunk
	Model string `json:"model"`

	// Delta is the newly generated text, possibly empty
	Delta string `json:"delta"`

	// FinishReason is set on the chunk that ends generation
	// Values: "stop", "length", "content_filter", "tool_calls"
	FinishReason string `json:"finish_reason,omitempty"`

	// Usage is only present on the final chunk when the provider reports it
	Usage *Usage `json:"usage,omitempty"`
}

// Usage represents token usage statistics
type Usage struct {
	// PromptTokens used in the request
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens used in the response
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the sum of prompt and completion tokens
	TotalTokens int `json:"total_tokens"`
}

// StreamCallback is called for each chunk in a streaming response
type StreamCallback func(chunk *StreamChunk) error

// ProviderConfig holds common configuration for providers
type ProviderConfig struct {
	// APIKey for authentication
	APIKey string

	// BaseURL for the API (optional override)
	BaseURL string

	// Timeout bounds embedding calls and the wait for the first completion chunk
	Timeout time.Duration

	// Additional headers
	Headers map[string]string
}

// ProviderError represents an error from a provider
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Code is the error code
	Code string

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Cause:      cause,
	}
}

// StatusCodeOf returns the upstream HTTP status carried by a ProviderError, or 0
func StatusCodeOf(err error) int {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.StatusCode
	}
	return 0
}
