package chat

import (
	"context"

	"github.com/upb/butterfly-chat/backend/models"
	"github.com/upb/butterfly-chat/backend/services/providers"
	"github.com/upb/butterfly-chat/backend/services/retrieval"
)

// FinishReasonUnknown is reported when the provider ends a stream without a reason
const FinishReasonUnknown = "unknown"

// Retriever finds the context for a query embedding
type Retriever interface {
	Retrieve(ctx context.Context, vector []float64) (*retrieval.Result, error)
	Backend() string
}

// PromptBuilder renders the synthetic system message
type PromptBuilder interface {
	Build(context, question string) (models.Message, error)
}

// Config holds the fixed model identifiers of the pipeline
type Config struct {
	EmbeddingModel  string
	CompletionModel string
}

// Request is one chat turn as submitted by the caller
type Request struct {
	Messages  []models.Message `json:"messages" validate:"required,min=1,dive"`
	RequestID string           `json:"-"`
	MessageID string           `json:"-"` // generated when empty
}

// Result describes how a request ended. It is returned for failed requests
// too, with State set to failed.
type Result struct {
	RequestID    string
	MessageID    string
	Chunks       []models.RetrievedChunk
	FinishReason string
	Usage        *providers.Usage
	State        models.RequestState
}
