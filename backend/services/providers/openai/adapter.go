package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"go.uber.org/zap"

	"github.com/upb/butterfly-chat/backend/models"
	"github.com/upb/butterfly-chat/backend/services/providers"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 60 * time.Second
)

// errNoFirstChunk cancels a completion that produced nothing within the timeout
var errNoFirstChunk = fmt.Errorf("no completion chunk received in time: %w", context.DeadlineExceeded)

// OpenAIAdapter implements the Embedder and StreamingProvider interfaces for
// OpenAI compatible endpoints. It holds only immutable configuration and is
// safe for concurrent use.
type OpenAIAdapter struct {
	config providers.ProviderConfig
	client openaisdk.Client
	logger *zap.Logger
}

// NewOpenAIAdapter creates a new OpenAI adapter. SDK retries are disabled so
// a failed call surfaces immediately.
func NewOpenAIAdapter(config providers.ProviderConfig, logger *zap.Logger) *OpenAIAdapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithBaseURL(strings.TrimSuffix(config.BaseURL, "/") + "/"),
		option.WithMaxRetries(0),
	}
	for k, v := range config.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}

	return &OpenAIAdapter{
		config: config,
		client: openaisdk.NewClient(opts...),
		logger: logger,
	}
}

// Name returns the provider name
func (a *OpenAIAdapter) Name() string {
	return "openai"
}

// Embed requests the embedding of a single text
func (a *OpenAIAdapter) Embed(ctx context.Context, model, text string) (*models.Embedding, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	resp, err := a.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{OfString: openaisdk.String(text)},
		Model: openaisdk.EmbeddingModel(model),
	})
	if err != nil {
		return nil, a.wrapError("embedding request failed", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, providers.NewProviderError(a.Name(), "EMPTY_RESPONSE", "provider returned no embedding", http.StatusOK, nil)
	}

	a.logger.Debug("embedding created",
		zap.String("model", resp.Model),
		zap.Int("dimensions", len(resp.Data[0].Embedding)),
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens))

	return &models.Embedding{
		Vector:       resp.Data[0].Embedding,
		Model:        resp.Model,
		PromptTokens: int(resp.Usage.PromptTokens),
	}, nil
}

// ChatCompletionStream performs a streaming chat completion.
// The timeout only bounds the wait for the first chunk. Once the model is
// producing tokens the stream runs until it ends or ctx is canceled.
func (a *OpenAIAdapter) ChatCompletionStream(ctx context.Context, req *providers.ChatRequest, callback providers.StreamCallback) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	firstChunk := time.AfterFunc(a.config.Timeout, func() { cancel(errNoFirstChunk) })
	defer firstChunk.Stop()

	stream := a.client.Chat.Completions.NewStreaming(ctx, buildChatParams(req))
	defer stream.Close()

	chunks := 0
	for stream.Next() {
		firstChunk.Stop()
		chunk := toStreamChunk(stream.Current())
		if chunk == nil {
			continue
		}
		chunks++
		if err := callback(chunk); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		if cause := context.Cause(ctx); errors.Is(cause, errNoFirstChunk) {
			err = cause
		}
		return a.wrapError("completion stream failed", err)
	}

	a.logger.Debug("completion stream finished",
		zap.String("model", req.Model),
		zap.Int("chunks", chunks))
	return nil
}

// buildChatParams converts a unified request to SDK parameters
func buildChatParams(req *providers.ChatRequest) openaisdk.ChatCompletionNewParams {
	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case models.RoleSystem:
			messages = append(messages, openaisdk.SystemMessage(msg.Content))
		case models.RoleAssistant:
			messages = append(messages, openaisdk.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openaisdk.UserMessage(msg.Content))
		}
	}

	return openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(req.Model),
		Messages: messages,
		StreamOptions: openaisdk.ChatCompletionStreamOptionsParam{
			IncludeUsage: openaisdk.Bool(true),
		},
	}
}

// toStreamChunk converts an SDK chunk, returning nil for chunks that carry
// neither text, a finish reason nor usage
func toStreamChunk(c openaisdk.ChatCompletionChunk) *providers.StreamChunk {
	chunk := &providers.StreamChunk{
		ID:    c.ID,
		Model: c.Model,
	}
	if len(c.Choices) > 0 {
		chunk.Delta = c.Choices[0].Delta.Content
		chunk.FinishReason = string(c.Choices[0].FinishReason)
	}
	if c.Usage.TotalTokens > 0 {
		chunk.Usage = &providers.Usage{
			PromptTokens:     int(c.Usage.PromptTokens),
			CompletionTokens: int(c.Usage.CompletionTokens),
			TotalTokens:      int(c.Usage.TotalTokens),
		}
	}
	if chunk.Delta == "" && chunk.FinishReason == "" && chunk.Usage == nil {
		return nil
	}
	return chunk
}

// wrapError converts SDK and transport errors into a ProviderError
func (a *OpenAIAdapter) wrapError(message string, err error) error {
	var apiErr *openaisdk.Error
	switch {
	case errors.As(err, &apiErr):
		return providers.NewProviderError(a.Name(), "API_ERROR", message, apiErr.StatusCode, err)
	case errors.Is(err, context.DeadlineExceeded):
		return providers.NewProviderError(a.Name(), "TIMEOUT", message, http.StatusGatewayTimeout, err)
	case errors.Is(err, context.Canceled):
		return providers.NewProviderError(a.Name(), "CANCELED", message, 0, err)
	default:
		return providers.NewProviderError(a.Name(), "HTTP_ERROR", message, 0, err)
	}
}
