package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/butterfly-chat/backend/models"
	"github.com/upb/butterfly-chat/backend/services"
	"github.com/upb/butterfly-chat/backend/services/prompt"
	"github.com/upb/butterfly-chat/backend/services/providers"
	"go.uber.org/zap"
)

// ChatService runs the retrieval-augmented chat pipeline:
// embed the question, retrieve context, build the system prompt, stream the answer.
// Steps run strictly in order and a failing step ends the request.
type ChatService struct {
	embedder    providers.Embedder
	retriever   Retriever
	builder     PromptBuilder
	completions providers.StreamingProvider
	tokens      *prompt.TokenCounter
	config      Config
	logger      *zap.Logger
}

// NewChatService creates a new chat service with all dependencies
func NewChatService(
	embedder providers.Embedder,
	retriever Retriever,
	builder PromptBuilder,
	completions providers.StreamingProvider,
	tokens *prompt.TokenCounter,
	config Config,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		embedder:    embedder,
		retriever:   retriever,
		builder:     builder,
		completions: completions,
		tokens:      tokens,
		config:      config,
		logger:      logger,
	}
}

// NewMessageID returns an identifier for a generated assistant message
func NewMessageID() string {
	return "msg-" + uuid.NewString()
}

// ValidateRequest checks that the conversation ends with a non-empty user message
func ValidateRequest(req *Request) error {
	if req == nil {
		return services.WrapValidation("request is required", nil)
	}
	last, ok := models.LastMessage(req.Messages)
	if !ok {
		return services.WrapValidation("messages must not be empty", nil)
	}
	for i, msg := range req.Messages {
		if !msg.Role.IsValid() {
			return services.WrapValidation(fmt.Sprintf("message %d has invalid role %q", i, msg.Role), nil).
				WithDetail("index", i)
		}
	}
	if last.Role != models.RoleUser {
		return services.WrapValidation("last message must be from the user", nil).
			WithDetail("role", string(last.Role))
	}
	if strings.TrimSpace(last.Content) == "" {
		return services.WrapValidation("last message content must not be empty", nil)
	}
	return nil
}

// Stream processes a chat request, passing every generated chunk to callback.
// Errors are *services.DomainError values naming the failed stage.
func (s *ChatService) Stream(ctx context.Context, req *Request, callback providers.StreamCallback) (*Result, error) {
	result := &Result{State: models.RequestStateEmbedding}
	if req != nil {
		result.RequestID = req.RequestID
		result.MessageID = req.MessageID
	}
	if result.RequestID == "" {
		result.RequestID = uuid.NewString()
	}
	if result.MessageID == "" {
		result.MessageID = NewMessageID()
	}
	logger := s.logger.With(zap.String("request_id", result.RequestID))
	start := time.Now()

	if err := ValidateRequest(req); err != nil {
		return s.fail(logger, result, err)
	}
	question := req.Messages[len(req.Messages)-1].Content

	logger.Info("starting chat pipeline",
		zap.Int("messages", len(req.Messages)),
		zap.String("completion_model", s.config.CompletionModel))

	// Step 1: Embed the question
	embedding, err := s.embedder.Embed(ctx, s.config.EmbeddingModel, question)
	if err != nil {
		return s.fail(logger, result, s.externalError(services.StageEmbedding, "embedding request failed", err))
	}
	if embedding.Dimensions() == 0 {
		return s.fail(logger, result, services.WrapExternal(services.StageEmbedding, "embedding provider returned an empty vector", nil))
	}
	s.advance(logger, result, zap.Int("dimensions", embedding.Dimensions()))

	// Step 2: Retrieve context
	retrieved, err := s.retriever.Retrieve(ctx, embedding.Vector)
	if err != nil {
		return s.fail(logger, result, s.externalError(services.StageRetrieval, "similarity search failed", err).
			WithDetail("backend", s.retriever.Backend()))
	}
	result.Chunks = retrieved.Chunks
	s.advance(logger, result, zap.Int("chunks", len(retrieved.Chunks)))

	// Step 3: Build the system prompt
	system, err := s.builder.Build(retrieved.Context, question)
	if err != nil {
		return s.fail(logger, result, services.WrapInternal(services.StagePromptBuilding, "failed to build prompt", err))
	}
	messages := make([]models.Message, 0, len(req.Messages)+1)
	messages = append(messages, system)
	messages = append(messages, req.Messages...)
	s.advance(logger, result, zap.Int("estimated_prompt_tokens", s.tokens.CountMessages(messages)))

	// Step 4: Stream the completion
	var callbackErr error
	err = s.completions.ChatCompletionStream(ctx, &providers.ChatRequest{
		Model:    s.config.CompletionModel,
		Messages: messages,
		User:     result.RequestID,
	}, func(chunk *providers.StreamChunk) error {
		if chunk.FinishReason != "" {
			result.FinishReason = chunk.FinishReason
		}
		if chunk.Usage != nil {
			result.Usage = chunk.Usage
		}
		if err := callback(chunk); err != nil {
			callbackErr = err
			return err
		}
		return nil
	})
	if err != nil {
		if callbackErr != nil && errors.Is(err, callbackErr) {
			return s.fail(logger, result, services.WrapInternal(services.StageStreaming, "failed to deliver stream", err))
		}
		return s.fail(logger, result, s.externalError(services.StageStreaming, "completion stream failed", err))
	}
	if result.FinishReason == "" {
		result.FinishReason = FinishReasonUnknown
	}
	s.advance(logger, result)

	fields := []zap.Field{
		zap.String("finish_reason", result.FinishReason),
		zap.Duration("duration", time.Since(start)),
	}
	if result.Usage != nil {
		fields = append(fields,
			zap.Int("prompt_tokens", result.Usage.PromptTokens),
			zap.Int("completion_tokens", result.Usage.CompletionTokens))
	}
	logger.Info("chat pipeline completed", fields...)

	return result, nil
}

// advance moves the request to its next state
func (s *ChatService) advance(logger *zap.Logger, result *Result, fields ...zap.Field) {
	from := result.State
	result.State = from.Next()
	logger.Debug("pipeline state changed",
		append(fields,
			zap.String("from", string(from)),
			zap.String("to", string(result.State)))...)
}

// fail moves the request to the failed state and logs the failing stage
func (s *ChatService) fail(logger *zap.Logger, result *Result, err error) (*Result, error) {
	from := result.State
	result.State = models.RequestStateFailed

	stage := services.StageOf(err)
	if services.IsValidationError(err) {
		logger.Info("chat request rejected", zap.String("stage", string(stage)), zap.Error(err))
	} else {
		logger.Error("chat pipeline failed",
			zap.String("stage", string(stage)),
			zap.String("state", string(from)),
			zap.Error(err))
	}
	return result, err
}

// externalError attributes a collaborator failure to stage, keeping the raw
// error and its upstream status code
func (s *ChatService) externalError(stage services.Stage, message string, err error) *services.DomainError {
	domainErr := services.WrapExternal(stage, message, err)
	if code := providers.StatusCodeOf(err); code != 0 {
		domainErr.WithDetail("status_code", code)
	}
	if errors.Is(err, context.Canceled) {
		domainErr.WithDetail("canceled", true)
	}
	return domainErr
}
