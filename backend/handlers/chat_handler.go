package handlers

import (
	"net/http"

	"github.com/upb/butterfly-chat/backend/app"
	"github.com/upb/butterfly-chat/backend/internal/observability"
	"github.com/upb/butterfly-chat/backend/internal/streaming"
	"github.com/upb/butterfly-chat/backend/middleware"
	"github.com/upb/butterfly-chat/backend/services/chat"
	"github.com/upb/butterfly-chat/backend/services/providers"
	"github.com/upb/butterfly-chat/backend/utils"
	"go.uber.org/zap"
)

// ChatHandler handles POST /api/chat.
// The answer is streamed in the configured protocol. Failures before the
// first streamed byte get a JSON error response; later failures are reported
// in band where the protocol allows it.
func ChatHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := observability.FromContext(ctx, deps.Logger)

		var req chat.Request
		if err := utils.DecodeJSON(w, r, &req); err != nil {
			HandleValidationError(w, err, logger)
			return
		}
		if err := utils.ValidateStruct(&req); err != nil {
			HandleValidationError(w, err, logger)
			return
		}
		req.RequestID = middleware.GetRequestIDFromContext(ctx)
		req.MessageID = chat.NewMessageID()

		enc, err := streaming.NewEncoder(deps.Config.Pipeline.StreamProtocol, w, req.MessageID)
		if err != nil {
			logger.Error("failed to create stream encoder", zap.Error(err))
			_ = utils.WriteInternalServerError(w, "")
			return
		}

		result, err := deps.Chat.Stream(ctx, &req, func(chunk *providers.StreamChunk) error {
			return enc.Text(chunk.Delta)
		})
		if err != nil {
			if !enc.Started() {
				HandleServiceError(w, err, logger)
				return
			}
			if writeErr := enc.Error(PublicMessage(err)); writeErr != nil {
				logger.Debug("could not report stream error to client", zap.Error(writeErr))
			}
			return
		}

		var usage *streaming.Usage
		if result.Usage != nil {
			usage = &streaming.Usage{
				PromptTokens:     result.Usage.PromptTokens,
				CompletionTokens: result.Usage.CompletionTokens,
			}
		}
		if err := enc.Finish(result.FinishReason, usage); err != nil {
			logger.Warn("failed to finish stream", zap.Error(err))
		}
	}
}
