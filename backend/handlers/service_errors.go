package handlers

import (
	"errors"
	"net/http"

	"github.com/upb/butterfly-chat/backend/services"
	"github.com/upb/butterfly-chat/backend/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses.
// It must only be called before any part of a streamed body was written.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	// Copy so the error's own details are never mutated
	details := make(map[string]interface{})
	for k, v := range services.GetErrorDetails(err) {
		details[k] = v
	}
	if stage := services.StageOf(err); stage != "" {
		details["stage"] = string(stage)
	}

	// Map error type to HTTP status and response
	switch {
	case services.IsValidationError(err):
		if err := utils.WriteBadRequest(w, PublicMessage(err), details); err != nil {
			logger.Error("failed to write bad request response", zap.Error(err))
		}

	case services.IsExternalError(err):
		// Upstream provider and vector store errors are mapped to 502 Bad Gateway
		if err := utils.WriteBadGateway(w, PublicMessage(err), details); err != nil {
			logger.Error("failed to write bad gateway response", zap.Error(err))
		}

	case services.IsInternalError(err):
		// Log internal errors but return generic message
		logger.Error("internal server error", zap.Error(err))
		if err := utils.WriteInternalServerError(w, "An internal error occurred"); err != nil {
			logger.Error("failed to write internal error response", zap.Error(err))
		}

	default:
		// Unknown error type - log and return internal error
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		if err := utils.WriteInternalServerError(w, "An unexpected error occurred"); err != nil {
			logger.Error("failed to write internal error response", zap.Error(err))
		}
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{})
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	// Generic validation error
	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}

// PublicMessage returns the client-facing description of err. Domain errors
// expose their message and, for validation errors, nothing else.
func PublicMessage(err error) string {
	var domainErr *services.DomainError
	if !errors.As(err, &domainErr) {
		return "An unexpected error occurred"
	}
	if domainErr.Type == services.ErrorTypeExternal && domainErr.Err != nil {
		return domainErr.Message + ": " + domainErr.Err.Error()
	}
	return domainErr.Message
}
