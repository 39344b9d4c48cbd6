package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeExternal   ErrorType = "external"
)

// Stage names the pipeline step that produced an error
type Stage string

const (
	StageInput          Stage = "input"
	StageEmbedding      Stage = "embedding"
	StageRetrieval      Stage = "retrieval"
	StagePromptBuilding Stage = "prompt_building"
	StageStreaming      Stage = "streaming"
)

// DomainError represents a structured error with additional context.
// Err always holds the raw cause so callers can still inspect provider errors.
type DomainError struct {
	Type    ErrorType
	Stage   Stage
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	prefix := string(e.Type)
	if e.Stage != "" {
		prefix += ": " + string(e.Stage)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError of the same type. A target with a stage
// also requires the stage to match.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if t.Stage != "" && t.Stage != e.Stage {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// NewStageError creates a domain error attributed to a pipeline stage
func NewStageError(stage Stage, errType ErrorType, message string, err error) *DomainError {
	e := NewDomainError(errType, message, err)
	e.Stage = stage
	return e
}

// Sentinels for errors.Is checks. Never call WithDetail on these; build a
// fresh error with NewStageError instead.
var (
	ErrInvalidInput    = NewStageError(StageInput, ErrorTypeValidation, "invalid input", nil)
	ErrEmbeddingFailed = NewStageError(StageEmbedding, ErrorTypeExternal, "embedding request failed", nil)
	ErrRetrievalFailed = NewStageError(StageRetrieval, ErrorTypeExternal, "similarity search failed", nil)
	ErrPromptBuild     = NewStageError(StagePromptBuilding, ErrorTypeInternal, "failed to build prompt", nil)
	ErrStreamingFailed = NewStageError(StageStreaming, ErrorTypeExternal, "completion stream failed", nil)
	ErrProviderError   = NewDomainError(ErrorTypeExternal, "upstream provider error", nil)
	ErrInternal        = NewDomainError(ErrorTypeInternal, "internal server error", nil)
)

// Error type checking helper functions

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeInternal
}

// IsExternalError checks if an error is an external provider error
func IsExternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeExternal
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// StageOf returns the pipeline stage that failed, or empty string if the
// error carries no stage
func StageOf(err error) Stage {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Stage
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapValidation wraps an error as a request validation error
func WrapValidation(message string, err error) *DomainError {
	return NewStageError(StageInput, ErrorTypeValidation, message, err)
}

// WrapInternal wraps an error as an internal error of the given stage
func WrapInternal(stage Stage, message string, err error) *DomainError {
	return NewStageError(stage, ErrorTypeInternal, message, err)
}

// WrapExternal wraps an error as an external provider error of the given stage
func WrapExternal(stage Stage, message string, err error) *DomainError {
	return NewStageError(stage, ErrorTypeExternal, message, err)
}
