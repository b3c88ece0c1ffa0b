// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	ErrCodeHistoryLoadFailed   ErrorCode = "HISTORY_LOAD_FAILED"
	ErrCodeHistoryAppendFailed ErrorCode = "HISTORY_APPEND_FAILED"

	ErrCodeTemplateRegistryInvalid ErrorCode = "TEMPLATE_REGISTRY_INVALID"

	ErrCodeClassifierUnavailable ErrorCode = "CLASSIFIER_UNAVAILABLE"
	ErrCodeGeneratorUnavailable  ErrorCode = "GENERATOR_UNAVAILABLE"

	ErrCodeTurnIndexingFailed ErrorCode = "TURN_INDEXING_FAILED"

	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout         ErrorCode = "TIMEOUT_ERROR"
	ErrCodeNotFound        ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeAuthentication  ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeBusinessRule    ErrorCode = "BUSINESS_RULE_VIOLATION"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata adds a key to Metadata and returns e.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	e := &StandardError{
		Code:      code,
		Message:   message,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func NewInvalidInputError(details string) *StandardError {
	e := newError(ErrCodeInvalidInput, "Invalid job input", nil, false)
	e.Details = details
	return e
}

func NewHistoryLoadFailedError(sessionID string, err error) *StandardError {
	return newError(ErrCodeHistoryLoadFailed, "Failed to load conversation history", err, true).
		WithMetadata("sessionId", sessionID)
}

func NewHistoryAppendFailedError(sessionID string, err error) *StandardError {
	return newError(ErrCodeHistoryAppendFailed, "Failed to append conversation history", err, true).
		WithMetadata("sessionId", sessionID)
}

func NewTemplateRegistryInvalidError(err error) *StandardError {
	return newError(ErrCodeTemplateRegistryInvalid, "Response template registry is invalid", err, false)
}

func NewClassifierUnavailableError(err error) *StandardError {
	return newError(ErrCodeClassifierUnavailable, "Remote intent classifier unavailable", err, true)
}

func NewGeneratorUnavailableError(err error) *StandardError {
	return newError(ErrCodeGeneratorUnavailable, "Remote response generator unavailable", err, true)
}

func NewTurnIndexingFailedError(err error) *StandardError {
	return newError(ErrCodeTurnIndexingFailed, "Failed to index conversation turn", err, true)
}

// Generic constructors

func NewBusinessRuleError(message, details string) *StandardError {
	e := newError(ErrCodeBusinessRule, message, nil, false)
	e.Details = details
	return e
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), err, true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err, true)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	e := newError(ErrCodeNotFound, fmt.Sprintf("Resource not found in %s", service), nil, false)
	e.Details = details
	return e
}

func NewAuthenticationError(details string) *StandardError {
	e := newError(ErrCodeAuthentication, "Authentication failed", nil, false)
	e.Details = details
	return e
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeHistoryLoadFailed,
		ErrCodeHistoryAppendFailed,
		ErrCodeExternalService:
		return 3

	case ErrCodeClassifierUnavailable,
		ErrCodeGeneratorUnavailable,
		ErrCodeTimeout:
		return 2

	case ErrCodeTurnIndexingFailed:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda. BPMN
// codes are the internal codes.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandardError unwraps err to a StandardError if it carries one.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "HISTORY"):
		return "STORAGE"
	case strings.Contains(codeStr, "TEMPLATE"):
		return "TEMPLATE"
	case strings.Contains(codeStr, "CLASSIFIER") || strings.Contains(codeStr, "GENERATOR"):
		return "AI"
	case strings.Contains(codeStr, "INDEXING"):
		return "ANALYTICS"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "SERVICE") || strings.Contains(codeStr, "TIMEOUT"):
		return "EXTERNAL"
	default:
		return "OTHER"
	}
}
