// Package errors provides standardized error handling for the assistant and its
// BPMN job worker.
package errors

import (
	"errors"
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
	ErrCodeClassificationUnavailable ErrorCode = "CLASSIFICATION_UNAVAILABLE"
	ErrCodeLLMTimeout                ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMUnavailable            ErrorCode = "LLM_UNAVAILABLE"
	ErrCodeMalformedModelOutput      ErrorCode = "MALFORMED_MODEL_OUTPUT"

	ErrCodeInventoryUnavailable ErrorCode = "INVENTORY_UNAVAILABLE"

	ErrCodeContinuationStoreFailed ErrorCode = "CONTINUATION_STORE_FAILED"
	ErrCodeHistoryStoreFailed      ErrorCode = "HISTORY_STORE_FAILED"

	ErrCodeCatalogSearchFailed    ErrorCode = "CATALOG_SEARCH_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeWorkflowEngineUnavailable ErrorCode = "WORKFLOW_ENGINE_UNAVAILABLE"
	ErrCodeWorkflowEngineRejected    ErrorCode = "WORKFLOW_ENGINE_REJECTED"

	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
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

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

func detailsOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// NewClassificationUnavailableError is fatal for the request: routing could not complete.
func NewClassificationUnavailableError(err error) *StandardError {
	return newError(ErrCodeClassificationUnavailable, "Request classification unavailable", detailsOf(err), true)
}

func NewLLMTimeoutError(err error) *StandardError {
	return newError(ErrCodeLLMTimeout, "Language model call timed out", detailsOf(err), true)
}

func NewLLMUnavailableError(err error) *StandardError {
	return newError(ErrCodeLLMUnavailable, "Language model unavailable", detailsOf(err), true)
}

func NewMalformedModelOutputError(details string) *StandardError {
	return newError(ErrCodeMalformedModelOutput, "Language model returned malformed output", details, false)
}

func NewInventoryUnavailableError(err error) *StandardError {
	return newError(ErrCodeInventoryUnavailable, "Inventory store unavailable", detailsOf(err), true)
}

func NewContinuationStoreError(err error) *StandardError {
	return newError(ErrCodeContinuationStoreFailed, "Pending continuation store failed", detailsOf(err), true)
}

func NewHistoryStoreError(err error) *StandardError {
	return newError(ErrCodeHistoryStoreFailed, "Conversation history store failed", detailsOf(err), true)
}

func NewCatalogSearchFailedError(err error) *StandardError {
	return newError(ErrCodeCatalogSearchFailed, "Catalog search failed", detailsOf(err), true)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	e := newError(ErrCodeNotificationSendFailed, "Notification send failed", detailsOf(err), true)
	e.Metadata = map[string]interface{}{"channel": channel}
	return e
}

// NewWorkflowEngineError wraps a Zeebe failure. Connection and deadline
// problems are retryable; rejections by the broker are not.
func NewWorkflowEngineError(operation string, err error, retryable bool) *StandardError {
	code := ErrCodeWorkflowEngineRejected
	if retryable {
		code = ErrCodeWorkflowEngineUnavailable
	}
	e := newError(code, "Workflow engine operation failed", detailsOf(err), retryable)
	e.Metadata = map[string]interface{}{"operation": operation}
	return e
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid input", details, false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeInventoryUnavailable,
		ErrCodeContinuationStoreFailed,
		ErrCodeHistoryStoreFailed,
		ErrCodeCatalogSearchFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeWorkflowEngineUnavailable,
		ErrCodeLLMUnavailable:
		return 3

	case ErrCodeClassificationUnavailable,
		ErrCodeLLMTimeout:
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandard unwraps err to a *StandardError, wrapping unknown errors as INTERNAL_ERROR.
func AsStandard(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return newError(ErrCodeInternalError, "Unexpected error", detailsOf(err), false)
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CLASSIFICATION") || strings.Contains(codeStr, "LLM") || strings.Contains(codeStr, "MODEL"):
		return "AI"
	case strings.Contains(codeStr, "INVENTORY"):
		return "INVENTORY"
	case strings.Contains(codeStr, "CONTINUATION") || strings.Contains(codeStr, "HISTORY"):
		return "STATE"
	case strings.Contains(codeStr, "CATALOG"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "WORKFLOW"):
		return "WORKFLOW"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
