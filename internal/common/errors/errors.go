// Package errors holds the error taxonomy of the context pipeline: soft
// errors are dropped where they happen, hard errors reach the user.
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
	// Soft: the failing unit is dropped and the pipeline continues.
	ErrCodeQueryDerivationFailed ErrorCode = "QUERY_DERIVATION_FAILED"
	ErrCodeQueryOutputInvalid    ErrorCode = "QUERY_OUTPUT_INVALID"
	ErrCodeSearchQueryFailed     ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeWebSearchTimeout      ErrorCode = "WEB_SEARCH_TIMEOUT"
	ErrCodeFetchFailed           ErrorCode = "FETCH_FAILED"
	ErrCodeFetchTimeout          ErrorCode = "FETCH_TIMEOUT"
	ErrCodeDenylistLoadFailed    ErrorCode = "DENYLIST_LOAD_FAILED"

	// Hard: surfaced to the caller as a single failure state.
	ErrCodeLLMGenerationFailed ErrorCode = "LLM_GENERATION_FAILED"
	ErrCodeLLMTimeout          ErrorCode = "LLM_TIMEOUT"
	ErrCodeCircuitOpen         ErrorCode = "CIRCUIT_OPEN"

	// Input / request errors.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeSessionBusy  ErrorCode = "SESSION_BUSY"
	ErrCodeNotFound     ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
)

// UserFacingMessage is the only text shown to a user when answer generation fails.
const UserFacingMessage = "Sorry, an error occurred. Please try again later."

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
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError is the shape thrown back to the Zeebe engine when a stage runs
// as a job worker.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for Zeebe job failure variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newStandard(code ErrorCode, message string, cause error) *StandardError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewQueryDerivationFailedError wraps a failed call to the generation service
// made for query derivation.
func NewQueryDerivationFailedError(err error) *StandardError {
	return newStandard(ErrCodeQueryDerivationFailed, "Query derivation call failed", err)
}

// NewQueryOutputInvalidError marks structured output that did not parse or validate.
func NewQueryOutputInvalidError(details string) *StandardError {
	e := newStandard(ErrCodeQueryOutputInvalid, "Query derivation output is not a list of strings", nil)
	e.Details = details
	return e
}

// NewSearchQueryFailedError wraps one failed search request.
func NewSearchQueryFailedError(query string, err error) *StandardError {
	e := newStandard(ErrCodeSearchQueryFailed, "Search request failed", err)
	e.Metadata = map[string]interface{}{"query": query}
	return e
}

// NewWebSearchTimeoutError marks a search request that hit the client timeout.
func NewWebSearchTimeoutError(query string) *StandardError {
	e := newStandard(ErrCodeWebSearchTimeout, "Search request timed out", nil)
	e.Metadata = map[string]interface{}{"query": query}
	return e
}

// NewFetchFailedError wraps one failed content fetch.
func NewFetchFailedError(url string, err error) *StandardError {
	e := newStandard(ErrCodeFetchFailed, "Content fetch failed", err)
	e.Metadata = map[string]interface{}{"url": url}
	return e
}

// NewFetchTimeoutError marks a fetch that missed its deadline.
func NewFetchTimeoutError(url string, deadline time.Duration) *StandardError {
	e := newStandard(ErrCodeFetchTimeout, "Content fetch exceeded deadline", nil)
	e.Details = fmt.Sprintf("deadline: %s", deadline)
	e.Metadata = map[string]interface{}{"url": url}
	return e
}

// NewDenylistLoadFailedError wraps a failed denylist query.
func NewDenylistLoadFailedError(err error) *StandardError {
	return newStandard(ErrCodeDenylistLoadFailed, "Denylist load failed", err)
}

// NewLLMGenerationFailedError wraps a failed answer generation.
func NewLLMGenerationFailedError(err error) *StandardError {
	return newStandard(ErrCodeLLMGenerationFailed, "Answer generation failed", err)
}

// NewLLMTimeoutError marks an answer generation that ran out of time.
func NewLLMTimeoutError(err error) *StandardError {
	return newStandard(ErrCodeLLMTimeout, "Answer generation timed out", err)
}

// NewCircuitOpenError marks a call short-circuited by an open breaker.
func NewCircuitOpenError(service string, err error) *StandardError {
	return newStandard(ErrCodeCircuitOpen, fmt.Sprintf("Circuit open for '%s'", service), err)
}

// NewInvalidInputError marks a malformed request.
func NewInvalidInputError(details string) *StandardError {
	e := newStandard(ErrCodeInvalidInput, "Invalid input", nil)
	e.Details = details
	return e
}

// NewSessionBusyError marks a session that already has a run in flight.
func NewSessionBusyError(sessionID string) *StandardError {
	e := newStandard(ErrCodeSessionBusy, "A response is already being generated for this session", nil)
	e.Details = fmt.Sprintf("sessionId: %s", sessionID)
	return e
}

// NewResourceNotFoundError marks an unknown resource id.
func NewResourceNotFoundError(kind, id string) *StandardError {
	e := newStandard(ErrCodeNotFound, fmt.Sprintf("%s not found", kind), nil)
	e.Details = fmt.Sprintf("id: %s", id)
	return e
}

// ==========================
// 4. Classification
// ==========================

// IsSoft reports whether code names a failure the pipeline absorbs.
func IsSoft(code ErrorCode) bool {
	switch code {
	case ErrCodeQueryDerivationFailed,
		ErrCodeQueryOutputInvalid,
		ErrCodeSearchQueryFailed,
		ErrCodeWebSearchTimeout,
		ErrCodeFetchFailed,
		ErrCodeFetchTimeout,
		ErrCodeDenylistLoadFailed:
		return true
	}
	return false
}

// CodeOf extracts the ErrorCode from err, or ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// Normalize returns err as a *StandardError, wrapping it when needed.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return newStandard(ErrCodeInternal, "Unexpected error", err)
}

// ConvertToBPMNError converts a StandardError for the Zeebe engine. The
// pipeline never retries, so no retry count is carried.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	return &BPMNError{
		Code:    string(stdErr.Code),
		Message: stdErr.Message,
		Details: stdErr.Details,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"errorCategory":     GetErrorCategory(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "QUERY_DERIVATION") || strings.Contains(codeStr, "QUERY_OUTPUT"):
		return "DERIVATION"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "FETCH"):
		return "FETCH"
	case strings.Contains(codeStr, "DENYLIST"):
		return "FILTER"
	case strings.Contains(codeStr, "LLM") || strings.Contains(codeStr, "CIRCUIT"):
		return "GENERATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "SESSION") || strings.Contains(codeStr, "NOT_FOUND"):
		return "REQUEST"
	default:
		return "OTHER"
	}
}
