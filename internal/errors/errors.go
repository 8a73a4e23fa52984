package errors

import (
	"context"
	"errors"
	"fmt"
)

// Kind sentinels. Every SearchError maps onto one of these through its code,
// so callers can branch with errors.Is without knowing individual codes.
var (
	// ErrConfiguration marks invalid construction or request parameters.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidInput marks a malformed query request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrBackendUnavailable marks a searcher that failed or timed out.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrClassifierUnavailable marks a classifier that could not answer.
	ErrClassifierUnavailable = errors.New("classifier unavailable")
	// ErrConsistencyFault marks a document id unknown to the document store.
	ErrConsistencyFault = errors.New("consistency fault")
	// ErrInternal marks anything else.
	ErrInternal = errors.New("internal error")
)

// SearchError is the structured error type for topicsearch.
type SearchError struct {
	// Code is the unique error code (e.g., "ERR_302_BACKEND_UNAVAILABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *SearchError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SearchError) Unwrap() error {
	return e.Cause
}

// Is matches another SearchError by code, or the kind sentinel the code belongs to.
func (e *SearchError) Is(target error) bool {
	if t, ok := target.(*SearchError); ok {
		return e.Code == t.Code
	}
	return target == kindFromCode(e.Code)
}

// WithDetail adds a key-value detail to the error.
func (e *SearchError) WithDetail(key, value string) *SearchError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *SearchError) WithSuggestion(suggestion string) *SearchError {
	e.Suggestion = suggestion
	return e
}

// New creates a SearchError. Category, severity and retryability derive from the code.
func New(code string, message string, cause error) *SearchError {
	return &SearchError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SearchError from an existing error, reusing its message.
func Wrap(code string, err error) *SearchError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration error.
func ConfigError(message string, cause error) *SearchError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// UnknownCategoryError reports a category outside the configured set.
func UnknownCategoryError(category string) *SearchError {
	return New(ErrCodeUnknownCategory, fmt.Sprintf("unknown category %q", category), nil).
		WithDetail("category", category).
		WithSuggestion("Run 'topicsearch categories' to list valid categories")
}

// ValidationError creates an input validation error.
func ValidationError(message string, cause error) *SearchError {
	return New(ErrCodeInvalidInput, message, cause)
}

// BackendError reports a failed searcher. Deadline overruns get the timeout code.
func BackendError(source string, cause error) *SearchError {
	code := ErrCodeBackendUnavailable
	if errors.Is(cause, context.DeadlineExceeded) {
		code = ErrCodeBackendTimeout
	}
	msg := fmt.Sprintf("%s searcher failed", source)
	if cause != nil {
		msg = fmt.Sprintf("%s searcher failed: %v", source, cause)
	}
	return New(code, msg, cause).WithDetail("source", source)
}

// ConsistencyError reports a document id that the document store cannot resolve.
func ConsistencyError(docID string) *SearchError {
	return New(ErrCodeConsistencyFault, fmt.Sprintf("document %q not found in store", docID), nil).
		WithDetail("doc_id", docID)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *SearchError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is a retryable SearchError.
func IsRetryable(err error) bool {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code, or "" if err is not a SearchError.
func GetCode(err error) string {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category, or "" if err is not a SearchError.
func GetCategory(err error) Category {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}
