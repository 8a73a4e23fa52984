package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchError_Unwrap_PreservesCause(t *testing.T) {
	// Given: an underlying transport error
	cause := errors.New("connection refused")

	// When: wrapping it as a backend error
	err := BackendError("semantic", cause)

	// Then: the cause is reachable through the chain
	require.NotNil(t, err)
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestSearchError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigInvalid,
			message:  "alpha out of range",
			expected: "[ERR_102_CONFIG_INVALID] alpha out of range",
		},
		{
			name:     "backend error",
			code:     ErrCodeBackendUnavailable,
			message:  "lexical searcher failed",
			expected: "[ERR_302_BACKEND_UNAVAILABLE] lexical searcher failed",
		},
		{
			name:     "validation error",
			code:     ErrCodeQueryEmpty,
			message:  "query is empty",
			expected: "[ERR_404_QUERY_EMPTY] query is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestSearchError_Is_MatchesByCode(t *testing.T) {
	err := New(ErrCodeUnknownCategory, "unknown category", nil)
	assert.True(t, errors.Is(err, New(ErrCodeUnknownCategory, "other message", nil)))
	assert.False(t, errors.Is(err, New(ErrCodeInvalidInput, "unknown category", nil)))
}

func TestSearchError_Is_MatchesKindSentinel(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"config invalid", ConfigError("bad alpha", nil), ErrConfiguration},
		{"unknown category", UnknownCategoryError("sports"), ErrConfiguration},
		{"backend", BackendError("lexical", errors.New("boom")), ErrBackendUnavailable},
		{"backend timeout", BackendError("semantic", context.DeadlineExceeded), ErrBackendUnavailable},
		{"classifier", New(ErrCodeClassifierUnavailable, "llm down", nil), ErrClassifierUnavailable},
		{"consistency", ConsistencyError("doc_9"), ErrConsistencyFault},
		{"empty query", New(ErrCodeQueryEmpty, "empty", nil), ErrInvalidInput},
		{"internal", InternalError("oops", nil), ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.kind)
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.kind)
		})
	}
}

func TestSearchError_Is_DoesNotMatchOtherKinds(t *testing.T) {
	err := BackendError("lexical", errors.New("boom"))
	assert.NotErrorIs(t, err, ErrConfiguration)
	assert.NotErrorIs(t, err, ErrConsistencyFault)
}

func TestBackendError_DeadlineUsesTimeoutCode(t *testing.T) {
	err := BackendError("semantic", fmt.Errorf("search: %w", context.DeadlineExceeded))
	assert.Equal(t, ErrCodeBackendTimeout, err.Code)
	assert.Equal(t, "semantic", err.Details["source"])

	err = BackendError("semantic", errors.New("refused"))
	assert.Equal(t, ErrCodeBackendUnavailable, err.Code)
}

func TestSearchError_WithDetail_AddsContext(t *testing.T) {
	err := New(ErrCodeSearchFailed, "search failed", nil).
		WithDetail("query", "space shuttle").
		WithDetail("top_k", "10")

	assert.Equal(t, "space shuttle", err.Details["query"])
	assert.Equal(t, "10", err.Details["top_k"])
}

func TestSearchError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code     string
		expected Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeUnknownCategory, CategoryConfig},
		{ErrCodeBackendTimeout, CategoryBackend},
		{ErrCodeClassifierUnavailable, CategoryBackend},
		{ErrCodeInvalidInput, CategoryValidation},
		{ErrCodeConsistencyFault, CategoryInternal},
		{"bad", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, New(tt.code, "msg", nil).Category)
		})
	}
}

func TestSearchError_SeverityAndRetryable(t *testing.T) {
	tests := []struct {
		code      string
		severity  Severity
		retryable bool
	}{
		{ErrCodeBackendTimeout, SeverityWarning, true},
		{ErrCodeBackendUnavailable, SeverityWarning, true},
		{ErrCodeClassifierUnavailable, SeverityWarning, true},
		{ErrCodeConsistencyFault, SeverityWarning, false},
		{ErrCodeIndexFailed, SeverityFatal, false},
		{ErrCodeConfigInvalid, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, tt.retryable, IsRetryable(err))
			assert.Equal(t, tt.severity == SeverityFatal, IsFatal(err))
		})
	}
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestGetCode_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("search: %w", ConsistencyError("doc_3"))
	assert.Equal(t, ErrCodeConsistencyFault, GetCode(err))
	assert.Equal(t, CategoryInternal, GetCategory(err))
	assert.Equal(t, "", GetCode(errors.New("plain")))
	assert.False(t, IsRetryable(errors.New("plain")))
}
