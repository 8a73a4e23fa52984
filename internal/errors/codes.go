// Package errors provides structured error handling for topicsearch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 3XX: Backend errors (searchers, classifier)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryBackend indicates an unavailable or timed out collaborator.
	CategoryBackend Category = "BACKEND"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound  = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid   = "ERR_102_CONFIG_INVALID"
	ErrCodeUnknownCategory = "ERR_103_UNKNOWN_CATEGORY"

	// Backend errors (300-399)
	ErrCodeBackendTimeout        = "ERR_301_BACKEND_TIMEOUT"
	ErrCodeBackendUnavailable    = "ERR_302_BACKEND_UNAVAILABLE"
	ErrCodeClassifierUnavailable = "ERR_303_CLASSIFIER_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeQueryEmpty        = "ERR_404_QUERY_EMPTY"

	// Internal errors (500-599)
	ErrCodeInternal         = "ERR_501_INTERNAL"
	ErrCodeEmbeddingFailed  = "ERR_502_EMBEDDING_FAILED"
	ErrCodeSearchFailed     = "ERR_503_SEARCH_FAILED"
	ErrCodeConsistencyFault = "ERR_504_CONSISTENCY_FAULT"
	ErrCodeIndexFailed      = "ERR_505_INDEX_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '3':
		return CategoryBackend
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
// Backend and consistency problems degrade a query, they never abort the process.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeIndexFailed:
		return SeverityFatal
	case ErrCodeBackendTimeout, ErrCodeBackendUnavailable,
		ErrCodeClassifierUnavailable, ErrCodeConsistencyFault:
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeBackendTimeout, ErrCodeBackendUnavailable, ErrCodeClassifierUnavailable:
		return true
	default:
		return false
	}
}

// kindFromCode maps a code onto its kind sentinel.
func kindFromCode(code string) error {
	switch code {
	case ErrCodeBackendTimeout, ErrCodeBackendUnavailable:
		return ErrBackendUnavailable
	case ErrCodeClassifierUnavailable:
		return ErrClassifierUnavailable
	case ErrCodeConsistencyFault:
		return ErrConsistencyFault
	}
	switch categoryFromCode(code) {
	case CategoryConfig:
		return ErrConfiguration
	case CategoryValidation:
		return ErrInvalidInput
	}
	return ErrInternal
}
