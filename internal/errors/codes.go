// Package errors provides structured error handling for amanread.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration and data directory errors
//   - 2XX: Storage errors (database, index files)
//   - 3XX: Network errors (fetching, Ollama)
//   - 4XX: Validation and domain errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates storage and disk errors.
	CategoryIO Category = "IO"
	// CategoryNetwork indicates network-related errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input validation and domain rule errors.
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
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeDataDir        = "ERR_103_DATA_DIR"
	ErrCodeDataDirLocked  = "ERR_104_DATA_DIR_LOCKED"

	// Storage errors (200-299)
	ErrCodeStorageFailed = "ERR_201_STORAGE_FAILED"
	ErrCodeCorruptIndex  = "ERR_202_INDEX_CORRUPT"
	ErrCodeFileNotFound  = "ERR_203_FILE_NOT_FOUND"

	// Network errors (300-399)
	ErrCodeNetworkTimeout     = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeNetworkUnavailable = "ERR_302_NETWORK_UNAVAILABLE"
	ErrCodeFetchFailed        = "ERR_303_FETCH_FAILED"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeConflict          = "ERR_402_DOCUMENT_CONFLICT"
	ErrCodeNotFound          = "ERR_403_DOCUMENT_NOT_FOUND"
	ErrCodeNoParser          = "ERR_404_NO_PARSER"
	ErrCodeQueryEmpty        = "ERR_405_QUERY_EMPTY"
	ErrCodeDimensionMismatch = "ERR_406_DIMENSION_MISMATCH"

	// Internal errors (500-599)
	ErrCodeInternal        = "ERR_501_INTERNAL"
	ErrCodeEmbeddingFailed = "ERR_502_EMBEDDING_FAILED"
	ErrCodeSearchFailed    = "ERR_503_SEARCH_FAILED"
	ErrCodeSummaryFailed   = "ERR_504_SUMMARY_FAILED"
	ErrCodeIndexFailed     = "ERR_505_INDEX_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "ERR_402_..." -> '4'
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeDataDirLocked:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeNetworkUnavailable, ErrCodeFetchFailed:
		return true
	default:
		return false
	}
}
