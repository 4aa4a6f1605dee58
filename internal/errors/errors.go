package errors

import (
	"errors"
	"fmt"
)

// AmanError is the structured error type for amanread.
// It carries a stable code for programmatic handling, plus context for logs
// and user-facing output.
type AmanError struct {
	// Code is the unique error code (e.g., "ERR_403_DOCUMENT_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
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
func (e *AmanError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *AmanError) Unwrap() error {
	return e.Cause
}

// Is matches another AmanError by code, so errors.Is(err, ErrNotFound) works
// regardless of message or details.
func (e *AmanError) Is(target error) bool {
	if t, ok := target.(*AmanError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *AmanError) WithDetail(key, value string) *AmanError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *AmanError) WithSuggestion(suggestion string) *AmanError {
	e.Suggestion = suggestion
	return e
}

// New creates a new AmanError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *AmanError {
	return &AmanError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an AmanError from an existing error.
// The error's message becomes the AmanError message.
func Wrap(code string, err error) *AmanError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels for errors.Is comparisons. They match any AmanError with the same code.
var (
	ErrConflict     = &AmanError{Code: ErrCodeConflict}
	ErrNotFound     = &AmanError{Code: ErrCodeNotFound}
	ErrNoParser     = &AmanError{Code: ErrCodeNoParser}
	ErrQueryEmpty   = &AmanError{Code: ErrCodeQueryEmpty}
	ErrInvalidInput = &AmanError{Code: ErrCodeInvalidInput}
)

// ConflictError reports a document whose URL is already stored.
func ConflictError(url string) *AmanError {
	return New(ErrCodeConflict, fmt.Sprintf("document already exists: %s", url), nil).
		WithDetail("url", url)
}

// NotFoundError reports an unknown document id or URL.
func NotFoundError(key string) *AmanError {
	return New(ErrCodeNotFound, fmt.Sprintf("document not found: %s", key), nil).
		WithDetail("key", key)
}

// NoParserError reports a source that no parser in the chain accepts.
func NoParserError(source, hint string) *AmanError {
	return New(ErrCodeNoParser, fmt.Sprintf("no parser available for %s", source), nil).
		WithDetail("source", source).
		WithDetail("content_type", hint).
		WithSuggestion("Pass --type or a content type the parser chain recognises")
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *AmanError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// StorageError creates a storage-related error.
func StorageError(message string, cause error) *AmanError {
	return New(ErrCodeStorageFailed, message, cause)
}

// NetworkError creates a network-related error.
// Network errors are retryable.
func NetworkError(message string, cause error) *AmanError {
	return New(ErrCodeNetworkUnavailable, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *AmanError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *AmanError {
	return New(ErrCodeInternal, message, cause)
}

// IsConflict reports whether err is a duplicate-URL conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsNotFound reports whether err is a missing-document error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var ae *AmanError
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}

// GetCode extracts the error code from an AmanError anywhere in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var ae *AmanError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// GetCategory extracts the category from an AmanError anywhere in the chain.
func GetCategory(err error) Category {
	var ae *AmanError
	if errors.As(err, &ae) {
		return ae.Category
	}
	return ""
}
