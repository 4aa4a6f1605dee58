// Package mcp exposes the reading list to AI clients over the Model Context
// Protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"

	amerrors "github.com/Aman-CERP/amanread/internal/errors"
)

// MCP error codes. The -320xx range below -32600 is application defined.
const (
	// ErrCodeUnavailable indicates a backend (network, Ollama) failed.
	ErrCodeUnavailable = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// ErrCodeNotFound indicates an unknown document or file.
	ErrCodeNotFound = -32004

	// ErrCodeConflict indicates the URL is already in the library.
	ErrCodeConflict = -32009

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	var amanErr *amerrors.AmanError
	if errors.As(err, &amanErr) {
		return mapAmanError(amanErr)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// mapAmanError maps by code first, then by category.
func mapAmanError(ae *amerrors.AmanError) *MCPError {
	message := ae.Message
	if ae.Suggestion != "" {
		message = fmt.Sprintf("%s %s", ae.Message, ae.Suggestion)
	}

	switch ae.Code {
	case amerrors.ErrCodeConflict:
		return &MCPError{Code: ErrCodeConflict, Message: message}
	case amerrors.ErrCodeNotFound, amerrors.ErrCodeFileNotFound:
		return &MCPError{Code: ErrCodeNotFound, Message: message}
	case amerrors.ErrCodeNetworkTimeout:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case amerrors.ErrCodeEmbeddingFailed, amerrors.ErrCodeSummaryFailed:
		return &MCPError{Code: ErrCodeUnavailable, Message: message}
	}

	switch ae.Category {
	case amerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case amerrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeUnavailable, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
