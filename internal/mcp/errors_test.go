package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/amanread/internal/errors"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"conflict", amerrors.ConflictError("https://example.com"), ErrCodeConflict},
		{"wrapped conflict", fmt.Errorf("ingest: %w", amerrors.ConflictError("u")), ErrCodeConflict},
		{"document not found", amerrors.NotFoundError("id-1"), ErrCodeNotFound},
		{"file not found", amerrors.New(amerrors.ErrCodeFileNotFound, "file not found", nil), ErrCodeNotFound},
		{"validation", amerrors.ValidationError("bad limit", nil), ErrCodeInvalidParams},
		{"no parser", amerrors.NoParserError("ftp://x", ""), ErrCodeInvalidParams},
		{"empty query", amerrors.New(amerrors.ErrCodeQueryEmpty, "query is empty", nil), ErrCodeInvalidParams},
		{"network timeout", amerrors.New(amerrors.ErrCodeNetworkTimeout, "slow", nil), ErrCodeTimeout},
		{"fetch failed", amerrors.New(amerrors.ErrCodeFetchFailed, "HTTP 502", nil), ErrCodeUnavailable},
		{"summary failed", amerrors.New(amerrors.ErrCodeSummaryFailed, "down", nil), ErrCodeUnavailable},
		{"storage", amerrors.StorageError("disk", nil), ErrCodeInternalError},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"canceled", context.Canceled, ErrCodeTimeout},
		{"plain", errors.New("boom"), ErrCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.code, got.Code)
		})
	}
}

func TestMapError_Nil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_KeepsMCPError(t *testing.T) {
	orig := NewInvalidParamsError("id is required")
	assert.Same(t, orig, MapError(fmt.Errorf("wrap: %w", orig)))
}

func TestMapError_AppendsSuggestion(t *testing.T) {
	err := amerrors.NoParserError("ftp://x", "")

	got := MapError(err)

	assert.Contains(t, got.Message, "no parser available for ftp://x")
	assert.Contains(t, got.Message, "Pass --type")
	assert.Equal(t, "MCP error -32602: "+got.Message, got.Error())
}
