package errors

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForCLI(t *testing.T) {
	out := FormatForCLI(NoParserError("ftp://x", ""))

	assert.Contains(t, out, "Error: no parser available for ftp://x")
	assert.Contains(t, out, "Hint:")
	assert.Contains(t, out, "Code: ERR_404_NO_PARSER")
	assert.Equal(t, "", FormatForCLI(nil))
}

func TestFormatForCLI_PlainErrorGetsInternalCode(t *testing.T) {
	out := FormatForCLI(errors.New("oops"))
	assert.Contains(t, out, "Code: ERR_501_INTERNAL")
}

func TestFormatJSON(t *testing.T) {
	data, err := FormatJSON(New(ErrCodeFetchFailed, "fetch failed", errors.New("dial tcp")).
		WithDetail("url", "https://example.com"))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "ERR_303_FETCH_FAILED", got["code"])
	assert.Equal(t, "NETWORK", got["category"])
	assert.Equal(t, "dial tcp", got["cause"])
	assert.Equal(t, true, got["retryable"])
}

func TestLogAttrs_SortedDetails(t *testing.T) {
	err := New(ErrCodeIndexFailed, "upsert", nil).WithDetail("z", "1").WithDetail("a", "2")

	attrs := LogAttrs(err)
	require.Len(t, attrs, 5)
	assert.Equal(t, "detail_a", attrs[3].Key)
	assert.Equal(t, "detail_z", attrs[4].Key)

	plain := LogAttrs(errors.New("plain"))
	require.Len(t, plain, 1)
	assert.Equal(t, "error", plain[0].Key)
}

func TestLogArgs_MatchesAttrs(t *testing.T) {
	err := NotFoundError("doc-1")

	args := LogArgs(err)
	attrs := LogAttrs(err)
	require.Len(t, args, len(attrs))
	for i := range attrs {
		assert.Equal(t, attrs[i], args[i])
	}
	assert.Empty(t, LogArgs(nil))
}
