package profiling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.Size()
}

func TestSession_WritesEveryRequestedProfile(t *testing.T) {
	// Given: all three profiles requested
	dir := t.TempDir()
	opts := Options{
		CPU:   filepath.Join(dir, "cpu.prof"),
		Heap:  filepath.Join(dir, "heap.prof"),
		Trace: filepath.Join(dir, "trace.out"),
	}

	// When: profiling some work
	s, err := Start(opts)
	require.NoError(t, err)
	sum := 0
	for i := range 1_000_000 {
		sum += i
	}
	_ = sum
	require.NoError(t, s.Stop())

	// Then: every file exists and has content
	assert.Positive(t, fileSize(t, opts.CPU))
	assert.Positive(t, fileSize(t, opts.Heap))
	assert.Positive(t, fileSize(t, opts.Trace))
}

func TestSession_StopIsIdempotent(t *testing.T) {
	s, err := Start(Options{Heap: filepath.Join(t.TempDir(), "heap.prof")})
	require.NoError(t, err)

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
}

func TestStart_BadTracePathStopsCPUProfile(t *testing.T) {
	// Given: a writable CPU path and a trace path in a missing directory
	dir := t.TempDir()
	opts := Options{CPU: filepath.Join(dir, "cpu.prof"), Trace: filepath.Join(dir, "missing", "trace.out")}

	// When: starting
	_, err := Start(opts)

	// Then: it fails, and CPU profiling can be started again
	require.Error(t, err)
	s, err := Start(Options{CPU: filepath.Join(dir, "cpu2.prof")})
	require.NoError(t, err)
	require.NoError(t, s.Stop())
}

func TestOptions_Enabled(t *testing.T) {
	assert.False(t, Options{}.Enabled())
	assert.True(t, Options{Heap: "h"}.Enabled())
}
