package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextEvent(t *testing.T, p *PollingWatcher) FileEvent {
	t.Helper()
	select {
	case event := <-p.Events():
		return event
	case err := <-p.Errors():
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for polling event")
	}
	return FileEvent{}
}

func TestPollingWatcher_CreateModifyDelete(t *testing.T) {
	// Given: an inbox with one pre-existing file
	dir := t.TempDir()
	existing := filepath.Join(dir, "existing.md")
	require.NoError(t, os.WriteFile(existing, []byte("# Old"), 0o644))

	p := NewPollingWatcher(30*time.Millisecond, DefaultOptions().Accepts)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Start(ctx, dir) }()
	time.Sleep(80 * time.Millisecond)

	// When: a new file is created
	created := filepath.Join(dir, "new.md")
	require.NoError(t, os.WriteFile(created, []byte("# New"), 0o644))

	// Then: only the new file produces a CREATE
	event := nextEvent(t, p)
	assert.Equal(t, OpCreate, event.Operation)
	assert.Equal(t, created, event.Path)

	// When: the old file grows
	require.NoError(t, os.WriteFile(existing, []byte("# Old, now longer"), 0o644))
	event = nextEvent(t, p)
	assert.Equal(t, OpModify, event.Operation)
	assert.Equal(t, existing, event.Path)

	// When: it is removed
	require.NoError(t, os.Remove(existing))
	event = nextEvent(t, p)
	assert.Equal(t, OpDelete, event.Operation)

	require.NoError(t, p.Stop())
}

func TestPollingWatcher_IgnoresRejectedFiles(t *testing.T) {
	dir := t.TempDir()
	p := NewPollingWatcher(30*time.Millisecond, DefaultOptions().Accepts)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Start(ctx, dir) }()
	time.Sleep(80 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte{0x89}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.txt"), []byte("hi"), 0o644))

	event := nextEvent(t, p)
	assert.Equal(t, filepath.Join(dir, "note.txt"), event.Path)
}

func TestPollingWatcher_StopsOnCancel(t *testing.T) {
	p := NewPollingWatcher(20*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- p.Start(ctx, t.TempDir()) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
	require.NoError(t, p.Stop())
}
