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

func startInbox(t *testing.T, dir string) *InboxWatcher {
	t.Helper()
	w, err := NewInboxWatcher(Options{DebounceWindow: 30 * time.Millisecond, PollInterval: 30 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	go func() { _ = w.Start(ctx, dir) }()
	time.Sleep(150 * time.Millisecond)
	return w
}

func TestInboxWatcher_EmitsDebouncedCreate(t *testing.T) {
	// Given: a watched inbox
	dir := t.TempDir()
	w := startInbox(t, dir)

	// When: a markdown file is written in several steps
	path := filepath.Join(dir, "article.md")
	require.NoError(t, os.WriteFile(path, []byte("# Title"), 0o644))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, _ = f.WriteString("\n\nBody text.")
	require.NoError(t, f.Close())

	// Then: one batch carries one event for it
	select {
	case batch := <-w.Events():
		require.Len(t, batch, 1)
		assert.Equal(t, path, batch[0].Path)
		assert.NotEqual(t, OpDelete, batch[0].Operation)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for inbox event")
	}
	assert.Equal(t, dir, w.Root())
}

func TestInboxWatcher_WatchesNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	w := startInbox(t, dir)

	sub := filepath.Join(dir, "reading")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(100 * time.Millisecond)
	path := filepath.Join(sub, "paper.txt")
	require.NoError(t, os.WriteFile(path, []byte("abstract"), 0o644))

	deadline := time.After(3 * time.Second)
	for {
		select {
		case batch := <-w.Events():
			for _, e := range batch {
				if e.Path == path {
					return
				}
			}
		case <-deadline:
			t.Fatal("no event for file in new subdirectory")
		}
	}
}

func TestInboxWatcher_RejectsNonDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.md")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	w, err := NewInboxWatcher(DefaultOptions())
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	err = w.Start(context.Background(), file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestInboxWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewInboxWatcher(DefaultOptions())
	require.NoError(t, err)
	assert.Contains(t, []string{"fsnotify", "polling"}, w.Mode())

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, open := <-w.Events()
	assert.False(t, open)
}
