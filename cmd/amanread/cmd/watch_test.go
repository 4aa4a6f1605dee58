package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanread/internal/watcher"
)

func TestInboxImporter_ScansThroughTheLibrary(t *testing.T) {
	// Given: an inbox with a note, an ignored file and a note already added
	root := setupTestEnv(t)
	inbox := filepath.Join(root, "inbox")
	known := writeNote(t, mkdir(t, inbox), "known.md", "# Known\n\nalready here")
	writeNote(t, inbox, "new.txt", "fresh text")
	writeNote(t, inbox, "image.png", "not text")
	addJSON(t, known)

	cfg, err := loadConfig()
	require.NoError(t, err)
	a, err := openApp(context.Background(), cfg, openOptions{})
	require.NoError(t, err)

	// When: scanning the inbox with a tag
	report, err := newInboxImporter(a, []string{"inbox"}).Scan(context.Background(), inbox, watcher.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, a.Close())

	// Then: the new note is added and tagged, the known one skipped
	assert.Equal(t, 1, report.Added)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Failed)

	out, err := runCLI(t, "list", "--json", "--tag", "inbox")
	require.NoError(t, err)
	var page listJSON
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Len(t, page.Documents, 1)
	assert.Contains(t, page.Documents[0].URL, "new.txt")
}

func TestWatch_MissingDirectoryFails(t *testing.T) {
	root := setupTestEnv(t)

	_, err := runCLI(t, "watch", filepath.Join(root, "nope"))

	assert.Error(t, err)
}

func mkdir(t *testing.T, dir string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return dir
}
