package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestEnv isolates a test from the user's configuration and data:
// a private data dir, static embeddings and no summarizer.
func setupTestEnv(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Chdir(root)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "xdg"))
	t.Setenv("AMANREAD_DATA_DIR", filepath.Join(root, "data"))
	t.Setenv("AMANREAD_EMBEDDINGS_PROVIDER", "static")
	t.Setenv("AMANREAD_SUMMARIZER_ENABLED", "false")
	t.Setenv("NO_COLOR", "1")
	return root
}

// runCLI executes the root command with args and returns what it printed.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRootCmd_ShowsHelp(t *testing.T) {
	// Given: a root command

	// When: executing with --help
	out, err := runCLI(t, "--help")

	// Then: it should list the document and maintenance commands
	require.NoError(t, err)
	for _, name := range []string{"add", "list", "search", "sync", "serve", "watch", "status"} {
		assert.Contains(t, out, name)
	}
}

func TestRootCmd_UnknownCommandFails(t *testing.T) {
	_, err := runCLI(t, "frobnicate")
	assert.Error(t, err)
}

func TestLoadConfig_FlagsOverrideEnvironment(t *testing.T) {
	// Given: an isolated environment and explicit global flags
	root := setupTestEnv(t)
	override := filepath.Join(root, "elsewhere")
	dataDirFlag, debugMode = override, true
	t.Cleanup(func() { dataDirFlag, debugMode = "", false })

	// When: loading the configuration
	cfg, err := loadConfig()

	// Then: the flags win over AMANREAD_DATA_DIR and the configured level
	require.NoError(t, err)
	assert.Equal(t, override, cfg.Storage.DataDir)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.False(t, cfg.Summarizer.Enabled)
}

func TestLoadConfig_InvalidEnvironmentIsConfigError(t *testing.T) {
	setupTestEnv(t)
	t.Setenv("AMANREAD_WORKERS", "many")

	_, err := loadConfig()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_102")
}

func TestRoot_ProfileFlagsWriteProfiles(t *testing.T) {
	// Given: a clean environment and profile paths
	root := setupTestEnv(t)
	cpu := filepath.Join(root, "cpu.prof")
	heap := filepath.Join(root, "heap.prof")

	// When: running a command with profiling on
	_, err := runCLI(t, "version", "--short", "--profile-cpu", cpu, "--profile-mem", heap)
	require.NoError(t, err)

	// Then: both profiles are written
	assert.FileExists(t, cpu)
	assert.FileExists(t, heap)
}
