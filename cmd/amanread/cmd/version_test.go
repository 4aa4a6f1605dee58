package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanread/internal/fetch"
	"github.com/Aman-CERP/amanread/pkg/version"
)

func TestVersionCmd_DefaultOutput(t *testing.T) {
	// When: executing without flags
	out, err := runCLI(t, "version")

	// Then: it shows the build line and the fetcher identity
	require.NoError(t, err)
	assert.Contains(t, out, "amanread")
	assert.Contains(t, out, version.Version)
	assert.Contains(t, out, "commit")
	assert.Contains(t, out, "fetch user-agent: "+fetch.DefaultUserAgent)
}

func TestVersionCmd_ShortOutput(t *testing.T) {
	out, err := runCLI(t, "version", "--short")

	require.NoError(t, err)
	assert.Equal(t, version.Version, strings.TrimSpace(out))
}

func TestVersionCmd_ShortWinsOverUserAgent(t *testing.T) {
	// Given: both --short and --user-agent
	out, err := runCLI(t, "version", "--short", "--user-agent")

	// Then: only the version number is printed
	require.NoError(t, err)
	assert.Equal(t, version.Version, strings.TrimSpace(out))
}

func TestVersionCmd_UserAgentOutput(t *testing.T) {
	out, err := runCLI(t, "version", "--user-agent")

	require.NoError(t, err)
	assert.Equal(t, fetch.DefaultUserAgent, strings.TrimSpace(out))
}

func TestVersionCmd_JSONOutput(t *testing.T) {
	out, err := runCLI(t, "version", "--json")

	require.NoError(t, err)
	var report versionReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, version.Version, report.Version)
	assert.NotEmpty(t, report.GoVersion)
	assert.Equal(t, fetch.DefaultUserAgent, report.UserAgent)
}
