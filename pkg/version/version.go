// Package version provides build and version information for amanread.
package version

import (
	"fmt"
	"runtime"
)

// Version is the current version of amanread.
// Set via ldflags at build time: -X github.com/Aman-CERP/amanread/pkg/version.Version=$(VERSION)
var Version = "dev"

// Build information set via ldflags at build time.
var (
	// Commit is the git commit hash.
	Commit = "unknown"

	// Date is the build date in RFC3339 format.
	Date = "unknown"

	// GoVersion is the Go version used to build the binary.
	GoVersion = runtime.Version()
)

// BuildInfo is structured version information for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// String returns a formatted version string with all build info.
func String() string {
	return fmt.Sprintf("amanread %s (commit: %s, built: %s, go: %s, %s/%s)",
		Version, Commit, Date, GoVersion, runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version string.
func Short() string {
	return Version
}

// UserAgent identifies amanread in outgoing HTTP requests.
func UserAgent() string {
	return "amanread/" + Version + " (+https://github.com/Aman-CERP/amanread)"
}

// GetInfo returns structured version information.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
