package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// LogFileName is the name of the active log file.
const LogFileName = "amanread.log"

// DefaultLogDir returns the default log directory (~/.amanread/logs/).
// Falls back to the temp directory if the home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".amanread", "logs")
	}
	return filepath.Join(home, ".amanread", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), LogFileName)
}

// LogPath returns the log file path inside dataDir, or the default path when
// dataDir is empty.
func LogPath(dataDir string) string {
	if dataDir == "" {
		return DefaultLogPath()
	}
	return filepath.Join(dataDir, "logs", LogFileName)
}

// FindLogFile resolves the log file to view. An explicit path wins; otherwise
// the data directory's log is used.
func FindLogFile(explicit, dataDir string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	path := LogPath(dataDir)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("no log file found, run any amanread command first.\nExpected at: %s", path)
}
