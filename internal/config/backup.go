package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// MaxBackups is the number of config backups kept per file.
	MaxBackups = 3

	// BackupSuffix precedes the timestamp in backup file names.
	BackupSuffix = ".bak"
)

// BackupFile copies a config file to <path>.bak.<timestamp> before it is
// overwritten by `amanread config init --force`, pruning to MaxBackups.
// Returns "" and nil when there is nothing to back up.
func BackupFile(path string) (string, error) {
	if !fileExists(path) {
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read config for backup: %w", err)
	}

	backupPath := fmt.Sprintf("%s%s.%s", path, BackupSuffix, time.Now().Format("20060102-150405.000000"))
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	// Pruning is best-effort; the backup itself succeeded.
	_ = pruneBackups(path)

	return backupPath, nil
}

// ListBackups returns the backups of path, newest first.
func ListBackups(path string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list config directory: %w", err)
	}

	prefix := filepath.Base(path) + BackupSuffix + "."
	var backups []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			backups = append(backups, filepath.Join(filepath.Dir(path), entry.Name()))
		}
	}

	// Timestamps sort lexically.
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))
	return backups, nil
}

func pruneBackups(path string) error {
	backups, err := ListBackups(path)
	if err != nil {
		return err
	}
	if len(backups) <= MaxBackups {
		return nil
	}
	for _, backup := range backups[MaxBackups:] {
		_ = os.Remove(backup)
	}
	return nil
}
