// Package lifecycle guards the data directory against concurrent writers
// and reports on the local Ollama installation.
package lifecycle

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	amerrors "github.com/Aman-CERP/amanread/internal/errors"
)

// LockFileName is created inside the data directory.
const LockFileName = ".amanread.lock"

// DataDirLock is an exclusive cross-process lock on a data directory.
// Only one process may write the vector files at a time.
type DataDirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewDataDirLock creates a lock for dir. Nothing is acquired yet.
func NewDataDirLock(dir string) *DataDirLock {
	path := filepath.Join(dir, LockFileName)
	return &DataDirLock{path: path, flock: flock.New(path)}
}

// Acquire takes the lock without blocking. A lock held by another process
// fails with ERR_104_DATA_DIR_LOCKED.
func (l *DataDirLock) Acquire() error {
	if l.locked {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return amerrors.New(amerrors.ErrCodeDataDir, "failed to create data directory", err).
			WithDetail("path", filepath.Dir(l.path))
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return amerrors.New(amerrors.ErrCodeDataDir, "failed to lock data directory", err).
			WithDetail("path", l.path)
	}
	if !acquired {
		return amerrors.New(amerrors.ErrCodeDataDirLocked,
			fmt.Sprintf("data directory %s is in use by another amanread process", filepath.Dir(l.path)), nil).
			WithDetail("lock", l.path).
			WithSuggestion("Stop the other process (for example a running 'amanread serve') or use --data-dir")
	}

	if err := os.WriteFile(l.path+".pid", []byte(fmt.Sprint(os.Getpid())), 0o644); err != nil {
		_ = l.flock.Unlock()
		return amerrors.New(amerrors.ErrCodeDataDir, "failed to record lock owner", err)
	}
	l.locked = true
	return nil
}

// Release unlocks. Safe to call more than once or without Acquire.
func (l *DataDirLock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	_ = os.Remove(l.path + ".pid")
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *DataDirLock) Path() string {
	return l.path
}

// Held reports whether this process holds the lock.
func (l *DataDirLock) Held() bool {
	return l.locked
}

// Owner returns the pid recorded by the current holder, or "" if unknown.
func (l *DataDirLock) Owner() string {
	b, err := os.ReadFile(l.path + ".pid")
	if err != nil {
		return ""
	}
	return string(b)
}
