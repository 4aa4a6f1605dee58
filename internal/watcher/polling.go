package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

// PollingWatcher detects inbox changes by rescanning the directory tree.
// Used when fsnotify is not available.
type PollingWatcher struct {
	interval time.Duration
	accepts  func(path string) bool
	events   chan FileEvent
	errors   chan error
	stopCh   chan struct{}

	mu      sync.Mutex
	seen    map[string]fileSnapshot
	stopped bool
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// NewPollingWatcher creates a poller. accepts filters the files it tracks.
func NewPollingWatcher(interval time.Duration, accepts func(path string) bool) *PollingWatcher {
	if accepts == nil {
		accepts = func(string) bool { return true }
	}
	return &PollingWatcher{
		interval: interval,
		accepts:  accepts,
		events:   make(chan FileEvent, 100),
		errors:   make(chan error, 10),
		stopCh:   make(chan struct{}),
		seen:     make(map[string]fileSnapshot),
	}
}

// Start records the current files as a baseline, then polls until ctx is
// done or Stop is called. Files present at start produce no events.
func (p *PollingWatcher) Start(ctx context.Context, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}

	baseline, err := p.snapshot(absRoot)
	if err != nil {
		return fmt.Errorf("perform initial scan: %w", err)
	}
	p.mu.Lock()
	p.seen = baseline
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			if err := p.poll(absRoot); err != nil {
				p.emitError(err)
			}
		}
	}
}

func (p *PollingWatcher) snapshot(root string) (map[string]fileSnapshot, error) {
	files := make(map[string]fileSnapshot)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !p.accepts(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files[path] = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
		return nil
	})
	return files, err
}

// poll diffs the tree against the previous scan.
func (p *PollingWatcher) poll(root string) error {
	current, err := p.snapshot(root)
	if err != nil {
		return fmt.Errorf("walk directory for changes: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for path, snap := range current {
		prev, existed := p.seen[path]
		switch {
		case !existed:
			p.emitLocked(FileEvent{Path: path, Operation: OpCreate, Timestamp: now})
		case prev != snap:
			p.emitLocked(FileEvent{Path: path, Operation: OpModify, Timestamp: now})
		}
	}
	for path := range p.seen {
		if _, ok := current[path]; !ok {
			p.emitLocked(FileEvent{Path: path, Operation: OpDelete, Timestamp: now})
		}
	}
	p.seen = current
	return nil
}

// emitLocked must be called with p.mu held.
func (p *PollingWatcher) emitLocked(event FileEvent) {
	if p.stopped {
		return
	}
	select {
	case p.events <- event:
	default:
		slog.Warn("polling_buffer_full",
			slog.String("path", event.Path),
			slog.String("op", event.Operation.String()))
	}
}

func (p *PollingWatcher) emitError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	select {
	case p.errors <- err:
	default:
	}
}

// Stop stops polling and closes the channels. Safe to call multiple times.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	close(p.events)
	close(p.errors)
	return nil
}

// Events returns the channel of file events.
func (p *PollingWatcher) Events() <-chan FileEvent {
	return p.events
}

// Errors returns the channel of non-fatal scan errors.
func (p *PollingWatcher) Errors() <-chan error {
	return p.errors
}
