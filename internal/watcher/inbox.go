package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// InboxWatcher watches a directory tree for inbox files, preferring fsnotify
// and falling back to polling.
type InboxWatcher struct {
	opts      Options
	fsWatcher *fsnotify.Watcher
	poller    *PollingWatcher
	debouncer *Debouncer
	events    chan []FileEvent
	errors    chan error
	stopCh    chan struct{}

	mu      sync.RWMutex
	root    string
	stopped bool

	droppedBatches atomic.Uint64
}

// NewInboxWatcher creates a watcher. fsnotify is tried first.
func NewInboxWatcher(opts Options) (*InboxWatcher, error) {
	opts = opts.WithDefaults()

	w := &InboxWatcher{
		opts:      opts,
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("fsnotify_unavailable", slog.String("error", err.Error()))
		w.poller = NewPollingWatcher(opts.PollInterval, opts.Accepts)
		return w, nil
	}
	w.fsWatcher = fsw
	return w, nil
}

// Start watches root until ctx is done or Stop is called. It blocks.
func (w *InboxWatcher) Start(ctx context.Context, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return fmt.Errorf("stat inbox: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("inbox is not a directory: %s", absRoot)
	}

	w.mu.Lock()
	w.root = absRoot
	w.mu.Unlock()

	go w.forward(ctx)

	slog.Info("inbox_watch_started",
		slog.String("path", absRoot),
		slog.String("mode", w.Mode()))

	if w.fsWatcher != nil {
		return w.runFsnotify(ctx, absRoot)
	}
	return w.runPolling(ctx, absRoot)
}

func (w *InboxWatcher) runFsnotify(ctx context.Context, root string) error {
	if err := w.addRecursive(root); err != nil {
		return fmt.Errorf("add directories to watcher: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *InboxWatcher) runPolling(ctx context.Context, root string) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case event, ok := <-w.poller.Events():
				if !ok {
					return
				}
				w.debouncer.Add(event)
			case err, ok := <-w.poller.Errors():
				if !ok {
					return
				}
				w.emitError(err)
			}
		}
	}()
	return w.poller.Start(ctx, root)
}

// handle converts an fsnotify event. New subdirectories are watched too.
func (w *InboxWatcher) handle(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !isHidden(filepath.Base(event.Name)) {
				_ = w.addRecursive(event.Name)
			}
			return
		}
	}
	if !w.opts.Accepts(event.Name) {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		op = OpDelete
	default:
		return
	}

	w.debouncer.Add(FileEvent{Path: event.Name, Operation: op, Timestamp: time.Now()})
}

func (w *InboxWatcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func (w *InboxWatcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			w.emit(batch)
		}
	}
}

func (w *InboxWatcher) emit(batch []FileEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped || len(batch) == 0 {
		return
	}

	select {
	case w.events <- batch:
	default:
		n := w.droppedBatches.Add(1)
		slog.Warn("inbox_buffer_full",
			slog.Int("batch_size", len(batch)),
			slog.Uint64("total_dropped_batches", n))
	}
}

func (w *InboxWatcher) emitError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}

// Stop stops the watcher and closes its channels. Safe to call multiple times.
func (w *InboxWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()

	if w.fsWatcher != nil {
		_ = w.fsWatcher.Close()
	}
	if w.poller != nil {
		_ = w.poller.Stop()
	}
	close(w.events)
	close(w.errors)
	return nil
}

// Events returns debounced batches of inbox events.
func (w *InboxWatcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns non-fatal watcher errors.
func (w *InboxWatcher) Errors() <-chan error {
	return w.errors
}

// Mode returns "fsnotify" or "polling".
func (w *InboxWatcher) Mode() string {
	if w.fsWatcher != nil {
		return "fsnotify"
	}
	return "polling"
}

// Root returns the watched directory.
func (w *InboxWatcher) Root() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.root
}

// DroppedBatches returns how many batches were dropped on a full buffer.
func (w *InboxWatcher) DroppedBatches() uint64 {
	return w.droppedBatches.Load()
}
