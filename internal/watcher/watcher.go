package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new file appeared in the inbox.
	OpCreate Operation = iota
	// OpModify indicates an existing file was written to.
	OpModify
	// OpDelete indicates a file was removed or moved away.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent represents a change to one inbox file.
type FileEvent struct {
	// Path is the absolute path of the file.
	Path string

	// Operation is the type of file system operation.
	Operation Operation

	// Timestamp is when the event was detected.
	Timestamp time.Time
}

// DefaultExtensions are the file types the text and HTML parsers accept.
var DefaultExtensions = []string{".md", ".markdown", ".txt", ".html", ".htm"}

// Options configures the watcher behavior.
type Options struct {
	// DebounceWindow is the time to wait before emitting coalesced events.
	// Default: 500ms
	DebounceWindow time.Duration

	// PollInterval is the interval for polling mode (fallback).
	// Default: 5s
	PollInterval time.Duration

	// EventBufferSize is the size of the batch channel buffer.
	// Default: 100
	EventBufferSize int

	// Extensions limits events to files with these extensions.
	// Default: DefaultExtensions
	Extensions []string
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		PollInterval:    5 * time.Second,
		EventBufferSize: 100,
		Extensions:      DefaultExtensions,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	if len(o.Extensions) == 0 {
		o.Extensions = defaults.Extensions
	}
	return o
}

// Accepts reports whether path is an inbox file worth importing.
// Hidden files and editor swap or partial-download files never are.
func (o Options) Accepts(path string) bool {
	base := filepath.Base(path)
	if base == "" || strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	switch ext {
	case ".swp", ".tmp", ".part", ".crdownload":
		return false
	}
	for _, want := range o.Extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}
