package watcher

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Debouncer coalesces bursts of events for the same file. A batch is emitted
// once no new event has arrived for the window. Per path:
//   - CREATE then MODIFY stays CREATE
//   - CREATE then DELETE cancels out
//   - DELETE then CREATE becomes MODIFY
//   - anything else keeps the latest operation
type Debouncer struct {
	window time.Duration
	output chan []FileEvent

	mu      sync.Mutex
	pending map[string]FileEvent
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer with the given quiet window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		output:  make(chan []FileEvent, 10),
		pending: make(map[string]FileEvent),
	}
}

// merge folds next into prev. ok is false when the two cancel out.
func merge(prev, next Operation) (op Operation, ok bool) {
	switch {
	case prev == OpCreate && next == OpModify:
		return OpCreate, true
	case prev == OpCreate && next == OpDelete:
		return 0, false
	case prev == OpDelete && next == OpCreate:
		return OpModify, true
	default:
		return next, true
	}
}

// Add queues an event and restarts the quiet window.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if prev, exists := d.pending[event.Path]; exists {
		op, ok := merge(prev.Operation, event.Operation)
		if !ok {
			delete(d.pending, event.Path)
		} else {
			event.Operation = op
			d.pending[event.Path] = event
		}
	} else {
		d.pending[event.Path] = event
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// flush emits pending events sorted by path.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	batch := make([]FileEvent, 0, len(d.pending))
	for _, e := range d.pending {
		batch = append(batch, e)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
	d.pending = make(map[string]FileEvent)

	select {
	case d.output <- batch:
	default:
		slog.Warn("debouncer_output_full", slog.Int("batch_size", len(batch)))
	}
}

// Output returns the channel of debounced batches.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Stop discards pending events and closes the output channel.
// Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
