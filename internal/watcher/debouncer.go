package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// debouncerBuffer is the capacity of the batch output channel.
const debouncerBuffer = 10

// Debouncer coalesces rapid events for the same path so a burst of
// editor writes becomes one re-index. Within a window, operation pairs
// merge as:
//
//	CREATE + MODIFY = CREATE   (still a new file)
//	CREATE + DELETE = nothing  (never really existed)
//	MODIFY + DELETE = DELETE   (the file is gone)
//	DELETE + CREATE = MODIFY   (the file was replaced)
//
// The CREATE+DELETE rule also swallows the sibling temp files that
// atomic rename-in-place writers leave behind.
type Debouncer struct {
	window time.Duration
	output chan []FileEvent

	mu      sync.Mutex
	pending map[string]*pendingEvent
	timer   *time.Timer
	stopped bool
}

// pendingEvent tracks the coalesced state for one path. first is the
// earliest operation in the window; it anchors the merge rules.
type pendingEvent struct {
	event FileEvent
	first Operation
}

// NewDebouncer creates a debouncer that emits a batch once no event
// has arrived for window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*pendingEvent),
		output:  make(chan []FileEvent, debouncerBuffer),
	}
}

// Add records an event, merging it with any pending event for the
// same path. Events added after Stop are discarded.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	existing, ok := d.pending[event.Path]
	if !ok {
		d.pending[event.Path] = &pendingEvent{event: event, first: event.Operation}
		d.resetTimer()
		return
	}

	merged, keep := coalesce(existing.first, existing.event, event)
	if !keep {
		delete(d.pending, event.Path)
	} else {
		existing.event = merged
	}
	d.resetTimer()
}

// coalesce merges an incoming event into the pending one. keep is
// false when the pair cancels out.
func coalesce(first Operation, pending, incoming FileEvent) (merged FileEvent, keep bool) {
	switch first {
	case OpCreate:
		switch incoming.Operation {
		case OpModify:
			return pending, true
		case OpDelete:
			return FileEvent{}, false
		}
	case OpDelete:
		if incoming.Operation == OpCreate {
			incoming.Operation = OpModify
			return incoming, true
		}
	}
	return incoming, true
}

// resetTimer pushes the flush out by one full window. Callers hold mu.
func (d *Debouncer) resetTimer() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// flush emits everything pending as one batch. A full output channel
// drops the batch; the periodic sync will pick up whatever was lost.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || len(d.pending) == 0 {
		return
	}

	batch := make([]FileEvent, 0, len(d.pending))
	for _, pe := range d.pending {
		batch = append(batch, pe.event)
	}
	d.pending = make(map[string]*pendingEvent)

	select {
	case d.output <- batch:
	default:
		slog.Warn("debounce_batch_dropped", slog.Int("batch_size", len(batch)))
	}
}

// Output returns the channel of coalesced batches.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Stop discards pending events and closes the output channel. Safe to
// call multiple times.
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
