// Package watcher streams debounced filesystem events for the markdown
// documents of a vibe workspace.
//
// fsnotify delivers raw events; a debouncer coalesces the bursts that
// editors and atomic-rename writers produce into one event per path.
// Consumers treat every surviving event the same way, re-indexing the
// path and letting the indexer decide between upsert and delete. The
// watcher is best-effort: dropped batches and directory-level changes
// it cannot attribute converge through the periodic sync pass.
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

// Operation classifies a filesystem event.
type Operation int

const (
	// OpCreate marks a newly created file.
	OpCreate Operation = iota
	// OpModify marks a content change to an existing file.
	OpModify
	// OpDelete marks a removed file.
	OpDelete
	// OpRename marks a file moved away from this path. The new path,
	// if still inside the workspace, arrives as its own OpCreate.
	OpRename
)

// String returns the operation name for logs.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one debounced change to a workspace document.
type FileEvent struct {
	// Path is the absolute path of the affected file.
	Path string

	// Operation is the coalesced change type.
	Operation Operation

	// Timestamp is when the event was last observed.
	Timestamp time.Time
}

// Options configures the watcher.
type Options struct {
	// DebounceWindow is how long to coalesce events per path before
	// emitting. Default 200ms.
	DebounceWindow time.Duration

	// EventBufferSize is the capacity of the batch channel. When the
	// consumer falls behind, whole batches are dropped and counted.
	// Default 256.
	EventBufferSize int
}

// WithDefaults fills zero values with defaults.
func (o Options) WithDefaults() Options {
	if o.DebounceWindow == 0 {
		o.DebounceWindow = 200 * time.Millisecond
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = 256
	}
	return o
}

// Watcher watches a workspace root recursively and emits debounced
// batches of document events.
type Watcher struct {
	root      string
	opts      Options
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	events    chan []FileEvent
	stopCh    chan struct{}
	runDone   chan struct{}
	fwdDone   chan struct{}
	dropped   atomic.Uint64

	mu      sync.Mutex
	started bool
	stopped bool
}

// New creates a watcher for the workspace rooted at root. The watcher
// does nothing until Start is called.
func New(root string, opts Options) (*Watcher, error) {
	if root == "" {
		return nil, fmt.Errorf("workspace root is required")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}

	opts = opts.WithDefaults()
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize filesystem watcher: %w", err)
	}

	return &Watcher{
		root:      absRoot,
		opts:      opts,
		fsw:       fsw,
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		stopCh:    make(chan struct{}),
		runDone:   make(chan struct{}),
		fwdDone:   make(chan struct{}),
	}, nil
}

// Start registers watches for the root and every non-hidden directory
// beneath it, then begins streaming events. It fails when the root
// cannot be watched; callers may fall back to periodic sync alone.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return fmt.Errorf("watcher is stopped")
	}
	if w.started {
		slog.Warn("watcher_already_running")
		return nil
	}

	if err := w.watchTree(w.root, false); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}

	w.started = true
	go w.run(ctx)
	go w.forward()
	slog.Info("watcher_started", slog.String("root", w.root))
	return nil
}

// Stop halts watching, flushes nothing further, and closes Events.
// Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true

	close(w.stopCh)
	_ = w.fsw.Close()
	w.debouncer.Stop()
	if w.started {
		<-w.runDone
		<-w.fwdDone
	}
	close(w.events)
	return nil
}

// Events returns the channel of debounced event batches. The channel
// is closed by Stop.
func (w *Watcher) Events() <-chan []FileEvent {
	return w.events
}

// DroppedBatches reports how many batches were discarded because the
// consumer fell behind.
func (w *Watcher) DroppedBatches() uint64 {
	return w.dropped.Load()
}

// run pumps raw fsnotify events into the debouncer.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.runDone)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}

// forward moves debounced batches to the output channel without ever
// blocking the debouncer.
func (w *Watcher) forward() {
	defer close(w.fwdDone)

	for batch := range w.debouncer.Output() {
		if len(batch) == 0 {
			continue
		}
		select {
		case w.events <- batch:
		default:
			count := w.dropped.Add(1)
			slog.Warn("watch_events_dropped",
				slog.Int("batch_size", len(batch)),
				slog.Uint64("total_dropped", count))
		}
	}
}

// handle filters one raw event and feeds the debouncer. New
// directories are added to the watch set; documents already inside
// them are emitted as creates, since their own events predate the
// watch.
func (w *Watcher) handle(ev fsnotify.Event) {
	rel, ok := w.relPath(ev.Name)
	if !ok {
		return
	}

	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.watchTree(ev.Name, true); err != nil {
				slog.Warn("watch_add_failed",
					slog.String("path", rel),
					slog.String("error", err.Error()))
			}
			return
		}
	}

	if !isDocumentPath(rel) {
		return
	}

	var op Operation
	switch {
	case ev.Op&fsnotify.Create != 0:
		op = OpCreate
	case ev.Op&fsnotify.Write != 0:
		op = OpModify
	case ev.Op&fsnotify.Remove != 0:
		op = OpDelete
	case ev.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		// Chmod and friends do not change content.
		return
	}

	w.debouncer.Add(FileEvent{Path: ev.Name, Operation: op, Timestamp: time.Now()})
}

// watchTree adds dir and every non-hidden directory below it to the
// watch set. With emit set, documents found along the way are injected
// as create events so a directory moved into the workspace is indexed
// without waiting for the next sync pass.
func (w *Watcher) watchTree(dir string, emit bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			slog.Warn("watch_walk_skipped",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil
		}

		rel, ok := w.relPath(path)
		if !ok && path != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return w.fsw.Add(path)
		}
		if emit && isDocumentPath(rel) {
			w.debouncer.Add(FileEvent{Path: path, Operation: OpCreate, Timestamp: time.Now()})
		}
		return nil
	})
}

// relPath returns path relative to the root as a slash path, rejecting
// paths outside the root and paths with hidden components.
func (w *Watcher) relPath(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return "", false
	}
	if rel == "." {
		return "", true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return "", false
		}
	}
	return rel, true
}

// isDocumentPath reports whether rel could name an indexed document: a
// *.md file inside a project directory.
func isDocumentPath(rel string) bool {
	if rel == "" {
		return false
	}
	return strings.Count(rel, "/") >= 1 && filepath.Ext(rel) == ".md"
}
