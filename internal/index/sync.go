package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vibecoding/vibemcp/internal/watcher"
)

// SyncManager periodically reconciles the index with filesystem changes
// made outside the MCP tools (external editors, git operations). It can
// additionally consume a filesystem watcher, applying debounced events
// as single-file refreshes between the full passes.
type SyncManager struct {
	indexer  *Indexer
	interval time.Duration

	mu        sync.Mutex
	watcher   *watcher.Watcher
	stopCh    chan struct{}
	doneCh    chan struct{}
	watchDone chan struct{}
}

// NewSyncManager creates a manager that syncs every interval.
func NewSyncManager(indexer *Indexer, interval time.Duration) (*SyncManager, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sync interval must be positive, got %s", interval)
	}
	return &SyncManager{indexer: indexer, interval: interval}, nil
}

// WatchFilesystem hands a started watcher to the manager. Its events
// are applied as refreshes once Start is called, and the manager stops
// the watcher on Stop. Must be called before Start.
func (m *SyncManager) WatchFilesystem(w *watcher.Watcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watcher = w
}

// Start launches the background loop. Starting a running manager is a
// no-op.
func (m *SyncManager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopCh != nil {
		slog.Warn("sync_manager_already_running")
		return
	}

	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	go m.loop(m.stopCh, m.doneCh)

	if m.watcher != nil {
		m.watchDone = make(chan struct{})
		go m.consumeEvents(m.watcher, m.watchDone)
	}
	slog.Info("sync_manager_started", slog.Duration("interval", m.interval))
}

// Stop terminates the loop and waits for any in-flight sync to finish.
// Stopping a stopped manager is a no-op.
func (m *SyncManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopCh == nil {
		return
	}

	close(m.stopCh)
	<-m.doneCh
	if m.watchDone != nil {
		_ = m.watcher.Stop()
		<-m.watchDone
		m.watchDone = nil
	}
	m.stopCh = nil
	m.doneCh = nil
	slog.Info("sync_manager_stopped")
}

// loop sleeps first, then syncs, so a manager started and immediately
// stopped never runs a pass.
func (m *SyncManager) loop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
		}

		result, err := m.indexer.Sync(context.Background())
		if err != nil {
			slog.Error("auto_sync_failed", slog.String("error", err.Error()))
			continue
		}
		if result.Changed() {
			slog.Info("auto_sync",
				slog.Int("added", result.Added),
				slog.Int("updated", result.Updated),
				slog.Int("deleted", result.Deleted))
		}
	}
}

// consumeEvents applies watcher batches as single-file refreshes. The
// loop drains until the watcher's channel closes; refresh failures are
// logged and left for the next full sync pass.
func (m *SyncManager) consumeEvents(w *watcher.Watcher, doneCh chan<- struct{}) {
	defer close(doneCh)

	for batch := range w.Events() {
		for _, ev := range batch {
			if err := m.indexer.RefreshFile(context.Background(), ev.Path); err != nil {
				slog.Warn("watch_refresh_failed",
					slog.String("path", ev.Path),
					slog.String("op", ev.Operation.String()),
					slog.String("error", err.Error()))
			}
		}
	}
}
