package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/vibecoding/vibemcp/internal/errors"
	"github.com/vibecoding/vibemcp/internal/watcher"
)

func TestNewSyncManagerRejectsNonPositiveInterval(t *testing.T) {
	root := writeWorkspace(t, map[string]string{"myapp/status.md": "# myapp\n"})
	ix, _ := newTestIndexer(t, root)

	_, err := NewSyncManager(ix, 0)
	require.Error(t, err)

	_, err = NewSyncManager(ix, -time.Second)
	require.Error(t, err)
}

func TestSyncManagerPicksUpExternalChanges(t *testing.T) {
	ctx := context.Background()
	root := writeWorkspace(t, map[string]string{"myapp/status.md": "# myapp\n"})
	ix, st := newTestIndexer(t, root)
	_, err := ix.Rebuild(ctx)
	require.NoError(t, err)

	mgr, err := NewSyncManager(ix, 25*time.Millisecond)
	require.NoError(t, err)
	mgr.Start()
	defer mgr.Stop()

	// When a file appears behind the manager's back
	path := filepath.Join(root, "myapp", "scratch", "idea.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("a wild idea\n"), 0o644))

	// Then the next pass indexes it
	require.Eventually(t, func() bool {
		_, err := st.GetDocumentByPath(ctx, "myapp/scratch/idea.md")
		return err == nil
	}, 3*time.Second, 10*time.Millisecond)
}

func TestSyncManagerStopHaltsSyncing(t *testing.T) {
	ctx := context.Background()
	root := writeWorkspace(t, map[string]string{"myapp/status.md": "# myapp\n"})
	ix, st := newTestIndexer(t, root)
	_, err := ix.Rebuild(ctx)
	require.NoError(t, err)

	mgr, err := NewSyncManager(ix, 10*time.Millisecond)
	require.NoError(t, err)
	mgr.Start()
	mgr.Stop()

	// Changes after Stop are never picked up
	path := filepath.Join(root, "myapp", "late.md")
	require.NoError(t, os.WriteFile(path, []byte("too late\n"), 0o644))
	time.Sleep(50 * time.Millisecond)

	_, err = st.GetDocumentByPath(ctx, "myapp/late.md")
	assert.True(t, verrors.IsNotFound(err))
}

func TestSyncManagerAppliesWatcherEvents(t *testing.T) {
	ctx := context.Background()
	root := writeWorkspace(t, map[string]string{"myapp/status.md": "# myapp\n"})
	ix, st := newTestIndexer(t, root)
	_, err := ix.Rebuild(ctx)
	require.NoError(t, err)

	w, err := watcher.New(root, watcher.Options{DebounceWindow: 25 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))

	// Given a manager whose ticker will never fire during the test
	mgr, err := NewSyncManager(ix, time.Hour)
	require.NoError(t, err)
	mgr.WatchFilesystem(w)
	mgr.Start()
	defer mgr.Stop()

	// When a document changes on disk
	path := filepath.Join(root, "myapp", "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("from the watcher\n"), 0o644))

	// Then the watcher path alone gets it indexed
	require.Eventually(t, func() bool {
		_, err := st.GetDocumentByPath(ctx, "myapp/notes.md")
		return err == nil
	}, 3*time.Second, 10*time.Millisecond)
}

func TestSyncManagerStartAndStopAreIdempotent(t *testing.T) {
	root := writeWorkspace(t, map[string]string{"myapp/status.md": "# myapp\n"})
	ix, _ := newTestIndexer(t, root)

	mgr, err := NewSyncManager(ix, time.Minute)
	require.NoError(t, err)

	mgr.Stop() // never started

	mgr.Start()
	mgr.Start() // already running
	mgr.Stop()
	mgr.Stop() // already stopped
}
