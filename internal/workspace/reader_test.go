package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibecoding/vibemcp/internal/index"
	"github.com/vibecoding/vibemcp/internal/store"
)

func newTestReader(t *testing.T, files map[string]string) (*Reader, string, *store.Store) {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	}
	st, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, st.Close()) })
	r, err := NewReader(ReaderConfig{Root: root, Store: st})
	require.NoError(t, err)
	return r, root, st
}

func TestReadDocReturnsContentAndMetadata(t *testing.T) {
	content := "---\nstatus: in-progress\nowner: sam\nupdated: 2025-02-10\ntags: [Auth, Core]\n---\n\n# Task: Login\n"
	r, _, _ := newTestReader(t, map[string]string{
		"myapp/tasks/001-login.md": content,
	})

	res := r.ReadDoc("myapp", "tasks", "001-login.md")

	require.True(t, res.Exists)
	assert.Empty(t, res.Error)
	assert.Equal(t, "myapp/tasks/001-login.md", res.Path)
	assert.Equal(t, content, res.Content)
	require.NotNil(t, res.Metadata)
	assert.Equal(t, "task", res.Metadata.Type)
	assert.Equal(t, "in-progress", res.Metadata.Status)
	assert.Equal(t, "2025-02-10", res.Metadata.Updated)
	assert.Equal(t, []string{"auth", "core"}, res.Metadata.Tags)
	assert.Equal(t, "sam", res.Metadata.Owner)
}

func TestReadDocFallsBackToFileDate(t *testing.T) {
	r, root, _ := newTestReader(t, map[string]string{
		"myapp/scratch/idea.md": "A thought.\n",
	})
	info, err := os.Stat(filepath.Join(root, "myapp", "scratch", "idea.md"))
	require.NoError(t, err)

	res := r.ReadDoc("myapp", "scratch", "idea.md")

	require.True(t, res.Exists)
	require.NotNil(t, res.Metadata)
	assert.Equal(t, info.ModTime().Format("2006-01-02"), res.Metadata.Updated)
	assert.Equal(t, []string{}, res.Metadata.Tags)
}

func TestReadDocSoftFailures(t *testing.T) {
	r, _, _ := newTestReader(t, map[string]string{
		"myapp/tasks/001-login.md": "# Task: Login\n",
	})

	missing := r.ReadDoc("myapp", "tasks", "999-nope.md")
	assert.False(t, missing.Exists)
	assert.Equal(t, "document not found", missing.Error)
	assert.Nil(t, missing.Metadata)

	escape := r.ReadDoc("..", "..", "etc/passwd")
	assert.False(t, escape.Exists)
	assert.Equal(t, "path is outside the workspace", escape.Error)

	dir := r.ReadDoc("myapp", "", "tasks")
	assert.False(t, dir.Exists)
	assert.Equal(t, "path is not a file", dir.Error)
}

func TestReadDocServesCachedContentUntilChanged(t *testing.T) {
	// Given a document that has been read once
	r, root, _ := newTestReader(t, map[string]string{
		"myapp/references/api.md": "first\n",
	})
	target := filepath.Join(root, "myapp", "references", "api.md")
	info, err := os.Stat(target)
	require.NoError(t, err)
	mtime := info.ModTime()

	first := r.ReadDoc("myapp", "references", "api.md")
	require.True(t, first.Exists)
	assert.Equal(t, "first\n", first.Content)

	// When the file changes but keeps its mtime, the cache still wins
	require.NoError(t, os.WriteFile(target, []byte("second\n"), 0o644))
	require.NoError(t, os.Chtimes(target, mtime, mtime))
	cached := r.ReadDoc("myapp", "references", "api.md")
	assert.Equal(t, "first\n", cached.Content)

	// Then a new mtime invalidates the entry
	newer := mtime.Add(2 * time.Second)
	require.NoError(t, os.Chtimes(target, newer, newer))
	fresh := r.ReadDoc("myapp", "references", "api.md")
	assert.Equal(t, "second\n", fresh.Content)
}

func TestGetPlanDefaultsFilename(t *testing.T) {
	r, _, _ := newTestReader(t, map[string]string{
		"myapp/plans/execution-plan.md": "# Plan\n\n## Next Steps\nShip it.\n",
	})

	res := r.GetPlan("myapp", "")

	require.True(t, res.Exists)
	assert.Equal(t, "execution-plan.md", res.Filename)
	assert.Equal(t, "myapp/plans/execution-plan.md", res.Path)
	require.NotNil(t, res.Metadata)
	assert.Equal(t, "plan", res.Metadata.Type)
	assert.Contains(t, res.Content, "## Next Steps")
}

func TestGetPlanMissingIsNotAnError(t *testing.T) {
	r, _, _ := newTestReader(t, nil)

	res := r.GetPlan("myapp", "feature-auth.md")

	assert.False(t, res.Exists)
	assert.Empty(t, res.Error)
	assert.Nil(t, res.Metadata)
	assert.Equal(t, "myapp/plans/feature-auth.md", res.Path)
}

func TestListTasksFilters(t *testing.T) {
	// Given two projects with indexed tasks
	r, root, st := newTestReader(t, map[string]string{
		"myapp/tasks/001-login.md":  "# Task: Login\n\nStatus: in-progress\n",
		"myapp/tasks/002-logout.md": "# Task: Logout\n\nStatus: pending\n",
		"otherapp/tasks/001-bot.md": "# Task: Bot\n\nStatus: pending\n",
		"myapp/plans/plan.md":       "# Plan\n",
	})
	ix, err := index.New(root, st)
	require.NoError(t, err)
	_, err = ix.Rebuild(context.Background())
	require.NoError(t, err)
	ctx := context.Background()

	// When listing without filters, every task comes back ordered
	all, err := r.ListTasks(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "myapp", all[0].ProjectName)
	assert.Equal(t, "001-login.md", all[0].Filename)
	assert.Equal(t, "otherapp", all[2].ProjectName)

	// And filters narrow by project and status
	mine, err := r.ListTasks(ctx, "myapp", "")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	active, err := r.ListTasks(ctx, "", "in-progress")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "001-login.md", active[0].Filename)
	assert.Equal(t, "in-progress", active[0].Status)
}

func TestNewReaderValidatesInputs(t *testing.T) {
	st, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, st.Close()) })

	_, err = NewReader(ReaderConfig{Store: st})
	require.Error(t, err)

	_, err = NewReader(ReaderConfig{Root: t.TempDir()})
	require.Error(t, err)
}
