package preflight

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibecoding/vibemcp/internal/config"
)

func TestCheckStatus_String(t *testing.T) {
	assert.Equal(t, "PASS", StatusPass.String())
	assert.Equal(t, "WARN", StatusWarn.String())
	assert.Equal(t, "FAIL", StatusFail.String())
	assert.Equal(t, "UNKNOWN", CheckStatus(99).String())
}

func TestCheckWorkspace_MissingRoot_Passes(t *testing.T) {
	c := New()

	result := c.CheckWorkspace(filepath.Join(t.TempDir(), "not-yet"))

	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, "will be created")
}

func TestCheckWorkspace_Directory_Passes(t *testing.T) {
	c := New()
	root := t.TempDir()

	result := c.CheckWorkspace(root)

	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, root, result.Message)
}

func TestCheckWorkspace_FileAsRoot_Fails(t *testing.T) {
	c := New()
	root := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(root, []byte("x"), 0o644))

	result := c.CheckWorkspace(root)

	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "not a directory")
	assert.True(t, result.IsCritical())
}

func TestCheckWorkspaceWritable_Writable_Passes(t *testing.T) {
	c := New()
	root := t.TempDir()

	result := c.CheckWorkspaceWritable(root)

	assert.Equal(t, StatusPass, result.Status)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "the write probe must clean up after itself")
}

func TestCheckWorkspaceWritable_MissingRoot_Skips(t *testing.T) {
	c := New()

	result := c.CheckWorkspaceWritable(filepath.Join(t.TempDir(), "not-yet"))

	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, "skipped")
}

func TestCheckDatabase_Missing_Warns(t *testing.T) {
	c := New()

	result := c.CheckDatabase(filepath.Join(t.TempDir(), "index.db"))

	assert.Equal(t, StatusWarn, result.Status)
	assert.Equal(t, "no index found", result.Message)
	assert.False(t, result.IsCritical())
}

func TestCheckDatabase_Empty_Warns(t *testing.T) {
	c := New()
	dbPath := filepath.Join(t.TempDir(), "index.db")
	require.NoError(t, os.WriteFile(dbPath, nil, 0o644))

	result := c.CheckDatabase(dbPath)

	assert.Equal(t, StatusWarn, result.Status)
	assert.Contains(t, result.Message, "empty")
}

func TestCheckDatabase_NotSQLite_Fails(t *testing.T) {
	c := New()
	dbPath := filepath.Join(t.TempDir(), "index.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("definitely not a database"), 0o644))

	result := c.CheckDatabase(dbPath)

	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "not a SQLite file")
	assert.Contains(t, result.Details, "--force")
}

func TestCheckDatabase_ValidHeader_Passes(t *testing.T) {
	c := New()
	dbPath := filepath.Join(t.TempDir(), "index.db")
	content := append([]byte("SQLite format 3\x00"), make([]byte, 4096)...)
	require.NoError(t, os.WriteFile(dbPath, content, 0o644))

	result := c.CheckDatabase(dbPath)

	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, dbPath)
}

func TestCheckDiskSpace_ExistingRoot(t *testing.T) {
	c := New()

	result := c.CheckDiskSpace(t.TempDir())

	assert.NotEqual(t, StatusWarn, result.Status)
	assert.Contains(t, result.Message, "free (minimum: 100 MB)")
}

func TestCheckDiskSpace_MissingRootUsesAncestor(t *testing.T) {
	c := New()
	root := filepath.Join(t.TempDir(), "a", "b", "c")

	result := c.CheckDiskSpace(root)

	assert.Contains(t, result.Message, "free (minimum: 100 MB)")
}

func TestCheckFileDescriptors_ReportsLimit(t *testing.T) {
	c := New()

	result := c.CheckFileDescriptors()

	assert.Equal(t, "file_descriptors", result.Name)
	assert.Contains(t, result.Message, "minimum")
}

func TestSummaryStatus(t *testing.T) {
	c := New()

	tests := []struct {
		name    string
		results []CheckResult
		want    string
	}{
		{
			name: "all passing",
			results: []CheckResult{
				{Status: StatusPass, Required: true},
				{Status: StatusPass},
			},
			want: "ready",
		},
		{
			name: "warning only",
			results: []CheckResult{
				{Status: StatusPass, Required: true},
				{Status: StatusWarn},
			},
			want: "ready_with_warnings",
		},
		{
			name: "optional failure",
			results: []CheckResult{
				{Status: StatusPass, Required: true},
				{Status: StatusFail, Required: false},
			},
			want: "ready_with_warnings",
		},
		{
			name: "required failure",
			results: []CheckResult{
				{Status: StatusFail, Required: true},
				{Status: StatusPass},
			},
			want: "failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.SummaryStatus(tt.results))
		})
	}
}

func TestHasCriticalFailures(t *testing.T) {
	c := New()

	assert.False(t, c.HasCriticalFailures([]CheckResult{
		{Status: StatusFail, Required: false},
		{Status: StatusWarn, Required: true},
	}))
	assert.True(t, c.HasCriticalFailures([]CheckResult{
		{Status: StatusFail, Required: true},
	}))
}

func TestPrintResults_RendersReport(t *testing.T) {
	var buf bytes.Buffer
	c := New(WithOutput(&buf), WithVerbose(true))

	c.PrintResults([]CheckResult{
		{Name: "workspace", Status: StatusPass, Message: "/tmp/ws", Required: true},
		{Name: "index_database", Status: StatusWarn, Message: "no index found", Details: "Run 'vibemcp index' to build it"},
	})

	out := buf.String()
	assert.Contains(t, out, "vibemcp environment check")
	assert.Contains(t, out, "[PASS] workspace: /tmp/ws")
	assert.Contains(t, out, "[WARN] index_database: no index found")
	assert.Contains(t, out, "Run 'vibemcp index' to build it")
	assert.Contains(t, out, "Status: READY_WITH_WARNINGS")
	assert.Contains(t, out, "1 warning(s):")
}

func TestRunAll_CoversEveryConcern(t *testing.T) {
	c := New(WithOutput(&bytes.Buffer{}))
	cfg := config.NewConfig()
	cfg.Root = t.TempDir()

	results := c.RunAll(context.Background(), cfg)

	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{
		"workspace",
		"workspace_writable",
		"index_database",
		"disk_space",
		"file_descriptors",
		"log_directory",
	}, names)
}
