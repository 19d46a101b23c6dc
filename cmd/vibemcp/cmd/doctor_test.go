package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorCmd_HealthyWorkspace_ReportsReady(t *testing.T) {
	isolateEnv(t)
	root := seedProjects(t)
	buildIndex(t, root)

	stdout, _, err := runCLI(t, "doctor", "--root", root)

	require.NoError(t, err)
	assert.Contains(t, stdout, "vibemcp environment check")
	assert.Contains(t, stdout, "[PASS] workspace:")
	assert.Contains(t, stdout, "Status: READY\n")
}

func TestDoctorCmd_NoIndex_WarnsButSucceeds(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()

	stdout, _, err := runCLI(t, "doctor", "--root", root)

	require.NoError(t, err)
	assert.Contains(t, stdout, "[WARN] index_database: no index found")
	assert.Contains(t, stdout, "Status: READY_WITH_WARNINGS")
}

func TestDoctorCmd_RootIsFile_Fails(t *testing.T) {
	isolateEnv(t)
	root := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(root, []byte("x"), 0o644))

	stdout, _, err := runCLI(t, "doctor", "--root", root)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "environment check failed")
	assert.Contains(t, stdout, "[FAIL] workspace:")
	assert.Contains(t, stdout, "Status: FAILED")
}

func TestDoctorCmd_Verbose_ShowsSuggestions(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()

	stdout, _, err := runCLI(t, "doctor", "--root", root, "--verbose")

	require.NoError(t, err)
	assert.Contains(t, stdout, "Run 'vibemcp index' to build it")
}
