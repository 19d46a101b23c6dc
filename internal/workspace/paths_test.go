package workspace

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/vibecoding/vibemcp/internal/errors"
)

func TestValidateProjectName(t *testing.T) {
	tests := []struct {
		name     string
		project  string
		wantCode string
	}{
		{name: "simple", project: "myapp"},
		{name: "dashes and digits", project: "my-app-2"},
		{name: "empty", project: "", wantCode: verrors.ErrCodeInvalidArgument},
		{name: "slash", project: "a/b", wantCode: verrors.ErrCodeInvalidPath},
		{name: "backslash", project: `a\b`, wantCode: verrors.ErrCodeInvalidPath},
		{name: "dotdot", project: "..", wantCode: verrors.ErrCodeInvalidPath},
		{name: "embedded dotdot", project: "a..b", wantCode: verrors.ErrCodeInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProjectName(tt.project)

			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, verrors.HasCode(err, tt.wantCode),
				"expected code %s, got %s", tt.wantCode, verrors.GetCode(err))
		})
	}
}

func TestNormalizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
		wantCode string
	}{
		{name: "adds extension", filename: "notes", want: "notes.md"},
		{name: "keeps extension", filename: "notes.md", want: "notes.md"},
		{name: "empty", filename: "", wantCode: verrors.ErrCodeInvalidArgument},
		{name: "slash", filename: "a/b.md", wantCode: verrors.ErrCodeInvalidPath},
		{name: "backslash", filename: `a\b.md`, wantCode: verrors.ErrCodeInvalidPath},
		{name: "dotdot", filename: "..secret.md", wantCode: verrors.ErrCodeInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeFilename(tt.filename)

			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}
			require.Error(t, err)
			assert.True(t, verrors.HasCode(err, tt.wantCode),
				"expected code %s, got %s", tt.wantCode, verrors.GetCode(err))
		})
	}
}

func TestSecurePathStaysUnderRoot(t *testing.T) {
	root := t.TempDir()
	rootResolved, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)

	got, err := securePath(root, "myapp", "tasks", "001-login.md")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(rootResolved, "myapp", "tasks", "001-login.md"), got)
}

func TestSecurePathRejectsEscapes(t *testing.T) {
	root := t.TempDir()

	_, err := securePath(root, "..", "etc", "passwd")
	require.Error(t, err)
	assert.True(t, verrors.HasCode(err, verrors.ErrCodeInvalidPath))

	// Joining back to the root itself is not a valid document path.
	_, err = securePath(root, "myapp", "..")
	require.Error(t, err)
	assert.True(t, verrors.HasCode(err, verrors.ErrCodeInvalidPath))
}

func TestSecurePathWorksBeforeRootExists(t *testing.T) {
	// The root is created lazily by the first write, so validation
	// must hold up against a purely lexical path.
	root := filepath.Join(t.TempDir(), "vibe")

	got, err := securePath(root, "myapp", "status.md")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "myapp", "status.md"), got)

	_, err = securePath(root, "..", "escape.md")
	require.Error(t, err)
	assert.True(t, verrors.HasCode(err, verrors.ErrCodeInvalidPath))
}

func TestSecurePathResolvesSymlinkedPrefix(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks not reliable on windows")
	}

	// Given a project directory that is a symlink out of the workspace
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "myapp")))

	// When a path through the symlink is validated
	_, err := securePath(root, "myapp", "tasks", "001-login.md")

	// Then the resolved target is recognized as an escape
	require.Error(t, err)
	assert.True(t, verrors.HasCode(err, verrors.ErrCodeInvalidPath))
}
