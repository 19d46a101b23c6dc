// Package workspace is the read/write surface over the vibe document
// tree. Writers validate every path against the workspace root, write
// atomically, refresh the index, and notify subscribers; readers serve
// documents with parsed metadata through a small cache.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	verrors "github.com/vibecoding/vibemcp/internal/errors"
)

// ValidateProjectName rejects names that could address anything other
// than a direct child of the workspace root.
func ValidateProjectName(name string) error {
	if name == "" {
		return verrors.ValidationError("project name is required", nil)
	}
	if strings.Contains(name, "/") || strings.Contains(name, "\\") || strings.Contains(name, "..") {
		return verrors.PathError(fmt.Sprintf("invalid project name: %s", name), nil)
	}
	return nil
}

// normalizeFilename validates a bare markdown filename and appends the
// .md extension when missing.
func normalizeFilename(filename string) (string, error) {
	if filename == "" {
		return "", verrors.ValidationError("filename is required", nil)
	}
	if strings.Contains(filename, "/") || strings.Contains(filename, "\\") {
		return "", verrors.PathError("filename cannot contain path separators", nil)
	}
	if strings.Contains(filename, "..") {
		return "", verrors.PathError("path traversal not allowed", nil)
	}
	if !strings.HasSuffix(filename, ".md") {
		filename += ".md"
	}
	return filename, nil
}

// securePath joins parts under root and verifies the result stays
// inside it after resolving symlinks in whatever prefix of the path
// already exists. The returned path is absolute and safe to use as a
// write target.
func securePath(root string, parts ...string) (string, error) {
	rootResolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", verrors.PathError(fmt.Sprintf("cannot resolve workspace root: %s", root), err)
		}
		// The root is created on first write; until then the lexical
		// path is the canonical one.
		rootResolved = filepath.Clean(root)
	}

	target := filepath.Join(append([]string{rootResolved}, parts...)...)
	resolved, err := resolveExistingPrefix(target)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(rootResolved, resolved)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", verrors.PathError(fmt.Sprintf("path outside workspace: %s", strings.Join(parts, "/")), nil)
	}
	return resolved, nil
}

// resolveExistingPrefix resolves symlinks in the deepest existing
// ancestor of path and rejoins the not-yet-created remainder.
func resolveExistingPrefix(path string) (string, error) {
	var tail []string
	cur := path
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(append([]string{resolved}, tail...)...), nil
		}
		if !os.IsNotExist(err) {
			return "", verrors.PathError(fmt.Sprintf("cannot resolve path: %s", path), err)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", verrors.PathError(fmt.Sprintf("cannot resolve path: %s", path), err)
		}
		tail = append([]string{filepath.Base(cur)}, tail...)
		cur = parent
	}
}
