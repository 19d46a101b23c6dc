// Package walker enumerates the markdown documents of a vibe workspace.
//
// A workspace root contains one directory per project; documents live
// inside projects, usually one folder deep (tasks/, plans/, sessions/, ...).
// The walker streams every regular *.md file it finds, along with the
// file's modification time and a SHA-256 content hash, so the indexer can
// decide what changed without re-reading unchanged files. Gitignore
// rules from the root and from each project directory are honored.
package walker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/vibecoding/vibemcp/internal/ignore"
)

// resultBuffer is the capacity of the streamed result channel. A modest
// buffer keeps the walk ahead of slow consumers without holding many
// records in memory.
const resultBuffer = 64

// Walk enumerates every markdown document beneath root and streams the
// results. Project directories are the immediate children of root,
// visited in sorted order; within a project the traversal is lexical.
// Any path component starting with "." is skipped, as is anything that
// is not a regular *.md file. Paths matched by a .gitignore at the root
// or inside a project are skipped as well.
//
// Per-file failures (unreadable, not valid UTF-8) are reported on the
// channel and enumeration continues. A directory that cannot be read
// aborts the walk after reporting the error. A missing root yields an
// empty stream: the root is created on demand by the write path, and
// before that happens there is simply nothing to index.
func Walk(ctx context.Context, root string) (<-chan Result, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}

	info, err := os.Stat(absRoot)
	if os.IsNotExist(err) {
		results := make(chan Result)
		close(results)
		return results, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", absRoot)
	}

	results := make(chan Result, resultBuffer)
	go func() {
		defer close(results)
		walkRoot(ctx, absRoot, results)
	}()

	return results, nil
}

// walkRoot visits each project directory in sorted order.
func walkRoot(ctx context.Context, absRoot string, results chan<- Result) {
	entries, err := os.ReadDir(absRoot)
	if err != nil {
		send(ctx, results, Result{Err: fmt.Errorf("failed to read root directory: %w", err)})
		return
	}

	ig := ignore.New()
	if err := ig.LoadFile(filepath.Join(absRoot, ".gitignore"), ""); err != nil {
		if !send(ctx, results, Result{Err: &FileError{Path: ".gitignore", Err: err}}) {
			return
		}
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		// Documents live inside project directories; loose files at the
		// root (and the index database itself) are not documents.
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if !walkProject(ctx, absRoot, entry.Name(), ig, results) {
			return
		}
	}
}

// walkProject traverses a single project directory. It returns false
// when the walk should stop entirely, either because the context was
// cancelled or because a directory could not be read.
func walkProject(ctx context.Context, absRoot, project string, ig *ignore.Matcher, results chan<- Result) bool {
	projectDir := filepath.Join(absRoot, project)

	// A project-level .gitignore governs only its own project; the base
	// keeps its rules from leaking into sibling projects.
	if err := ig.LoadFile(filepath.Join(projectDir, ".gitignore"), project); err != nil {
		if !send(ctx, results, Result{Err: &FileError{Path: project + "/.gitignore", Err: err}}) {
			return false
		}
	}

	walkErr := filepath.WalkDir(projectDir, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			// WalkDir surfaces errors here when a directory cannot be
			// listed. That is not recoverable per-file; propagate.
			return err
		}

		relPath, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return nil
		}
		rel := filepath.ToSlash(relPath)

		name := d.Name()
		if d.IsDir() {
			if path == projectDir {
				return nil
			}
			if strings.HasPrefix(name, ".") || ig.Ignored(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		// Symlinks are intentionally not followed; only regular files
		// are documents.
		if !d.Type().IsRegular() {
			return nil
		}
		if filepath.Ext(name) != ".md" {
			return nil
		}
		if ig.Ignored(rel, false) {
			return nil
		}

		file, readErr := readFile(path, rel, project, d)
		if readErr != nil {
			if !send(ctx, results, Result{Err: readErr}) {
				return ctx.Err()
			}
			return nil
		}
		if !send(ctx, results, Result{File: file}) {
			return ctx.Err()
		}
		return nil
	})

	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			return false
		}
		send(ctx, results, Result{Err: walkErr})
		return false
	}
	return true
}

// readFile reads the document once, hashing its bytes and capturing the
// modification time. Files that are not valid UTF-8 are rejected here so
// the indexer never stores undecodable content.
func readFile(absPath, relPath, project string, d fs.DirEntry) (*FileInfo, error) {
	info, err := d.Info()
	if err != nil {
		return nil, &FileError{Path: relPath, Err: err}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, &FileError{Path: relPath, Err: err}
	}
	if !utf8.Valid(data) {
		return nil, &FileError{Path: relPath, Err: errors.New("file is not valid UTF-8")}
	}

	sum := sha256.Sum256(data)

	return &FileInfo{
		AbsPath:     absPath,
		RelPath:     relPath,
		Project:     project,
		Folder:      FolderOf(relPath, project),
		Filename:    filepath.Base(absPath),
		MTime:       float64(info.ModTime().UnixNano()) / 1e9,
		ContentHash: hex.EncodeToString(sum[:]),
	}, nil
}

// FolderOf extracts the first path component beneath the project
// directory, or "" for files directly in the project root.
func FolderOf(relPath, project string) string {
	rest := strings.TrimPrefix(relPath, project+"/")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i]
	}
	return ""
}

// send delivers r unless the context is cancelled first.
func send(ctx context.Context, results chan<- Result, r Result) bool {
	select {
	case results <- r:
		return true
	case <-ctx.Done():
		return false
	}
}
