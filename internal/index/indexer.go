// Package index orchestrates filesystem-to-store synchronization.
//
// The filesystem is the source of truth. The SQLite index is derived
// and disposable: a full rebuild regenerates every row from the
// workspace, and incremental refreshes keep it warm between rebuilds.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/vibecoding/vibemcp/internal/chunk"
	verrors "github.com/vibecoding/vibemcp/internal/errors"
	"github.com/vibecoding/vibemcp/internal/frontmatter"
	"github.com/vibecoding/vibemcp/internal/store"
	"github.com/vibecoding/vibemcp/internal/ui"
	"github.com/vibecoding/vibemcp/internal/walker"
)

// mtimeEpsilon is the tolerance when comparing file modification times.
// Filesystems round mtimes differently; anything within a millisecond
// counts as unchanged.
const mtimeEpsilon = 0.001

// indexWorkers bounds concurrent parse/chunk work during a rebuild.
var indexWorkers = runtime.NumCPU()

// Indexer coordinates the walker, parser, chunker, and store. Write
// operations serialize behind a mutex; reads go straight to the store.
type Indexer struct {
	root  string
	store *store.Store
	mu    sync.Mutex
}

// New creates an indexer for the workspace rooted at root.
func New(root string, st *store.Store) (*Indexer, error) {
	if root == "" {
		return nil, fmt.Errorf("workspace root is required")
	}
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	return &Indexer{root: absRoot, store: st}, nil
}

// Root returns the absolute workspace root.
func (ix *Indexer) Root() string {
	return ix.root
}

// RebuildResult describes the outcome of a full rebuild.
type RebuildResult struct {
	Documents int
	Chunks    int
	Warnings  int
	Duration  time.Duration
}

// Rebuild regenerates the entire index from the workspace. The store
// swap is a single transaction, so readers see either the old index or
// the new one, never a half-built mix.
func (ix *Indexer) Rebuild(ctx context.Context) (*RebuildResult, error) {
	return ix.RebuildWithProgress(ctx, nil)
}

// RebuildWithProgress is Rebuild with live progress streamed to a
// renderer. A nil renderer disables reporting.
func (ix *Indexer) RebuildWithProgress(ctx context.Context, prog ui.Renderer) (*RebuildResult, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	// A file-backed index may be shared with another process, for
	// example a CLI rebuild next to a running server. Serialize full
	// rebuilds behind a lock file beside the database.
	if dbPath := ix.store.Path(); dbPath != "" {
		lock := flock.New(dbPath + ".lock")
		if _, err := lock.TryLockContext(ctx, 250*time.Millisecond); err != nil {
			return nil, fmt.Errorf("failed to acquire rebuild lock: %w", err)
		}
		defer func() { _ = lock.Unlock() }()
	}

	start := time.Now()
	slog.Info("reindex_started", slog.String("root", ix.root))
	if prog != nil {
		prog.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageScanning,
			Message: fmt.Sprintf("Scanning %s...", ix.root),
		})
	}

	files, warnings, err := ix.collect(ctx, prog)
	if err != nil {
		return nil, err
	}

	if prog != nil {
		prog.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageIndexing,
			Message: fmt.Sprintf("Writing %d documents...", len(files)),
		})
	}
	if err := ix.store.Rebuild(ctx, files); err != nil {
		return nil, err
	}

	chunkCount := 0
	for _, f := range files {
		chunkCount += len(f.Chunks)
	}

	result := &RebuildResult{
		Documents: len(files),
		Chunks:    chunkCount,
		Warnings:  warnings,
		Duration:  time.Since(start),
	}
	if prog != nil {
		prog.Complete(ui.CompletionStats{
			Documents: result.Documents,
			Chunks:    result.Chunks,
			Warnings:  result.Warnings,
			Duration:  result.Duration,
		})
	}
	slog.Info("reindex_complete",
		slog.Int("documents", result.Documents),
		slog.Int("chunks", result.Chunks),
		slog.Int("warnings", result.Warnings),
		slog.Duration("duration", result.Duration))
	return result, nil
}

// EnsureReady rebuilds the index when it holds no projects, so a fresh
// start serves real data. A populated index serves immediately.
func (ix *Indexer) EnsureReady(ctx context.Context) error {
	stats, err := ix.store.GetStats(ctx)
	if err != nil {
		return err
	}
	if stats.Projects > 0 {
		return nil
	}
	_, err = ix.Rebuild(ctx)
	return err
}

// collect walks the workspace and parses every document with a bounded
// worker pool, returning records sorted by path. Per-file failures are
// logged and counted as warnings; a failed directory read aborts.
func (ix *Indexer) collect(ctx context.Context, prog ui.Renderer) ([]store.IndexedFile, int, error) {
	walkCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results, err := walker.Walk(walkCtx, ix.root)
	if err != nil {
		return nil, 0, err
	}

	var (
		mu       sync.Mutex
		files    []store.IndexedFile
		warnings int
		walkErr  error
	)

	var g errgroup.Group
	g.SetLimit(indexWorkers)

	for res := range results {
		if res.Err != nil {
			var fileErr *walker.FileError
			if errors.As(res.Err, &fileErr) {
				slog.Warn("document_skipped",
					slog.String("path", fileErr.Path),
					slog.String("error", fileErr.Err.Error()))
				if prog != nil {
					prog.AddError(ui.ErrorEvent{File: fileErr.Path, Err: fileErr.Err, IsWarn: true})
				}
				mu.Lock()
				warnings++
				mu.Unlock()
				continue
			}
			walkErr = res.Err
			break
		}

		fi := res.File
		g.Go(func() error {
			record, err := ix.load(fi)
			if err != nil {
				slog.Warn("document_skipped",
					slog.String("path", fi.RelPath),
					slog.String("error", err.Error()))
				if prog != nil {
					prog.AddError(ui.ErrorEvent{File: fi.RelPath, Err: err, IsWarn: true})
				}
				mu.Lock()
				warnings++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			files = append(files, *record)
			parsed := len(files)
			mu.Unlock()
			if prog != nil {
				prog.UpdateProgress(ui.ProgressEvent{
					Stage:       ui.StageScanning,
					Current:     parsed,
					CurrentFile: record.Doc.Path,
				})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	if walkErr != nil {
		return nil, 0, fmt.Errorf("workspace walk failed: %w", walkErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Doc.Path < files[j].Doc.Path })
	return files, warnings, nil
}

// load reads and parses one document into an index record.
func (ix *Indexer) load(fi *walker.FileInfo) (*store.IndexedFile, error) {
	data, err := os.ReadFile(fi.AbsPath)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, errors.New("file is not valid UTF-8")
	}
	return ix.buildRecord(fi, data), nil
}

// buildRecord parses frontmatter and chunks the body.
func (ix *Indexer) buildRecord(fi *walker.FileInfo, data []byte) *store.IndexedFile {
	fm, body, _, warn := frontmatter.Parse(data, fi.RelPath)
	if warn != nil {
		slog.Warn("frontmatter_invalid",
			slog.String("path", fi.RelPath),
			slog.String("error", warn.Error()))
	}

	return &store.IndexedFile{
		ProjectName: fi.Project,
		ProjectPath: filepath.Join(ix.root, fi.Project),
		Doc: store.Document{
			Path:        fi.RelPath,
			Folder:      fi.Folder,
			Filename:    fi.Filename,
			Type:        fm.Type,
			Status:      fm.Status,
			Owner:       fm.Owner,
			Tags:        fm.Tags,
			Feature:     fm.Feature,
			ContentHash: fi.ContentHash,
			MTime:       fi.MTime,
			Updated:     fm.Updated,
		},
		Chunks: chunk.Split(body),
	}
}

func (ix *Indexer) upsertRecord(ctx context.Context, record *store.IndexedFile) error {
	projectID, err := ix.store.UpsertProject(ctx, record.ProjectName, record.ProjectPath)
	if err != nil {
		return err
	}
	record.Doc.ProjectID = projectID
	_, err = ix.store.UpsertDocument(ctx, &record.Doc, record.Chunks)
	return err
}

// RefreshFile re-indexes a single document by absolute path. The path
// must resolve under the workspace root after following symlinks. A
// missing file deletes its document row; a file the walker would not
// index (wrong extension, hidden component, not valid UTF-8, outside a
// project) is removed from the index too, keeping refresh and rebuild
// convergent.
func (ix *Indexer) RefreshFile(ctx context.Context, absPath string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.refresh(ctx, absPath)
}

func (ix *Indexer) refresh(ctx context.Context, absPath string) error {
	if !filepath.IsAbs(absPath) {
		return verrors.PathError(fmt.Sprintf("path must be absolute: %s", absPath), nil)
	}

	resolvedRoot, err := filepath.EvalSymlinks(ix.root)
	if err != nil {
		return fmt.Errorf("failed to resolve workspace root: %w", err)
	}

	cleaned := filepath.Clean(absPath)
	resolved, err := filepath.EvalSymlinks(cleaned)
	if err != nil {
		if os.IsNotExist(err) {
			return ix.removeByAbsPath(ctx, resolvedRoot, cleaned)
		}
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	rel, ok := relUnder(resolvedRoot, resolved)
	if !ok {
		return verrors.PathError(fmt.Sprintf("path escapes workspace root: %s", absPath), nil)
	}

	project, indexable := indexableRelPath(rel)
	if !indexable {
		return ix.removeRel(ctx, rel)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return ix.removeRel(ctx, rel)
		}
		return fmt.Errorf("failed to stat %s: %w", rel, err)
	}
	if info.IsDir() {
		return nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", rel, err)
	}
	if !utf8.Valid(data) {
		slog.Warn("document_not_indexable",
			slog.String("path", rel),
			slog.String("reason", "file is not valid UTF-8"))
		return ix.removeRel(ctx, rel)
	}

	sum := sha256.Sum256(data)
	fi := &walker.FileInfo{
		AbsPath:     resolved,
		RelPath:     rel,
		Project:     project,
		Folder:      walker.FolderOf(rel, project),
		Filename:    filepath.Base(resolved),
		MTime:       float64(info.ModTime().UnixNano()) / 1e9,
		ContentHash: hex.EncodeToString(sum[:]),
	}
	return ix.upsertRecord(ctx, ix.buildRecord(fi, data))
}

// removeByAbsPath deletes the document row for a file that no longer
// exists. The relative path is derived lexically against both the
// resolved and configured roots, since the file cannot be resolved.
func (ix *Indexer) removeByAbsPath(ctx context.Context, resolvedRoot, cleaned string) error {
	rel, ok := relUnder(resolvedRoot, cleaned)
	if !ok {
		rel, ok = relUnder(ix.root, cleaned)
	}
	if !ok {
		return verrors.PathError(fmt.Sprintf("path escapes workspace root: %s", cleaned), nil)
	}
	return ix.removeRel(ctx, rel)
}

func (ix *Indexer) removeRel(ctx context.Context, rel string) error {
	deleted, err := ix.store.DeleteDocument(ctx, rel)
	if err != nil {
		return err
	}
	if deleted {
		slog.Info("document_removed", slog.String("path", rel))
	}
	return nil
}

// SyncResult counts the changes applied by one sync pass.
type SyncResult struct {
	Added   int
	Updated int
	Deleted int
}

// Changed reports whether the pass applied anything.
func (r *SyncResult) Changed() bool {
	return r.Added+r.Updated+r.Deleted > 0
}

// Sync reconciles the index with the filesystem: new files are added,
// files whose mtime and content hash changed are re-indexed, files
// whose mtime moved but whose hash is unchanged are touched, and
// indexed paths that vanished from the filesystem are deleted. The
// mtime check is the fast path; content is only re-read when it fires.
func (ix *Indexer) Sync(ctx context.Context) (*SyncResult, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	stamps, err := ix.store.Stamps(ctx)
	if err != nil {
		return nil, err
	}

	walkCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results, err := walker.Walk(walkCtx, ix.root)
	if err != nil {
		return nil, err
	}

	res := &SyncResult{}
	seen := make(map[string]bool, len(stamps))

	for r := range results {
		if r.Err != nil {
			var fileErr *walker.FileError
			if errors.As(r.Err, &fileErr) {
				slog.Warn("document_skipped",
					slog.String("path", fileErr.Path),
					slog.String("error", fileErr.Err.Error()))
				continue
			}
			return nil, fmt.Errorf("workspace walk failed: %w", r.Err)
		}

		fi := r.File
		seen[fi.RelPath] = true

		stamp, indexed := stamps[fi.RelPath]
		switch {
		case !indexed:
			if ix.syncOne(ctx, fi) {
				res.Added++
			}
		case math.Abs(fi.MTime-stamp.MTime) > mtimeEpsilon:
			if fi.ContentHash == stamp.ContentHash {
				if err := ix.store.TouchDocument(ctx, fi.RelPath, fi.MTime); err != nil {
					return nil, err
				}
				continue
			}
			if ix.syncOne(ctx, fi) {
				res.Updated++
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Anything indexed but no longer on disk (or no longer readable as a
	// document) goes away.
	for path := range stamps {
		if !seen[path] {
			if _, err := ix.store.DeleteDocument(ctx, path); err != nil {
				return nil, err
			}
			res.Deleted++
		}
	}

	if res.Changed() {
		slog.Debug("sync_applied",
			slog.Int("added", res.Added),
			slog.Int("updated", res.Updated),
			slog.Int("deleted", res.Deleted))
	}
	return res, nil
}

// syncOne indexes a single walked file, reporting success. Failures
// are logged and skipped so one bad file never wedges the pass.
func (ix *Indexer) syncOne(ctx context.Context, fi *walker.FileInfo) bool {
	record, err := ix.load(fi)
	if err != nil {
		slog.Warn("document_skipped",
			slog.String("path", fi.RelPath),
			slog.String("error", err.Error()))
		return false
	}
	if err := ix.upsertRecord(ctx, record); err != nil {
		slog.Warn("document_index_failed",
			slog.String("path", fi.RelPath),
			slog.String("error", err.Error()))
		return false
	}
	return true
}

// relUnder returns path relative to root as a slash path, refusing
// paths that escape the root.
func relUnder(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// indexableRelPath reports whether rel names a document the walker
// would index: a *.md file inside a project directory with no hidden
// path components. It returns the owning project name.
func indexableRelPath(rel string) (string, bool) {
	parts := strings.Split(rel, "/")
	if len(parts) < 2 {
		return "", false
	}
	for _, part := range parts {
		if strings.HasPrefix(part, ".") {
			return "", false
		}
	}
	if filepath.Ext(rel) != ".md" {
		return "", false
	}
	return parts[0], true
}
