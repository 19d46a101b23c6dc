package workspace

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vibecoding/vibemcp/internal/frontmatter"
	"github.com/vibecoding/vibemcp/internal/store"
)

// DefaultCacheSize bounds the Reader's document cache.
const DefaultCacheSize = 128

// DocMetadata is the header block returned with full documents.
type DocMetadata struct {
	Type    string   `json:"type"`
	Status  string   `json:"status"`
	Updated string   `json:"updated"`
	Tags    []string `json:"tags"`
	Owner   string   `json:"owner"`
}

// PlanMetadata is the reduced header returned with plans.
type PlanMetadata struct {
	Type    string `json:"type"`
	Updated string `json:"updated"`
}

// DocResult is a soft-failure read: a document that cannot be served
// comes back with Exists/Error set instead of an error return, so
// callers can hand the outcome to the client verbatim.
type DocResult struct {
	Project  string       `json:"project"`
	Folder   string       `json:"folder"`
	Filename string       `json:"filename"`
	Path     string       `json:"path"`
	Metadata *DocMetadata `json:"metadata"`
	Content  string       `json:"content"`
	Exists   bool         `json:"exists"`
	Error    string       `json:"error,omitempty"`
}

// PlanResult reports a plan lookup. A missing plan is a normal
// outcome: Exists is false and Error stays empty.
type PlanResult struct {
	Project  string        `json:"project"`
	Filename string        `json:"filename"`
	Path     string        `json:"path"`
	Exists   bool          `json:"exists"`
	Metadata *PlanMetadata `json:"metadata"`
	Content  string        `json:"content"`
	Error    string        `json:"error,omitempty"`
}

// TaskInfo is one row of a task listing.
type TaskInfo struct {
	ProjectName string `json:"project_name"`
	Path        string `json:"path"`
	Filename    string `json:"filename"`
	Status      string `json:"status"`
	Owner       string `json:"owner"`
	Updated     string `json:"updated"`
}

// ReaderConfig configures a Reader.
type ReaderConfig struct {
	// Root is the workspace root.
	Root string

	// Store answers task listings.
	Store *store.Store

	// CacheSize bounds the content cache. Defaults to 128 documents.
	CacheSize int
}

// Reader serves documents straight from the workspace with parsed
// metadata, caching content keyed by relative path and validated
// against the file's current mtime.
type Reader struct {
	root  string
	store *store.Store
	cache *lru.Cache[string, cachedDoc]
}

type cachedDoc struct {
	mtime   time.Time
	content string
}

// NewReader validates the configuration and returns a Reader.
func NewReader(cfg ReaderConfig) (*Reader, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("workspace root is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, cachedDoc](size)
	if err != nil {
		return nil, err
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve workspace root: %w", err)
	}
	return &Reader{root: root, store: cfg.Store, cache: cache}, nil
}

// ReadDoc reads one document with its parsed metadata.
func (r *Reader) ReadDoc(project, folder, filename string) *DocResult {
	rel := path.Join(project, folder, filename)
	res := &DocResult{Project: project, Folder: folder, Filename: filename, Path: rel}

	target, err := securePath(r.root, project, folder, filename)
	if err != nil {
		res.Error = "path is outside the workspace"
		return res
	}
	info, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			res.Error = "document not found"
		} else {
			res.Error = fmt.Sprintf("invalid path: %s", err)
		}
		return res
	}
	if !info.Mode().IsRegular() {
		res.Error = "path is not a file"
		return res
	}

	content, err := r.readCached(rel, target, info.ModTime())
	if err != nil {
		res.Exists = true
		res.Error = fmt.Sprintf("error reading file: %s", err)
		return res
	}

	fm, _, _, _ := frontmatter.Parse([]byte(content), rel)
	updated := fm.Updated
	if updated == "" {
		updated = info.ModTime().Format("2006-01-02")
	}
	tags := fm.Tags
	if tags == nil {
		tags = []string{}
	}
	res.Metadata = &DocMetadata{
		Type:    fm.Type,
		Status:  fm.Status,
		Updated: updated,
		Tags:    tags,
		Owner:   fm.Owner,
	}
	res.Content = content
	res.Exists = true
	return res
}

// GetPlan reads a project's plan, defaulting to the standard
// execution-plan.md filename.
func (r *Reader) GetPlan(project, filename string) *PlanResult {
	if filename == "" {
		filename = DefaultPlanFilename
	}
	rel := path.Join(project, "plans", filename)
	res := &PlanResult{Project: project, Filename: filename, Path: rel}

	target, err := securePath(r.root, project, "plans", filename)
	if err != nil {
		res.Error = "path is outside the workspace"
		return res
	}
	info, err := os.Stat(target)
	if err != nil {
		return res
	}
	content, err := r.readCached(rel, target, info.ModTime())
	if err != nil {
		res.Error = fmt.Sprintf("error reading file: %s", err)
		return res
	}

	fm, _, _, _ := frontmatter.Parse([]byte(content), rel)
	updated := fm.Updated
	if updated == "" {
		updated = info.ModTime().Format("2006-01-02")
	}
	res.Metadata = &PlanMetadata{Type: fm.Type, Updated: updated}
	res.Content = content
	res.Exists = true
	return res
}

// ListTasks lists indexed tasks, optionally filtered by project and
// status, ordered by path.
func (r *Reader) ListTasks(ctx context.Context, project, status string) ([]TaskInfo, error) {
	docs, err := r.store.ListDocuments(ctx, store.DocumentFilter{
		Project: project,
		Folder:  "tasks",
		Status:  status,
	})
	if err != nil {
		return nil, err
	}
	tasks := make([]TaskInfo, 0, len(docs))
	for _, doc := range docs {
		tasks = append(tasks, TaskInfo{
			ProjectName: projectOf(doc.Path),
			Path:        doc.Path,
			Filename:    doc.Filename,
			Status:      doc.Status,
			Owner:       doc.Owner,
			Updated:     doc.Updated,
		})
	}
	return tasks, nil
}

// readCached serves repeat reads of an unchanged file from the LRU.
func (r *Reader) readCached(rel, target string, mtime time.Time) (string, error) {
	if entry, ok := r.cache.Get(rel); ok && entry.mtime.Equal(mtime) {
		return entry.content, nil
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return "", err
	}
	content := string(data)
	r.cache.Add(rel, cachedDoc{mtime: mtime, content: content})
	return content, nil
}

// projectOf extracts the project segment of a workspace-relative path.
func projectOf(rel string) string {
	if i := strings.IndexByte(rel, '/'); i >= 0 {
		return rel[:i]
	}
	return rel
}
