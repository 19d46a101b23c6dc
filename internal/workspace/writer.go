package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/renameio"

	verrors "github.com/vibecoding/vibemcp/internal/errors"
	"github.com/vibecoding/vibemcp/internal/index"
	"github.com/vibecoding/vibemcp/internal/webhook"
)

// DefaultPlanFilename is used when CreatePlan gets no filename.
const DefaultPlanFilename = "execution-plan.md"

// StandardFolders is the folder layout created by InitProject.
var StandardFolders = []string{
	"tasks", "plans", "sessions", "reports",
	"changelog", "references", "scratch", "assets",
}

// validStatuses are the accepted task states, sorted for messages.
var validStatuses = []string{"blocked", "done", "in-progress", "pending"}

var (
	taskNumberPattern = regexp.MustCompile(`^(\d{3,})-.*\.md$`)
	slugStripPattern  = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	slugDashPattern   = regexp.MustCompile(`[-\s]+`)
	statusLinePattern = regexp.MustCompile(`(?m)^Status:.*$`)
)

// EventSink receives notifications after successful writes. Fire must
// not block the caller.
type EventSink interface {
	Fire(eventType, project string, data map[string]any)
}

// WriterConfig configures a Writer.
type WriterConfig struct {
	// Indexer refreshes documents after each write. Its root is the
	// workspace the Writer operates on.
	Indexer *index.Indexer

	// Events receives change notifications. Optional.
	Events EventSink

	// ReadOnly rejects every write with a permission error.
	ReadOnly bool

	// Now supplies session-log timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Writer performs validated, atomic writes into the workspace, then
// refreshes the index and notifies subscribers. The workspace root is
// created on first write.
type Writer struct {
	root     string
	indexer  *index.Indexer
	events   EventSink
	readOnly bool
	now      func() time.Time
}

// NewWriter validates the configuration and returns a Writer rooted at
// the indexer's workspace.
func NewWriter(cfg WriterConfig) (*Writer, error) {
	if cfg.Indexer == nil {
		return nil, fmt.Errorf("indexer is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Writer{
		root:     cfg.Indexer.Root(),
		indexer:  cfg.Indexer,
		events:   cfg.Events,
		readOnly: cfg.ReadOnly,
		now:      now,
	}, nil
}

// WriteResult describes a completed write.
type WriteResult struct {
	Action       string `json:"status"`
	Path         string `json:"path"`
	AbsolutePath string `json:"absolute_path"`
	Filename     string `json:"filename,omitempty"`
}

// TaskResult extends WriteResult with the assigned task number.
type TaskResult struct {
	WriteResult
	TaskNumber int    `json:"task_number"`
	Feature    string `json:"feature,omitempty"`
}

// StatusResult reports a task status change.
type StatusResult struct {
	WriteResult
	NewStatus string `json:"new_status"`
}

// SessionResult reports a session log write.
type SessionResult struct {
	WriteResult
	Date string `json:"date"`
}

// InitResult reports a newly initialized project.
type InitResult struct {
	Action       string   `json:"status"`
	Project      string   `json:"project"`
	Path         string   `json:"path"`
	AbsolutePath string   `json:"absolute_path"`
	Folders      []string `json:"folders"`
}

// ReindexResult reports a full rebuild.
type ReindexResult struct {
	Action        string `json:"status"`
	DocumentCount int    `json:"document_count"`
}

// CreateDoc writes a new document into a project folder. The folder
// may be empty for project-root files. Existing files are not
// overwritten; use UpdateDoc for that.
func (w *Writer) CreateDoc(ctx context.Context, project, folder, filename, content string) (*WriteResult, error) {
	if err := w.checkWritable(); err != nil {
		return nil, err
	}
	if err := ValidateProjectName(project); err != nil {
		return nil, err
	}
	if strings.Contains(folder, "..") {
		return nil, verrors.PathError("path traversal not allowed", nil)
	}
	name, err := normalizeFilename(filename)
	if err != nil {
		return nil, err
	}
	if err := w.ensureRoot(); err != nil {
		return nil, err
	}
	target, err := securePath(w.root, project, folder, name)
	if err != nil {
		return nil, err
	}
	rel := path.Join(project, folder, name)

	if _, err := os.Stat(target); err == nil {
		return nil, verrors.AlreadyExistsError(fmt.Sprintf("file already exists: %s", rel), nil)
	}
	if err := w.write(target, []byte(content)); err != nil {
		return nil, err
	}
	slog.Info("doc_created", slog.String("path", rel))

	if err := w.refresh(ctx, target, rel); err != nil {
		return nil, err
	}
	w.fire(webhook.EventDocCreated, project, map[string]any{
		"folder":   folder,
		"filename": name,
		"path":     rel,
	})
	return &WriteResult{Action: "created", Path: rel, AbsolutePath: target}, nil
}

// UpdateDoc overwrites an existing document addressed by its
// project-relative path, such as "plans/execution-plan.md".
func (w *Writer) UpdateDoc(ctx context.Context, project, docPath, content string) (*WriteResult, error) {
	if err := w.checkWritable(); err != nil {
		return nil, err
	}
	if err := ValidateProjectName(project); err != nil {
		return nil, err
	}
	if docPath == "" {
		return nil, verrors.ValidationError("document path is required", nil)
	}
	if strings.Contains(docPath, "..") {
		return nil, verrors.PathError("path traversal not allowed", nil)
	}
	if err := w.ensureRoot(); err != nil {
		return nil, err
	}
	target, err := securePath(w.root, project, docPath)
	if err != nil {
		return nil, err
	}
	rel := path.Join(project, docPath)

	if _, err := os.Stat(target); err != nil {
		return nil, verrors.NotFoundError(fmt.Sprintf("file not found: %s", docPath), nil)
	}
	if err := w.write(target, []byte(content)); err != nil {
		return nil, err
	}
	slog.Info("doc_updated", slog.String("path", rel))

	if err := w.refresh(ctx, target, rel); err != nil {
		return nil, err
	}
	w.fire(webhook.EventDocUpdated, project, map[string]any{
		"filename": filepath.Base(target),
		"path":     rel,
	})
	return &WriteResult{Action: "updated", Path: rel, AbsolutePath: target}, nil
}

// CreateTask writes a numbered task document in the standard format.
// Numbers are per project: one above the highest NNN-*.md in tasks/.
func (w *Writer) CreateTask(ctx context.Context, project, title, objective string, steps []string, feature string) (*TaskResult, error) {
	if err := w.checkWritable(); err != nil {
		return nil, err
	}
	if err := ValidateProjectName(project); err != nil {
		return nil, err
	}
	if err := w.ensureRoot(); err != nil {
		return nil, err
	}
	tasksDir, err := securePath(w.root, project, "tasks")
	if err != nil {
		return nil, err
	}
	num, err := nextTaskNumber(tasksDir)
	if err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("%03d-%s.md", num, slugify(title))
	target := filepath.Join(tasksDir, filename)
	rel := path.Join(project, "tasks", filename)

	if _, err := os.Stat(target); err == nil {
		return nil, verrors.AlreadyExistsError(fmt.Sprintf("task file already exists: %s", filename), nil)
	}
	if err := w.write(target, []byte(taskContent(title, objective, steps, feature))); err != nil {
		return nil, err
	}
	slog.Info("task_created",
		slog.String("path", rel),
		slog.Int("task_number", num))

	if err := w.refresh(ctx, target, rel); err != nil {
		return nil, err
	}
	data := map[string]any{
		"task_number": num,
		"title":       title,
		"filename":    filename,
		"path":        rel,
		"status":      "pending",
	}
	if feature != "" {
		data["feature"] = feature
	}
	w.fire(webhook.EventTaskCreated, project, data)

	return &TaskResult{
		WriteResult: WriteResult{Action: "created", Path: rel, AbsolutePath: target, Filename: filename},
		TaskNumber:  num,
		Feature:     feature,
	}, nil
}

// UpdateTaskStatus rewrites the first Status: line of a task, or adds
// one under the title when the document has none.
func (w *Writer) UpdateTaskStatus(ctx context.Context, project, taskFile, newStatus string) (*StatusResult, error) {
	if err := w.checkWritable(); err != nil {
		return nil, err
	}
	if !slices.Contains(validStatuses, newStatus) {
		return nil, verrors.ValidationError(fmt.Sprintf(
			"invalid status: %s, must be one of: %s",
			newStatus, strings.Join(validStatuses, ", ")), nil)
	}
	if err := ValidateProjectName(project); err != nil {
		return nil, err
	}
	if strings.Contains(taskFile, "..") {
		return nil, verrors.PathError("path traversal not allowed", nil)
	}
	if err := w.ensureRoot(); err != nil {
		return nil, err
	}
	target, err := securePath(w.root, project, "tasks", taskFile)
	if err != nil {
		return nil, err
	}
	rel := path.Join(project, "tasks", taskFile)

	data, err := os.ReadFile(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, verrors.NotFoundError(fmt.Sprintf("task file not found: %s", taskFile), nil)
		}
		return nil, verrors.InternalError(fmt.Sprintf("cannot read %s", rel), err)
	}
	if err := w.write(target, []byte(setStatusLine(string(data), newStatus))); err != nil {
		return nil, err
	}
	slog.Info("task_status_updated",
		slog.String("path", rel),
		slog.String("new_status", newStatus))

	if err := w.refresh(ctx, target, rel); err != nil {
		return nil, err
	}
	w.fire(webhook.EventTaskUpdated, project, map[string]any{
		"filename":   taskFile,
		"path":       rel,
		"new_status": newStatus,
	})
	return &StatusResult{
		WriteResult: WriteResult{Action: "updated", Path: rel, AbsolutePath: target},
		NewStatus:   newStatus,
	}, nil
}

// CreatePlan writes or replaces a plan document in plans/.
func (w *Writer) CreatePlan(ctx context.Context, project, content, filename string) (*WriteResult, error) {
	if err := w.checkWritable(); err != nil {
		return nil, err
	}
	if err := ValidateProjectName(project); err != nil {
		return nil, err
	}
	if filename == "" {
		filename = DefaultPlanFilename
	}
	name, err := normalizeFilename(filename)
	if err != nil {
		return nil, err
	}
	if err := w.ensureRoot(); err != nil {
		return nil, err
	}
	target, err := securePath(w.root, project, "plans", name)
	if err != nil {
		return nil, err
	}
	rel := path.Join(project, "plans", name)

	action := "created"
	if _, err := os.Stat(target); err == nil {
		action = "updated"
	}
	if err := w.write(target, []byte(content)); err != nil {
		return nil, err
	}
	slog.Info("plan_written",
		slog.String("path", rel),
		slog.String("action", action))

	if err := w.refresh(ctx, target, rel); err != nil {
		return nil, err
	}
	event := webhook.EventPlanCreated
	if action == "updated" {
		event = webhook.EventPlanUpdated
	}
	w.fire(event, project, map[string]any{
		"filename": name,
		"path":     rel,
	})
	return &WriteResult{Action: action, Path: rel, AbsolutePath: target, Filename: name}, nil
}

// LogSession creates today's session log or appends to it under a
// timestamp separator.
func (w *Writer) LogSession(ctx context.Context, project, content string) (*SessionResult, error) {
	if err := w.checkWritable(); err != nil {
		return nil, err
	}
	if err := ValidateProjectName(project); err != nil {
		return nil, err
	}
	if err := w.ensureRoot(); err != nil {
		return nil, err
	}
	now := w.now()
	date := now.Format("2006-01-02")
	target, err := securePath(w.root, project, "sessions", date+".md")
	if err != nil {
		return nil, err
	}
	rel := path.Join(project, "sessions", date+".md")

	action := "created"
	var body string
	existing, err := os.ReadFile(target)
	switch {
	case err == nil:
		action = "appended"
		body = fmt.Sprintf("%s\n\n---\n**%s**\n\n%s\n", existing, now.Format("15:04:05"), content)
	case os.IsNotExist(err):
		body = fmt.Sprintf("# Session Log - %s\n\n%s\n", date, content)
	default:
		return nil, verrors.InternalError(fmt.Sprintf("cannot read %s", rel), err)
	}
	if err := w.write(target, []byte(body)); err != nil {
		return nil, err
	}
	slog.Info("session_logged",
		slog.String("path", rel),
		slog.String("action", action))

	if err := w.refresh(ctx, target, rel); err != nil {
		return nil, err
	}
	w.fire(webhook.EventSessionLogged, project, map[string]any{
		"date":   date,
		"path":   rel,
		"action": action,
	})
	return &SessionResult{
		WriteResult: WriteResult{Action: action, Path: rel, AbsolutePath: target},
		Date:        date,
	}, nil
}

// InitProject creates the standard folder layout plus a seed status.md
// for a project that does not exist yet.
func (w *Writer) InitProject(ctx context.Context, project string) (*InitResult, error) {
	if err := w.checkWritable(); err != nil {
		return nil, err
	}
	if err := ValidateProjectName(project); err != nil {
		return nil, err
	}
	if err := w.ensureRoot(); err != nil {
		return nil, err
	}
	projectPath, err := securePath(w.root, project)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(projectPath); err == nil {
		return nil, verrors.AlreadyExistsError(fmt.Sprintf("project already exists: %s", project), nil)
	}

	for _, folder := range StandardFolders {
		if err := os.MkdirAll(filepath.Join(projectPath, folder), 0o755); err != nil {
			return nil, verrors.InternalError(fmt.Sprintf("cannot create %s/%s", project, folder), err)
		}
	}
	statusPath := filepath.Join(projectPath, "status.md")
	seed := fmt.Sprintf("# %s\n\nStatus: setup\n", project)
	if err := w.write(statusPath, []byte(seed)); err != nil {
		return nil, err
	}
	slog.Info("project_initialized", slog.String("project", project))

	if err := w.refresh(ctx, statusPath, path.Join(project, "status.md")); err != nil {
		return nil, err
	}
	folders := slices.Clone(StandardFolders)
	w.fire(webhook.EventProjectInitialized, project, map[string]any{
		"project": project,
		"path":    project,
		"folders": folders,
	})
	return &InitResult{
		Action:       "initialized",
		Project:      project,
		Path:         project,
		AbsolutePath: projectPath,
		Folders:      folders,
	}, nil
}

// Reindex rebuilds the whole index and reports the document count.
func (w *Writer) Reindex(ctx context.Context) (*ReindexResult, error) {
	if err := w.checkWritable(); err != nil {
		return nil, err
	}
	res, err := w.indexer.Rebuild(ctx)
	if err != nil {
		return nil, err
	}
	w.fire(webhook.EventIndexReindexed, "", map[string]any{
		"document_count": res.Documents,
	})
	return &ReindexResult{Action: "reindexed", DocumentCount: res.Documents}, nil
}

func (w *Writer) checkWritable() error {
	if w.readOnly {
		return verrors.PermissionError("server is in read-only mode", nil)
	}
	return nil
}

func (w *Writer) ensureRoot() error {
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return verrors.InternalError(fmt.Sprintf("cannot create workspace root: %s", w.root), err)
	}
	return nil
}

// write lands content atomically so readers and the watcher never see
// a half-written document.
func (w *Writer) write(target string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return verrors.InternalError(fmt.Sprintf("cannot create directory for %s", target), err)
	}
	if err := renameio.WriteFile(target, content, 0o644); err != nil {
		return verrors.InternalError(fmt.Sprintf("cannot write %s", target), err)
	}
	return nil
}

// refresh indexes the written file. A failure is surfaced to the
// caller but the write itself stands; the next sync pass converges.
func (w *Writer) refresh(ctx context.Context, target, rel string) error {
	if err := w.indexer.RefreshFile(ctx, target); err != nil {
		return verrors.New(verrors.ErrCodeIndexFailed,
			fmt.Sprintf("document written to %s but indexing failed", rel), err)
	}
	return nil
}

func (w *Writer) fire(eventType, project string, data map[string]any) {
	if w.events == nil {
		return
	}
	w.events.Fire(eventType, project, data)
}

// slugify lowercases a title and reduces it to letters, digits,
// underscores, and dashes for use in a filename.
func slugify(title string) string {
	s := slugStripPattern.ReplaceAllString(strings.ToLower(title), "")
	s = slugDashPattern.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// nextTaskNumber scans tasks/ for NNN-*.md files and returns one above
// the highest, starting at 1 for a fresh project.
func nextTaskNumber(tasksDir string) (int, error) {
	entries, err := os.ReadDir(tasksDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 1, nil
		}
		return 0, verrors.InternalError(fmt.Sprintf("cannot read %s", tasksDir), err)
	}
	maxNum := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := taskNumberPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > maxNum {
			maxNum = n
		}
	}
	return maxNum + 1, nil
}

// taskContent renders the standard task document. A feature tag moves
// the status into frontmatter so the body carries no duplicate line.
func taskContent(title, objective string, steps []string, feature string) string {
	var lines []string
	if feature != "" {
		lines = append(lines,
			"---",
			"type: task",
			"status: pending",
			"feature: "+feature,
			"---",
			"")
	}
	lines = append(lines, "# Task: "+title, "")
	if feature == "" {
		lines = append(lines, "Status: pending", "")
	}
	lines = append(lines, "## Objective", objective, "")
	if len(steps) > 0 {
		lines = append(lines, "## Steps")
		for i, step := range steps {
			lines = append(lines, fmt.Sprintf("%d. [ ] %s", i+1, step))
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// setStatusLine replaces the first Status: line, or inserts one after
// the title when the document has none. A document with neither is
// returned unchanged.
func setStatusLine(content, newStatus string) string {
	if loc := statusLinePattern.FindStringIndex(content); loc != nil {
		return content[:loc[0]] + "Status: " + newStatus + content[loc[1]:]
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "#") {
			rest := append([]string{"", "Status: " + newStatus}, lines[i+1:]...)
			return strings.Join(append(lines[:i+1], rest...), "\n")
		}
	}
	return content
}
