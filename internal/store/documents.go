package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"

	"github.com/vibecoding/vibemcp/internal/chunk"
	verrors "github.com/vibecoding/vibemcp/internal/errors"
)

// UpsertProject inserts a project row or refreshes the path of an
// existing one, returning the project id either way.
func (s *Store) UpsertProject(ctx context.Context, name, path string) (int64, error) {
	var id int64
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, "SELECT id FROM projects WHERE name = ?", name)
		err := row.Scan(&id)
		switch {
		case err == nil:
			_, err = tx.ExecContext(ctx,
				"UPDATE projects SET path = ?, updated_at = datetime('now') WHERE id = ?", path, id)
			if err != nil {
				return fmt.Errorf("failed to update project %s: %w", name, err)
			}
			return nil
		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.ExecContext(ctx,
				"INSERT INTO projects (name, path) VALUES (?, ?)", name, path)
			if err != nil {
				return fmt.Errorf("failed to insert project %s: %w", name, err)
			}
			id, err = res.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to read project id: %w", err)
			}
			return nil
		default:
			return fmt.Errorf("failed to look up project %s: %w", name, err)
		}
	})
	return id, err
}

// GetProject returns one project by name.
func (s *Store) GetProject(ctx context.Context, name string) (*Project, error) {
	release, err := s.checkOpen()
	if err != nil {
		return nil, err
	}
	defer release()

	var p Project
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, path, created_at, updated_at FROM projects WHERE name = ?", name)
	err = row.Scan(&p.ID, &p.Name, &p.Path, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, verrors.NotFoundError(fmt.Sprintf("project not found: %s", name), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project %s: %w", name, err)
	}
	return &p, nil
}

// ListProjects returns all projects ordered by name.
func (s *Store) ListProjects(ctx context.Context) ([]Project, error) {
	release, err := s.checkOpen()
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, path, created_at, updated_at FROM projects ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Path, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// ProjectSummaries returns the aggregate listing view: one entry per
// project with activity stats and per-folder document counts.
func (s *Store) ProjectSummaries(ctx context.Context) ([]ProjectSummary, error) {
	release, err := s.checkOpen()
	if err != nil {
		return nil, err
	}
	defer release()

	const query = `
		SELECT p.id, p.name, p.path,
		       (SELECT MAX(COALESCE(d.updated, datetime(d.mtime, 'unixepoch')))
		        FROM documents d WHERE d.project_id = p.id) AS last_updated,
		       (SELECT COUNT(*) FROM documents d
		        WHERE d.project_id = p.id AND d.folder = 'tasks'
		          AND d.status IN ('pending', 'in-progress')) AS open_tasks,
		       (SELECT MAX(d.filename) FROM documents d
		        WHERE d.project_id = p.id AND d.folder = 'sessions') AS last_session
		FROM projects p
		ORDER BY p.name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []ProjectSummary
	byID := make(map[int64]int)
	for rows.Next() {
		var (
			id                       int64
			s                        ProjectSummary
			lastUpdated, lastSession sql.NullString
		)
		if err := rows.Scan(&id, &s.Name, &s.Path, &lastUpdated, &s.OpenTasks, &lastSession); err != nil {
			return nil, fmt.Errorf("failed to scan project summary: %w", err)
		}
		s.LastUpdated = lastUpdated.String
		s.LastSession = lastSession.String
		s.FolderCounts = make(map[string]int)
		byID[id] = len(summaries)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	counts, err := s.db.QueryContext(ctx,
		"SELECT project_id, folder, COUNT(*) FROM documents GROUP BY project_id, folder")
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	defer func() { _ = counts.Close() }()

	for counts.Next() {
		var (
			projectID int64
			folder    string
			n         int
		)
		if err := counts.Scan(&projectID, &folder, &n); err != nil {
			return nil, fmt.Errorf("failed to scan folder count: %w", err)
		}
		if idx, ok := byID[projectID]; ok {
			summaries[idx].FolderCounts[folder] = n
		}
	}
	return summaries, counts.Err()
}

// GetProjectDetail returns one project plus its per-folder document
// counts and per-status task counts.
func (s *Store) GetProjectDetail(ctx context.Context, name string) (*ProjectDetail, error) {
	project, err := s.GetProject(ctx, name)
	if err != nil {
		return nil, err
	}

	release, err := s.checkOpen()
	if err != nil {
		return nil, err
	}
	defer release()

	detail := &ProjectDetail{
		Project:      *project,
		FolderCounts: make(map[string]int),
		TaskStatuses: make(map[string]int),
	}

	folders, err := s.db.QueryContext(ctx,
		"SELECT folder, COUNT(*) FROM documents WHERE project_id = ? GROUP BY folder", project.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count folders for %s: %w", name, err)
	}
	defer func() { _ = folders.Close() }()
	for folders.Next() {
		var (
			folder string
			n      int
		)
		if err := folders.Scan(&folder, &n); err != nil {
			return nil, fmt.Errorf("failed to scan folder count: %w", err)
		}
		detail.FolderCounts[folder] = n
	}
	if err := folders.Err(); err != nil {
		return nil, err
	}

	statuses, err := s.db.QueryContext(ctx,
		"SELECT COALESCE(status, ''), COUNT(*) FROM documents WHERE project_id = ? AND folder = 'tasks' GROUP BY status",
		project.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count task statuses for %s: %w", name, err)
	}
	defer func() { _ = statuses.Close() }()
	for statuses.Next() {
		var (
			status string
			n      int
		)
		if err := statuses.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		detail.TaskStatuses[status] = n
	}
	return detail, statuses.Err()
}

const upsertDocumentSQL = `
INSERT INTO documents (project_id, path, folder, filename, type, status, owner, tags, feature, content_hash, mtime, updated)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
    project_id = excluded.project_id,
    folder = excluded.folder,
    filename = excluded.filename,
    type = excluded.type,
    status = excluded.status,
    owner = excluded.owner,
    tags = excluded.tags,
    feature = excluded.feature,
    content_hash = excluded.content_hash,
    mtime = excluded.mtime,
    updated = excluded.updated,
    indexed_at = datetime('now')`

// UpsertDocument writes a document row and replaces its chunks in one
// transaction, so readers never observe a document with stale chunks.
// It returns the document id.
func (s *Store) UpsertDocument(ctx context.Context, doc *Document, chunks []chunk.Chunk) (int64, error) {
	var id int64
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, upsertDocumentSQL,
			doc.ProjectID, doc.Path, doc.Folder, doc.Filename,
			nullIf(doc.Type), nullIf(doc.Status), nullIf(doc.Owner),
			encodeTags(doc.Tags), nullIf(doc.Feature),
			doc.ContentHash, doc.MTime, nullIf(doc.Updated))
		if err != nil {
			return fmt.Errorf("failed to upsert document %s: %w", doc.Path, err)
		}

		if err := tx.QueryRowContext(ctx,
			"SELECT id FROM documents WHERE path = ?", doc.Path).Scan(&id); err != nil {
			return fmt.Errorf("failed to read document id for %s: %w", doc.Path, err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", id); err != nil {
			return fmt.Errorf("failed to clear chunks for %s: %w", doc.Path, err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (document_id, heading, heading_level, content, chunk_order, char_offset, is_priority_heading)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare chunk insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, c := range chunks {
			_, err := stmt.ExecContext(ctx,
				id, nullIf(c.Heading), c.Level, c.Content, c.Order, c.CharOffset, boolToInt(c.Priority))
			if err != nil {
				return fmt.Errorf("failed to insert chunk %d of %s: %w", c.Order, doc.Path, err)
			}
		}
		return nil
	})
	return id, err
}

// IndexedFile pairs a parsed document with its chunks for bulk loading
// during a full rebuild. ProjectName resolves to a project id inside
// the rebuild transaction; Doc.ProjectID is ignored.
type IndexedFile struct {
	ProjectName string
	ProjectPath string
	Doc         Document
	Chunks      []chunk.Chunk
}

// Rebuild atomically replaces the entire index. Existing projects,
// documents, and chunks are dropped and files are loaded in the given
// order, all inside one transaction, so a failure partway through
// leaves the previous index intact. Webhook tables are untouched.
func (s *Store) Rebuild(ctx context.Context, files []IndexedFile) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			"DELETE FROM chunks",
			"DELETE FROM documents",
			"DELETE FROM projects",
			"INSERT INTO chunks_fts(chunks_fts) VALUES('rebuild')",
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to clear index: %w", err)
			}
		}

		// Projects are created in name order for stable ids.
		paths := make(map[string]string)
		for _, f := range files {
			paths[f.ProjectName] = f.ProjectPath
		}
		names := make([]string, 0, len(paths))
		for name := range paths {
			names = append(names, name)
		}
		sort.Strings(names)

		projectIDs := make(map[string]int64, len(names))
		for _, name := range names {
			res, err := tx.ExecContext(ctx,
				"INSERT INTO projects (name, path) VALUES (?, ?)", name, paths[name])
			if err != nil {
				return fmt.Errorf("failed to insert project %s: %w", name, err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to read project id: %w", err)
			}
			projectIDs[name] = id
		}

		docStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO documents (project_id, path, folder, filename, type, status, owner, tags, feature, content_hash, mtime, updated)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare document insert: %w", err)
		}
		defer func() { _ = docStmt.Close() }()

		chunkStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (document_id, heading, heading_level, content, chunk_order, char_offset, is_priority_heading)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare chunk insert: %w", err)
		}
		defer func() { _ = chunkStmt.Close() }()

		for _, f := range files {
			doc := f.Doc
			res, err := docStmt.ExecContext(ctx,
				projectIDs[f.ProjectName], doc.Path, doc.Folder, doc.Filename,
				nullIf(doc.Type), nullIf(doc.Status), nullIf(doc.Owner),
				encodeTags(doc.Tags), nullIf(doc.Feature),
				doc.ContentHash, doc.MTime, nullIf(doc.Updated))
			if err != nil {
				return fmt.Errorf("failed to insert document %s: %w", doc.Path, err)
			}
			docID, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to read document id for %s: %w", doc.Path, err)
			}
			for _, c := range f.Chunks {
				_, err := chunkStmt.ExecContext(ctx,
					docID, nullIf(c.Heading), c.Level, c.Content, c.Order, c.CharOffset, boolToInt(c.Priority))
				if err != nil {
					return fmt.Errorf("failed to insert chunk %d of %s: %w", c.Order, doc.Path, err)
				}
			}
		}
		return nil
	})
}

// TouchDocument records a new mtime for a document whose content hash
// turned out to be unchanged, so sync stops re-hashing it.
func (s *Store) TouchDocument(ctx context.Context, path string, mtime float64) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"UPDATE documents SET mtime = ? WHERE path = ?", mtime, path); err != nil {
			return fmt.Errorf("failed to touch document %s: %w", path, err)
		}
		return nil
	})
}

// DeleteDocument removes a document row by root-relative path. Chunks
// cascade. It reports whether a row was actually deleted.
func (s *Store) DeleteDocument(ctx context.Context, path string) (bool, error) {
	var deleted bool
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE path = ?", path)
		if err != nil {
			return fmt.Errorf("failed to delete document %s: %w", path, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to count deleted rows: %w", err)
		}
		deleted = n > 0
		return nil
	})
	return deleted, err
}

// GetDocumentByPath returns one document row by root-relative path.
func (s *Store) GetDocumentByPath(ctx context.Context, path string) (*Document, error) {
	release, err := s.checkOpen()
	if err != nil {
		return nil, err
	}
	defer release()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, path, folder, filename, type, status, owner, tags, feature,
		       content_hash, mtime, updated, indexed_at
		FROM documents WHERE path = ?`, path)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, verrors.NotFoundError(fmt.Sprintf("document not found: %s", path), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", path, err)
	}
	return doc, nil
}

// ListDocuments returns documents matching the filter, ordered by path.
// Empty filter fields match everything.
func (s *Store) ListDocuments(ctx context.Context, filter DocumentFilter) ([]Document, error) {
	release, err := s.checkOpen()
	if err != nil {
		return nil, err
	}
	defer release()

	qb := sq.Select(
		"d.id", "d.project_id", "d.path", "d.folder", "d.filename",
		"d.type", "d.status", "d.owner", "d.tags", "d.feature",
		"d.content_hash", "d.mtime", "d.updated", "d.indexed_at").
		From("documents d").
		Join("projects p ON d.project_id = p.id").
		OrderBy("d.path")

	if filter.Project != "" {
		qb = qb.Where(sq.Eq{"p.name": filter.Project})
	}
	if filter.Folder != "" {
		qb = qb.Where(sq.Eq{"d.folder": filter.Folder})
	}
	if filter.Type != "" {
		qb = qb.Where(sq.Eq{"d.type": filter.Type})
	}
	if filter.Status != "" {
		qb = qb.Where(sq.Eq{"d.status": filter.Status})
	}
	if filter.Feature != "" {
		qb = qb.Where(sq.Eq{"d.feature": filter.Feature})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build document query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// Stamps returns the change-detection fingerprint of every indexed
// document, keyed by root-relative path. Sync diffs this snapshot
// against the filesystem.
func (s *Store) Stamps(ctx context.Context) (map[string]Stamp, error) {
	release, err := s.checkOpen()
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := s.db.QueryContext(ctx, "SELECT path, mtime, content_hash FROM documents")
	if err != nil {
		return nil, fmt.Errorf("failed to load document stamps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stamps := make(map[string]Stamp)
	for rows.Next() {
		var (
			path  string
			stamp Stamp
		)
		if err := rows.Scan(&path, &stamp.MTime, &stamp.ContentHash); err != nil {
			return nil, fmt.Errorf("failed to scan stamp: %w", err)
		}
		stamps[path] = stamp
	}
	return stamps, rows.Err()
}

// Stats counts the indexed projects, documents, and chunks.
// LastIndexedAt is the newest indexed_at stamp, empty when nothing is
// indexed.
type Stats struct {
	Projects      int64
	Documents     int64
	Chunks        int64
	LastIndexedAt string
}

// GetStats returns index-wide row counts.
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats
	release, err := s.checkOpen()
	if err != nil {
		return stats, err
	}
	defer release()

	for _, q := range []struct {
		query string
		dst   *int64
	}{
		{"SELECT COUNT(*) FROM projects", &stats.Projects},
		{"SELECT COUNT(*) FROM documents", &stats.Documents},
		{"SELECT COUNT(*) FROM chunks", &stats.Chunks},
	} {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dst); err != nil {
			return stats, fmt.Errorf("failed to count rows: %w", err)
		}
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(indexed_at), '') FROM documents").Scan(&stats.LastIndexedAt)
	if err != nil {
		return stats, fmt.Errorf("failed to read last indexed stamp: %w", err)
	}
	return stats, nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanDocument.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*Document, error) {
	var (
		doc                      Document
		typ, status, owner, tags sql.NullString
		feature, updated         sql.NullString
	)
	err := row.Scan(&doc.ID, &doc.ProjectID, &doc.Path, &doc.Folder, &doc.Filename,
		&typ, &status, &owner, &tags, &feature,
		&doc.ContentHash, &doc.MTime, &updated, &doc.IndexedAt)
	if err != nil {
		return nil, err
	}
	doc.Type = typ.String
	doc.Status = status.String
	doc.Owner = owner.String
	doc.Feature = feature.String
	doc.Updated = updated.String
	doc.Tags = decodeTags(tags)
	return &doc, nil
}

// nullIf maps the empty string to SQL NULL.
func nullIf(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// encodeTags stores tags as a JSON array, or NULL when empty.
func encodeTags(tags []string) any {
	if len(tags) == 0 {
		return nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return nil
	}
	return string(data)
}

func decodeTags(tags sql.NullString) []string {
	if !tags.Valid || tags.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(tags.String), &out); err != nil {
		return nil
	}
	return out
}
