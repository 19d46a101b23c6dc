package store

import (
	"context"
	"fmt"
	"strings"

	verrors "github.com/vibecoding/vibemcp/internal/errors"
)

// DefaultSearchLimit caps result counts when the caller does not.
const DefaultSearchLimit = 20

// Snippet rendering parameters passed to the FTS5 snippet() function.
const (
	snippetStart    = ">>>"
	snippetEnd      = "<<<"
	snippetEllipsis = "..."
	snippetTokens   = 64
)

// searchSQL ranks chunks by BM25 relevance multiplied by boosts for
// document type, recency, heading, and task status. bm25() returns
// lower-is-better values, so it is negated before boosting to keep the
// composite ordering monotonic. Ties break on freshest document, then
// chunk id for determinism.
const searchSQL = `
SELECT
    c.id AS chunk_id,
    c.document_id,
    p.name AS project_name,
    d.path AS document_path,
    d.folder,
    COALESCE(c.heading, '') AS heading,
    c.content,
    snippet(chunks_fts, 0, ?, ?, ?, ?) AS snippet,
    -bm25(chunks_fts) AS bm25_score,
    CASE
        WHEN d.folder = '' AND d.filename = 'status.md' THEN 3.0
        WHEN d.folder = 'tasks' THEN 2.0
        WHEN d.folder = 'plans' THEN 1.8
        WHEN d.folder = 'sessions' THEN 1.5
        WHEN d.folder = 'changelog' THEN 1.2
        WHEN d.folder = 'reports' THEN 1.0
        WHEN d.folder = 'references' THEN 0.8
        WHEN d.folder = 'scratch' THEN 0.5
        ELSE 0.3
    END AS type_boost,
    CASE
        WHEN julianday('now') - julianday(COALESCE(d.updated, datetime(d.mtime, 'unixepoch'))) <= 1 THEN 2.0
        WHEN julianday('now') - julianday(COALESCE(d.updated, datetime(d.mtime, 'unixepoch'))) <= 7 THEN 1.5
        WHEN julianday('now') - julianday(COALESCE(d.updated, datetime(d.mtime, 'unixepoch'))) <= 30 THEN 1.2
        WHEN julianday('now') - julianday(COALESCE(d.updated, datetime(d.mtime, 'unixepoch'))) <= 90 THEN 1.0
        ELSE 0.8
    END AS recency_boost,
    CASE
        WHEN c.is_priority_heading = 1 THEN 2.5
        WHEN c.heading LIKE '%%Objective%%' THEN 1.5
        WHEN c.heading LIKE '%%Acceptance%%' THEN 1.5
        ELSE 1.0
    END AS heading_boost,
    CASE
        WHEN d.status = 'in-progress' THEN 2.0
        WHEN d.status = 'blocked' THEN 1.8
        WHEN d.status = 'pending' THEN 1.2
        WHEN d.status = 'done' THEN 0.6
        ELSE 1.0
    END AS status_boost
FROM chunks_fts
JOIN chunks c ON chunks_fts.rowid = c.id
JOIN documents d ON c.document_id = d.id
JOIN projects p ON d.project_id = p.id
WHERE chunks_fts MATCH ?%s
ORDER BY (bm25_score * type_boost * recency_boost * heading_boost * status_boost) DESC,
         d.indexed_at DESC, c.id ASC
LIMIT ?`

// Search runs an FTS5 query and returns boosted, ranked chunk hits.
// A blank query returns no results. A query FTS5 cannot parse returns
// an invalid-query error rather than an empty result set.
func (s *Store) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	release, err := s.checkOpen()
	if err != nil {
		return nil, err
	}
	defer release()

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	args := []any{snippetStart, snippetEnd, snippetEllipsis, snippetTokens, query}
	projectFilter := ""
	if opts.Project != "" {
		projectFilter = " AND p.name = ?"
		args = append(args, opts.Project)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(searchSQL, projectFilter), args...)
	if err != nil {
		if isFTSSyntaxError(err) {
			return nil, verrors.New(verrors.ErrCodeInvalidQuery,
				fmt.Sprintf("invalid search query: %s", query), err)
		}
		return nil, verrors.StoreError("search query failed", err)
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.ProjectName, &r.DocumentPath,
			&r.Folder, &r.Heading, &r.Content, &r.Snippet,
			&r.BM25Score, &r.TypeBoost, &r.RecencyBoost, &r.HeadingBoost, &r.StatusBoost)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		r.Score = r.BM25Score * r.TypeBoost * r.RecencyBoost * r.HeadingBoost * r.StatusBoost
		results = append(results, r)
	}
	return results, rows.Err()
}

// isFTSSyntaxError recognizes FTS5 query parse failures, which the
// driver surfaces only as error strings.
func isFTSSyntaxError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "fts5") || strings.Contains(msg, "syntax error")
}
