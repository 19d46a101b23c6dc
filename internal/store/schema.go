package store

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaSQL creates every table, index, and trigger the store uses.
// All statements are idempotent so Open can run this unconditionally.
const schemaSQL = `
-- Projects: one row per immediate subdirectory of the workspace root.
CREATE TABLE IF NOT EXISTS projects (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    path TEXT NOT NULL UNIQUE,
    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_projects_name ON projects(name);

-- Documents: one row per indexed markdown file.
CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id INTEGER NOT NULL,
    path TEXT NOT NULL UNIQUE,
    folder TEXT NOT NULL,
    filename TEXT NOT NULL,
    type TEXT,
    status TEXT,
    owner TEXT,
    tags TEXT,
    feature TEXT,
    content_hash TEXT NOT NULL,
    mtime REAL NOT NULL,
    updated TEXT,
    indexed_at TEXT NOT NULL DEFAULT (datetime('now')),
    FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_documents_project ON documents(project_id);
CREATE INDEX IF NOT EXISTS idx_documents_folder ON documents(folder);
CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(type);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_feature ON documents(feature);
CREATE INDEX IF NOT EXISTS idx_documents_mtime ON documents(mtime DESC);
CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash);
CREATE INDEX IF NOT EXISTS idx_documents_project_folder ON documents(project_id, folder);

-- Chunks: heading-bounded sections of each document.
CREATE TABLE IF NOT EXISTS chunks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    document_id INTEGER NOT NULL,
    heading TEXT,
    heading_level INTEGER DEFAULT 0,
    content TEXT NOT NULL,
    chunk_order INTEGER NOT NULL,
    char_offset INTEGER NOT NULL,
    is_priority_heading INTEGER DEFAULT 0,
    FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
CREATE INDEX IF NOT EXISTS idx_chunks_document_order ON chunks(document_id, chunk_order);
CREATE INDEX IF NOT EXISTS idx_chunks_heading ON chunks(heading);
CREATE INDEX IF NOT EXISTS idx_chunks_priority ON chunks(is_priority_heading) WHERE is_priority_heading = 1;

-- Full-text index over chunk content, kept in sync by triggers.
CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
    content,
    heading,
    content='chunks',
    content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
    INSERT INTO chunks_fts(rowid, content, heading)
    VALUES (new.id, new.content, new.heading);
END;

CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
    INSERT INTO chunks_fts(chunks_fts, rowid, content, heading)
    VALUES ('delete', old.id, old.content, old.heading);
END;

CREATE TRIGGER IF NOT EXISTS chunks_au AFTER UPDATE ON chunks BEGIN
    INSERT INTO chunks_fts(chunks_fts, rowid, content, heading)
    VALUES ('delete', old.id, old.content, old.heading);
    INSERT INTO chunks_fts(rowid, content, heading)
    VALUES (new.id, new.content, new.heading);
END;

-- Webhook subscriptions survive reindexing; they are configuration,
-- not derived index data.
CREATE TABLE IF NOT EXISTS webhook_subscriptions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT NOT NULL,
    secret TEXT NOT NULL,
    event_types TEXT NOT NULL,
    project TEXT,
    active INTEGER NOT NULL DEFAULT 1,
    description TEXT,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_webhook_subs_project ON webhook_subscriptions(project);
CREATE INDEX IF NOT EXISTS idx_webhook_subs_active ON webhook_subscriptions(active) WHERE active = 1;

-- One row per delivery attempt, success or failure.
CREATE TABLE IF NOT EXISTS webhook_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    subscription_id INTEGER NOT NULL,
    event_type TEXT NOT NULL,
    event_id TEXT NOT NULL,
    payload TEXT NOT NULL,
    status_code INTEGER,
    success INTEGER NOT NULL DEFAULT 0,
    error_message TEXT,
    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    FOREIGN KEY (subscription_id) REFERENCES webhook_subscriptions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_webhook_logs_subscription ON webhook_logs(subscription_id);
CREATE INDEX IF NOT EXISTS idx_webhook_logs_event ON webhook_logs(event_id);

CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT
);

INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', '1.0');
INSERT OR REPLACE INTO meta (key, value) VALUES ('created_at', datetime('now'));
`

// Clear deletes all indexed data and rebuilds the FTS index. Webhook
// subscriptions and delivery logs are left untouched.
func (s *Store) Clear(ctx context.Context) error {
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
		return nil
	})
}

// SchemaVersion reports the schema version recorded in the meta table.
func (s *Store) SchemaVersion(ctx context.Context) (string, error) {
	release, err := s.checkOpen()
	if err != nil {
		return "", err
	}
	defer release()

	var version string
	err = s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'schema_version'").Scan(&version)
	if err != nil {
		return "", fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}
