// Package store persists the document index in SQLite with FTS5 search.
//
// The index is disposable: every row regenerates from the workspace on
// the next rebuild, so a corrupt database file is removed and recreated
// rather than repaired.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// Store wraps the SQLite index database. Reads run in parallel on the
// connection pool; writes serialize behind an internal mutex and run as
// immediate transactions.
type Store struct {
	db   *sql.DB
	path string

	mu      sync.RWMutex // guards closed
	writeMu sync.Mutex   // serializes write transactions
	closed  bool
}

// Open opens (or creates) the index database at path and ensures the
// schema exists. An empty path opens an in-memory database, used by
// tests. A corrupt existing file is removed and recreated.
func Open(path string) (*Store, error) {
	if path != "" {
		if err := validateIntegrity(path); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == "" {
		// A pooled :memory: database vanishes with its connection, so
		// pin a single connection open for the life of the store.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(runtime.NumCPU())
	}
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// dsn builds the connection string. Pragmas ride the DSN because the
// pool opens connections lazily and per-connection settings set via
// Exec would only reach one of them.
func dsn(path string) string {
	base := path
	if base == "" {
		base = "file::memory:"
	}
	return base + "?_txlock=immediate" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=cache_size(-65536)" +
		"&_pragma=temp_store(MEMORY)"
}

// validateIntegrity checks an existing database file and removes it if
// corrupt, letting Open recreate it from scratch.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return removeCorrupt(path, fmt.Sprintf("open failed: %v", err))
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil || result != "ok" {
		reason := result
		if err != nil {
			reason = err.Error()
		}
		return removeCorrupt(path, fmt.Sprintf("integrity check failed: %s", reason))
	}

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='chunks_fts'").Scan(&count)
	if err != nil || count == 0 {
		return removeCorrupt(path, "search table missing")
	}

	return nil
}

func removeCorrupt(path, reason string) error {
	slog.Warn("corrupt_index_detected",
		slog.String("path", path),
		slog.String("reason", reason))

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove corrupt database: %w", err)
	}
	_ = os.Remove(path + "-wal")
	_ = os.Remove(path + "-shm")

	slog.Info("corrupt_index_cleared", slog.String("path", path))
	return nil
}

// Close releases the database. In-flight operations finish first; new
// operations fail once closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Path returns the database file path, empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// withWriteTx runs fn inside a single write transaction. The DSN's
// _txlock=immediate makes the transaction take the write lock up
// front, and writeMu keeps in-process writers from queueing on it.
func (s *Store) withWriteTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// checkOpen is the read-path guard. The returned release func must be
// called when the operation finishes.
func (s *Store) checkOpen() (func(), error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, fmt.Errorf("store is closed")
	}
	return s.mu.RUnlock, nil
}
