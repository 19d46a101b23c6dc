package preflight

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vibecoding/vibemcp/internal/logging"
)

// sqliteMagic is the first 16 bytes of every SQLite database file.
var sqliteMagic = []byte("SQLite format 3\x00")

// CheckWorkspace verifies the workspace root is usable. A missing root
// passes because the write path creates it on demand.
func (c *Checker) CheckWorkspace(root string) CheckResult {
	result := CheckResult{
		Name:     "workspace",
		Required: true,
	}

	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		result.Status = StatusPass
		result.Message = fmt.Sprintf("%s (will be created on first write)", root)
		return result
	}
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot stat workspace root: %v", err)
		return result
	}
	if !info.IsDir() {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s exists but is not a directory", root)
		return result
	}

	result.Status = StatusPass
	result.Message = root
	return result
}

// CheckWorkspaceWritable probes write access by creating and removing a
// temp file in the root. A missing root passes; the workspace check
// already covers its state.
func (c *Checker) CheckWorkspaceWritable(root string) CheckResult {
	result := CheckResult{
		Name:     "workspace_writable",
		Required: true,
	}

	if _, err := os.Stat(root); os.IsNotExist(err) {
		result.Status = StatusPass
		result.Message = "skipped (workspace not created yet)"
		return result
	}

	probe, err := os.CreateTemp(root, ".vibemcp-probe-*")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot write to workspace: %v", err)
		return result
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)

	result.Status = StatusPass
	result.Message = "writable"
	return result
}

// CheckDatabase inspects the index database file without opening it, so
// a running server is never disturbed. A missing database is only a
// warning; the index command creates it.
func (c *Checker) CheckDatabase(dbPath string) CheckResult {
	result := CheckResult{
		Name:     "index_database",
		Required: false,
	}

	info, err := os.Stat(dbPath)
	if os.IsNotExist(err) {
		result.Status = StatusWarn
		result.Message = "no index found"
		result.Details = "Run 'vibemcp index' to build it"
		return result
	}
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot stat database: %v", err)
		return result
	}
	if info.Size() == 0 {
		result.Status = StatusWarn
		result.Message = "index database is empty"
		result.Details = "Run 'vibemcp index' to build it"
		return result
	}

	f, err := os.Open(dbPath)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot open database: %v", err)
		return result
	}
	defer func() { _ = f.Close() }()

	header := make([]byte, len(sqliteMagic))
	if _, err := f.Read(header); err != nil || !bytes.Equal(header, sqliteMagic) {
		result.Status = StatusFail
		result.Message = "index database is not a SQLite file"
		result.Details = "Run 'vibemcp index --force' to rebuild it"
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s (%s)", dbPath, formatBytes(uint64(info.Size())))
	return result
}

// CheckLogDirectory verifies the log directory can hold log files.
func (c *Checker) CheckLogDirectory() CheckResult {
	result := CheckResult{
		Name:     "log_directory",
		Required: false,
	}

	dir := logging.DefaultLogDir()
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		// Created by the first command that logs; confirm the parent is
		// reachable.
		if _, perr := os.Stat(filepath.Dir(dir)); perr != nil && !os.IsNotExist(perr) {
			result.Status = StatusWarn
			result.Message = fmt.Sprintf("cannot reach %s: %v", filepath.Dir(dir), perr)
			return result
		}
		result.Status = StatusPass
		result.Message = fmt.Sprintf("%s (will be created on first log)", dir)
		return result
	}
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot stat log directory: %v", err)
		return result
	}
	if !info.IsDir() {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%s exists but is not a directory", dir)
		return result
	}

	result.Status = StatusPass
	result.Message = dir
	return result
}
