// Package ui renders indexing progress and command output for the CLI.
//
// Interactive terminals get a live TUI; pipes, CI, and --plain get line
// output. Both sit behind the Renderer interface so the indexer never
// cares which one it is talking to.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage identifies a rebuild phase.
type Stage int

const (
	// StageScanning covers the walk-and-parse pass over the workspace.
	StageScanning Stage = iota
	// StageIndexing covers the index swap transaction.
	StageIndexing
	// StageComplete indicates the rebuild finished.
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageScanning:
		return "Scanning"
	case StageIndexing:
		return "Indexing"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag for plain text output.
func (s Stage) Icon() string {
	switch s {
	case StageScanning:
		return "SCAN"
	case StageIndexing:
		return "INDEX"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent is one progress update. The document count grows as the
// walk streams, so there is no total until the walk finishes; renderers
// show a running count instead of a percentage.
type ProgressEvent struct {
	Stage       Stage
	Current     int
	CurrentFile string
	Message     string
}

// ErrorEvent reports a per-file problem during a rebuild.
type ErrorEvent struct {
	File   string
	Err    error
	IsWarn bool
}

// CompletionStats summarizes a finished rebuild.
type CompletionStats struct {
	Documents int
	Chunks    int
	Warnings  int
	Duration  time.Duration
}

// Renderer receives rebuild progress. Implementations must be safe for
// concurrent use; events arrive from parse workers.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// UpdateProgress applies a progress update.
	UpdateProgress(event ProgressEvent)

	// AddError records a per-file error or warning.
	AddError(event ErrorEvent)

	// Complete finishes rendering with a summary.
	Complete(stats CompletionStats)

	// Stop tears the renderer down.
	Stop() error
}

// Config configures a renderer.
type Config struct {
	Output       io.Writer
	ForcePlain   bool
	NoColor      bool
	WorkspaceDir string
}

// ConfigOption modifies a Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain line output even on a TTY.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithWorkspaceDir sets the workspace path shown in the TUI header.
func WithWorkspaceDir(dir string) ConfigOption {
	return func(c *Config) {
		c.WorkspaceDir = dir
	}
}

// NewConfig creates a Config for the given output.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer picks a renderer for the config and environment: a TUI on
// interactive terminals, plain line output for pipes, CI, and
// --no-tui.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain {
		return NewPlainRenderer(cfg)
	}
	if !IsTTY(cfg.Output) {
		return NewPlainRenderer(cfg)
	}
	if DetectCI() {
		return NewPlainRenderer(cfg)
	}
	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY reports whether the writer is an interactive terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor reports whether NO_COLOR is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI reports whether the process is running under a CI system.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
