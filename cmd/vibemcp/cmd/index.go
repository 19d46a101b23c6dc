package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vibecoding/vibemcp/internal/index"
	"github.com/vibecoding/vibemcp/internal/profiling"
	"github.com/vibecoding/vibemcp/internal/store"
	"github.com/vibecoding/vibemcp/internal/ui"
)

// indexOptions holds the index command flags.
type indexOptions struct {
	noTUI       bool
	force       bool
	cpuProfile  string
	heapProfile string
	traceFile   string
}

// newIndexCmd creates the index command.
func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or rebuild the workspace index",
		Long: `Scan the workspace, parse every markdown document, and rebuild the
search index from scratch. Run this after bulk edits made outside the
server, or with --force to recover from a corrupted database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Disable TUI mode, use plain text output")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Delete the database and rebuild from scratch")
	cmd.Flags().StringVar(&opts.cpuProfile, "cpu-profile", "", "Write a CPU profile to the given file")
	cmd.Flags().StringVar(&opts.heapProfile, "heap-profile", "", "Write a heap snapshot to the given file after indexing")
	cmd.Flags().StringVar(&opts.traceFile, "trace", "", "Write an execution trace to the given file")

	return cmd
}

// runIndex rebuilds the index with progress rendering.
func runIndex(ctx context.Context, cmd *cobra.Command, opts indexOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cleanup, err := setupCommandLogging(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer cleanup()

	prof := profiling.NewSession(profiling.Config{
		CPUPath:   opts.cpuProfile,
		HeapPath:  opts.heapProfile,
		TracePath: opts.traceFile,
	})
	if err := prof.Start(); err != nil {
		return err
	}
	defer func() { _ = prof.Stop() }()

	dbPath := cfg.DatabasePath()
	if opts.force {
		if err := removeIndexFiles(dbPath); err != nil {
			return fmt.Errorf("failed to clear existing index: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Cleared existing index, rebuilding from scratch...")
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open index database: %w", err)
	}
	defer func() { _ = st.Close() }()

	ix, err := index.New(cfg.Root, st)
	if err != nil {
		return fmt.Errorf("failed to create indexer: %w", err)
	}

	prog := ui.NewRenderer(ui.Config{
		Output:       cmd.OutOrStdout(),
		ForcePlain:   opts.noTUI,
		WorkspaceDir: cfg.Root,
	})
	if err := prog.Start(ctx); err != nil {
		return fmt.Errorf("failed to start progress display: %w", err)
	}

	_, rebuildErr := ix.RebuildWithProgress(ctx, prog)
	stopErr := prog.Stop()

	if rebuildErr != nil {
		return fmt.Errorf("index rebuild failed: %w", rebuildErr)
	}
	if stopErr != nil {
		return stopErr
	}
	return prof.Stop()
}

// removeIndexFiles deletes the database along with its WAL and shared
// memory sidecars.
func removeIndexFiles(dbPath string) error {
	for _, path := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
