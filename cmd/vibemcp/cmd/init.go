package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vibecoding/vibemcp/internal/index"
	"github.com/vibecoding/vibemcp/internal/store"
	"github.com/vibecoding/vibemcp/internal/workspace"
)

// newInitCmd creates the init command.
func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init <project>",
		Short: "Create a new project in the workspace",
		Long: `Create a project directory with the standard folder layout (tasks,
plans, sessions, reports, changelog, references, scratch, assets) and a
seed status file, then index it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.Context(), cmd, args[0])
		},
	}
	return cmd
}

// runInit scaffolds the project and reports the created layout.
func runInit(ctx context.Context, cmd *cobra.Command, project string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cleanup, err := setupCommandLogging(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer cleanup()

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("failed to open index database: %w", err)
	}
	defer func() { _ = st.Close() }()

	ix, err := index.New(cfg.Root, st)
	if err != nil {
		return fmt.Errorf("failed to create indexer: %w", err)
	}

	writer, err := workspace.NewWriter(workspace.WriterConfig{
		Indexer:  ix,
		ReadOnly: cfg.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("failed to create workspace writer: %w", err)
	}

	res, err := writer.InitProject(ctx, project)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Initialized project %s at %s\n", res.Project, res.AbsolutePath)
	for _, folder := range res.Folders {
		fmt.Fprintf(out, "  %s/\n", folder)
	}
	return nil
}
