package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vibecoding/vibemcp/internal/store"
	"github.com/vibecoding/vibemcp/internal/ui"
)

// newStatusCmd creates the status command.
func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index and workspace statistics",
		Long: `Report what the index currently holds: project, document, and chunk
counts, database size, the time of the last reindex, and active webhook
subscriptions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output status as JSON")

	return cmd
}

// runStatus gathers stats from the store and renders them.
func runStatus(ctx context.Context, cmd *cobra.Command, asJSON bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cleanup, err := setupCommandLogging(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer cleanup()

	dbPath := cfg.DatabasePath()
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("no index found. Run 'vibemcp index' first")
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open index database: %w", err)
	}
	defer func() { _ = st.Close() }()

	stats, err := st.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read index stats: %w", err)
	}
	webhooks, err := st.CountActiveSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("failed to count webhook subscriptions: %w", err)
	}

	info := ui.StatusInfo{
		Root:      cfg.Root,
		Database:  dbPath,
		Projects:  stats.Projects,
		Documents: stats.Documents,
		Chunks:    stats.Chunks,
		Webhooks:  webhooks,
	}
	if fi, err := os.Stat(dbPath); err == nil {
		info.DatabaseSize = fi.Size()
	}
	if stats.LastIndexedAt != "" {
		if ts, err := time.Parse("2006-01-02 15:04:05", stats.LastIndexedAt); err == nil {
			info.LastReindex = ts
		}
	}

	out := cmd.OutOrStdout()
	r := ui.NewStatusRenderer(out, !ui.IsTTY(out))
	if asJSON {
		return r.RenderJSON(info)
	}
	return r.Render(info)
}
