package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vibecoding/vibemcp/internal/store"
	"github.com/vibecoding/vibemcp/internal/ui"
)

// searchOptions holds the flags for the search command.
type searchOptions struct {
	project string
	limit   int
	asJSON  bool
}

// searchHit is the JSON shape emitted by --json.
type searchHit struct {
	ProjectName  string  `json:"project_name"`
	DocumentPath string  `json:"document_path"`
	Folder       string  `json:"folder"`
	Heading      string  `json:"heading,omitempty"`
	Snippet      string  `json:"snippet"`
	Score        float64 `json:"score"`
}

// newSearchCmd creates the search command.
func newSearchCmd() *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the workspace from the command line",
		Long: `Run a ranked full-text search against the index, the same search the
MCP search tool serves to agents. Multiple words are joined into a
single query.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.project, "project", "p", "", "Limit results to one project")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Output results as JSON")

	return cmd
}

// runSearch executes the query and renders results as a table or JSON.
func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts *searchOptions) error {
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

	results, err := st.Search(ctx, query, store.SearchOptions{
		Project: opts.project,
		Limit:   opts.limit,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if opts.asJSON {
		hits := make([]searchHit, 0, len(results))
		for _, r := range results {
			hits = append(hits, searchHit{
				ProjectName:  r.ProjectName,
				DocumentPath: r.DocumentPath,
				Folder:       r.Folder,
				Heading:      r.Heading,
				Snippet:      r.Snippet,
				Score:        r.Score,
			})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}

	rows := make([]ui.SearchRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, ui.SearchRow{
			Score:   r.Score,
			Path:    r.DocumentPath,
			Heading: r.Heading,
			Snippet: r.Snippet,
		})
	}
	return ui.NewSearchRenderer(out, !ui.IsTTY(out)).Render(query, rows)
}
