package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vibecoding/vibemcp/internal/logging"
	"github.com/vibecoding/vibemcp/internal/ui"
)

// logsOptions holds the flags for the logs command.
type logsOptions struct {
	follow  bool
	lines   int
	level   string
	grep    string
	noColor bool
	logFile string
}

// newLogsCmd creates the logs command.
func newLogsCmd() *cobra.Command {
	opts := &logsOptions{}

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View server logs",
		Long: `Show recent entries from the server log under ~/.vibemcp/logs/, or
stream new entries as they arrive with --follow. Useful when the server
runs on stdio and cannot write diagnostics to the terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Stream new log entries")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of recent entries to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level to show (debug, info, warn, error)")
	cmd.Flags().StringVar(&opts.grep, "grep", "", "Only show entries matching this pattern")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.logFile, "file", "", "Log file to read (default: newest in ~/.vibemcp/logs/)")

	return cmd
}

// runLogs tails or follows the server log file.
func runLogs(ctx context.Context, cmd *cobra.Command, opts *logsOptions) error {
	var pattern *regexp.Regexp
	if opts.grep != "" {
		var err error
		pattern, err = regexp.Compile(opts.grep)
		if err != nil {
			return fmt.Errorf("invalid --grep pattern: %w", err)
		}
	}

	path, err := logging.FindLogFile(opts.logFile)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Pattern: pattern,
		NoColor: opts.noColor || !ui.IsTTY(out),
	}, out)

	if opts.follow {
		return followLog(ctx, cmd, viewer, path)
	}

	entries, err := viewer.Tail(path, opts.lines)
	if err != nil {
		return err
	}
	viewer.Print(entries)
	return nil
}

// followLog streams entries until interrupted.
func followLog(ctx context.Context, cmd *cobra.Command, viewer *logging.Viewer, path string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.ErrOrStderr(), "Following %s (Ctrl+C to stop)\n", path)

	entries := make(chan logging.LogEntry, 100)
	errCh := make(chan error, 1)
	go func() {
		errCh <- viewer.Follow(ctx, path, entries)
	}()

	out := cmd.OutOrStdout()
	for {
		select {
		case entry := <-entries:
			fmt.Fprintln(out, viewer.FormatEntry(entry))
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return nil
		}
	}
}
