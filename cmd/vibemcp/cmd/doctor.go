package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vibecoding/vibemcp/internal/preflight"
)

// newDoctorCmd creates the doctor command.
func newDoctorCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment for problems",
		Long: `Run preflight checks against the effective configuration: workspace
layout, index database health, disk space, file descriptor limits, and
the log directory. Exits non-zero when a required check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd.Context(), cmd, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show fix suggestions for each check")

	return cmd
}

// runDoctor runs every preflight check and renders the report.
func runDoctor(ctx context.Context, cmd *cobra.Command, verbose bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	checker := preflight.New(
		preflight.WithOutput(cmd.OutOrStdout()),
		preflight.WithVerbose(verbose),
	)
	results := checker.RunAll(ctx, cfg)
	checker.PrintResults(results)

	if checker.HasCriticalFailures(results) {
		return fmt.Errorf("environment check failed")
	}
	return nil
}
