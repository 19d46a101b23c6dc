// Package cmd provides the CLI commands for vibemcp.
package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vibecoding/vibemcp/internal/config"
	"github.com/vibecoding/vibemcp/internal/logging"
	"github.com/vibecoding/vibemcp/internal/mcp"
	"github.com/vibecoding/vibemcp/pkg/version"
)

// Global flags shared by every command.
var (
	debugMode      bool
	rootOverride   string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the vibemcp CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vibemcp",
		Short: "Project-memory MCP server for AI coding agents",
		Long: `vibemcp serves a markdown project workspace to AI coding agents over
the Model Context Protocol: ranked full-text search, document reads and
writes, task tracking, session logs, and webhooks on every change.

Running 'vibemcp' with no arguments starts the MCP server on stdio,
rebuilding the index first when it is empty. Point your agent's MCP
configuration at the binary and it just works.`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return cmd.Help()
			}
			// Bare invocation is an MCP client spawning us: serve stdio.
			return runServe(cmd.Context(), mcp.TransportStdio)
		},
	}

	cmd.SetVersionTemplate("vibemcp version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.vibemcp/logs/")
	cmd.PersistentFlags().StringVar(&rootOverride, "root", "", "Workspace root (overrides VIBE_ROOT and the config file)")

	cmd.PersistentPreRunE = startDebugLogging
	cmd.PersistentPostRunE = stopDebugLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig loads the configuration chain (defaults, YAML file,
// environment) and applies flag overrides on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if rootOverride != "" {
		abs, err := filepath.Abs(rootOverride)
		if err != nil {
			return nil, fmt.Errorf("invalid --root: %w", err)
		}
		cfg.Root = abs
	}
	return cfg, nil
}

// setupCommandLogging sends CLI diagnostics to the rotating log file,
// keeping the terminal for the command's own output.
func setupCommandLogging(cfg *config.Config) (func(), error) {
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	if debugMode {
		logCfg.Level = "debug"
	}
	if cfg.Logging.File != "" {
		logCfg.FilePath = cfg.Logging.File
	}
	logCfg.WriteToStderr = false

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return cleanup, nil
}

// startDebugLogging turns on debug-level file logging when --debug is
// set, before any command runs.
func startDebugLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to set up debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

// stopDebugLogging closes the debug log file after the command ends.
func stopDebugLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}
