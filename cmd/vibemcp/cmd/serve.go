package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vibecoding/vibemcp/internal/auth"
	"github.com/vibecoding/vibemcp/internal/config"
	"github.com/vibecoding/vibemcp/internal/index"
	"github.com/vibecoding/vibemcp/internal/logging"
	"github.com/vibecoding/vibemcp/internal/mcp"
	"github.com/vibecoding/vibemcp/internal/store"
	"github.com/vibecoding/vibemcp/internal/watcher"
	"github.com/vibecoding/vibemcp/internal/webhook"
	"github.com/vibecoding/vibemcp/internal/workspace"
)

// newServeCmd creates the serve command.
func newServeCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP server and handle requests from AI agents.

The index is rebuilt first when the database is empty, so a fresh
workspace is searchable as soon as the server accepts requests. Logs go
to the rotating file under ~/.vibemcp/logs/ because stdout belongs to
the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), transport)
		},
	}

	cmd.Flags().StringVarP(&transport, "transport", "t", "", "Transport to serve on (default from config, stdio)")

	return cmd
}

// runServe builds the full component stack and serves MCP until the
// context is cancelled or the client disconnects.
func runServe(ctx context.Context, transport string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if transport == "" {
		transport = cfg.Server.Transport
	}
	if transport == "" {
		transport = mcp.TransportStdio
	}

	cleanup, err := setupServeLogging(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer cleanup()

	srv, err := buildServer(ctx, cfg)
	if err != nil {
		slog.Error("failed to build server", slog.String("error", err.Error()))
		return err
	}

	return srv.Serve(ctx, transport)
}

// setupServeLogging routes all logs to a file. Stdio transports own
// stdout and stderr, so nothing may leak to the terminal.
func setupServeLogging(cfg *config.Config) (func(), error) {
	level := cfg.Logging.Level
	if debugMode {
		level = "debug"
	}

	if cfg.Logging.File == "" {
		return logging.SetupMCPModeWithLevel(level)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = level
	logCfg.FilePath = cfg.Logging.File
	logCfg.WriteToStderr = false

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return cleanup, nil
}

// buildServer wires the store, indexer, workspace accessors, webhook
// dispatcher, and background sync into an MCP server.
func buildServer(ctx context.Context, cfg *config.Config) (*mcp.Server, error) {
	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	ix, err := index.New(cfg.Root, st)
	if err != nil {
		closeComponents(ctx, st, nil)
		return nil, fmt.Errorf("failed to create indexer: %w", err)
	}
	if err := ix.EnsureReady(ctx); err != nil {
		closeComponents(ctx, st, nil)
		return nil, fmt.Errorf("failed to prepare index: %w", err)
	}

	var webhooks *webhook.Manager
	if cfg.WebhooksEnabled {
		webhooks, err = webhook.NewManager(st, webhook.Config{Enabled: true})
		if err != nil {
			closeComponents(ctx, st, nil)
			return nil, fmt.Errorf("failed to start webhook dispatcher: %w", err)
		}
	}

	reader, err := workspace.NewReader(workspace.ReaderConfig{
		Root:  cfg.Root,
		Store: st,
	})
	if err != nil {
		closeComponents(ctx, st, webhooks)
		return nil, fmt.Errorf("failed to create workspace reader: %w", err)
	}

	writerCfg := workspace.WriterConfig{
		Indexer:  ix,
		ReadOnly: cfg.ReadOnly,
	}
	if webhooks != nil {
		writerCfg.Events = webhooks
	}
	writer, err := workspace.NewWriter(writerCfg)
	if err != nil {
		closeComponents(ctx, st, webhooks)
		return nil, fmt.Errorf("failed to create workspace writer: %w", err)
	}

	var syncMgr *index.SyncManager
	if cfg.Sync.Enabled {
		syncMgr, err = index.NewSyncManager(ix, cfg.SyncInterval())
		if err != nil {
			closeComponents(ctx, st, webhooks)
			return nil, fmt.Errorf("failed to create sync manager: %w", err)
		}
		if cfg.Sync.Watch {
			attachWatcher(ctx, syncMgr, cfg.Root)
		}
	}

	srv, err := mcp.NewServer(mcp.Deps{
		Config:   cfg,
		Store:    st,
		Indexer:  ix,
		Reader:   reader,
		Writer:   writer,
		Webhooks: webhooks,
		Sync:     syncMgr,
		Verifier: auth.NewVerifier(cfg.AuthToken),
	})
	if err != nil {
		closeComponents(ctx, st, webhooks)
		return nil, err
	}
	return srv, nil
}

// attachWatcher starts filesystem watching for the sync manager. A
// watch failure degrades to interval-only sync instead of aborting.
func attachWatcher(ctx context.Context, sm *index.SyncManager, root string) {
	w, err := watcher.New(root, watcher.Options{})
	if err != nil {
		slog.Warn("filesystem watch unavailable, falling back to interval sync",
			slog.String("error", err.Error()))
		return
	}
	if err := w.Start(ctx); err != nil {
		slog.Warn("filesystem watch failed to start, falling back to interval sync",
			slog.String("error", err.Error()))
		return
	}
	sm.WatchFilesystem(w)
}

// closeComponents tears down partially built components after a wiring
// failure.
func closeComponents(ctx context.Context, st *store.Store, webhooks *webhook.Manager) {
	if webhooks != nil {
		if err := webhooks.Close(ctx); err != nil {
			slog.Warn("failed to close webhook dispatcher", slog.String("error", err.Error()))
		}
	}
	if st != nil {
		if err := st.Close(); err != nil {
			slog.Warn("failed to close store", slog.String("error", err.Error()))
		}
	}
}
