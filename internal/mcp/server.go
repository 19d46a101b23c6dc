package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vibecoding/vibemcp/internal/auth"
	"github.com/vibecoding/vibemcp/internal/config"
	"github.com/vibecoding/vibemcp/internal/index"
	"github.com/vibecoding/vibemcp/internal/store"
	"github.com/vibecoding/vibemcp/internal/webhook"
	"github.com/vibecoding/vibemcp/internal/workspace"
	"github.com/vibecoding/vibemcp/pkg/version"
)

// ServerName identifies the server in the MCP handshake.
const ServerName = "vibemcp"

// TransportStdio is the only transport the server speaks.
const TransportStdio = "stdio"

// shutdownGrace bounds webhook draining during shutdown.
const shutdownGrace = 5 * time.Second

// Deps are the constructed components the server serves. Config,
// Store, Indexer, Reader, and Writer are required; the rest are
// optional features.
type Deps struct {
	Config  *config.Config
	Store   *store.Store
	Indexer *index.Indexer
	Reader  *workspace.Reader
	Writer  *workspace.Writer

	// Webhooks delivers change events. Nil when webhooks are disabled;
	// the webhook tools then reject registration and list nothing.
	Webhooks *webhook.Manager

	// Sync keeps the index converged while serving. Nil when the
	// background sync loop is disabled.
	Sync *index.SyncManager

	// Verifier holds the configured bearer token. Nil or disabled
	// means no token is required.
	Verifier *auth.Verifier
}

// Server is the MCP server for vibemcp. It bridges AI clients with the
// workspace: search and read tools over the SQLite index, write tools
// through the validated workspace writer, plus project resources and
// briefing prompts.
type Server struct {
	mcp      *mcp.Server
	cfg      *config.Config
	store    *store.Store
	indexer  *index.Indexer
	reader   *workspace.Reader
	writer   *workspace.Writer
	webhooks *webhook.Manager
	sync     *index.SyncManager
	verifier *auth.Verifier
	logger   *slog.Logger
}

// NewServer wires a server from its dependencies and registers every
// tool, resource, and prompt.
func NewServer(deps Deps) (*Server, error) {
	if deps.Config == nil {
		return nil, errors.New("config is required")
	}
	if deps.Store == nil {
		return nil, errors.New("store is required")
	}
	if deps.Indexer == nil {
		return nil, errors.New("indexer is required")
	}
	if deps.Reader == nil {
		return nil, errors.New("workspace reader is required")
	}
	if deps.Writer == nil {
		return nil, errors.New("workspace writer is required")
	}

	s := &Server{
		cfg:      deps.Config,
		store:    deps.Store,
		indexer:  deps.Indexer,
		reader:   deps.Reader,
		writer:   deps.Writer,
		webhooks: deps.Webhooks,
		sync:     deps.Sync,
		verifier: deps.Verifier,
		logger:   slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil, // capabilities are inferred from registered tools/resources
	)

	s.registerTools()
	s.registerResources()
	s.registerPrompts()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return ServerName, version.Version
}

// Serve runs the server on the given transport until the context is
// canceled or the client disconnects, then shuts the components down:
// webhook intake first, then the sync loop, then the store.
func (s *Server) Serve(ctx context.Context, transport string) error {
	if transport != TransportStdio {
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}

	s.logger.Info("starting MCP server",
		slog.String("transport", transport),
		slog.String("root", s.indexer.Root()))
	if s.verifier != nil && s.verifier.Enabled() {
		// Stdio trusts the spawning process; the token guards network
		// transports when one is added.
		s.logger.Info("auth_token_configured", slog.String("transport", transport))
	}

	if s.sync != nil {
		s.sync.Start()
	}
	defer s.shutdown()

	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped gracefully")
	return nil
}

// shutdown releases components in dependency order. Webhook intake
// stops before the sync loop so a final sync cannot queue deliveries,
// and the store closes last because both write to it.
func (s *Server) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if s.webhooks != nil {
		if err := s.webhooks.Close(ctx); err != nil {
			s.logger.Warn("webhook manager close failed", slog.String("error", err.Error()))
		}
	}
	if s.sync != nil {
		s.sync.Stop()
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn("store close failed", slog.String("error", err.Error()))
	}
	s.logger.Info("server shut down")
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "search",
		Description: "Search for content across all projects using full-text search. " +
			"Supports FTS5 query syntax; results are ranked by relevance, document type, " +
			"recency, heading importance, and task status.",
	}, s.handleSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "read_doc",
		Description: "Read a complete document from a project, with parsed metadata.",
	}, s.handleReadDoc)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_tasks",
		Description: "List tasks from a project or across all projects, optionally filtered by status.",
	}, s.handleListTasks)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_plan",
		Description: "Read the execution plan for a project.",
	}, s.handleGetPlan)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "create_doc",
		Description: "Create a new document in a project folder. Fails if the file already exists.",
	}, s.handleCreateDoc)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "update_doc",
		Description: "Replace the content of an existing document.",
	}, s.handleUpdateDoc)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "create_task",
		Description: "Create an auto-numbered task document in the standard format.",
	}, s.handleCreateTask)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "update_task_status",
		Description: "Update the Status line of an existing task (pending, in-progress, blocked, done).",
	}, s.handleUpdateTaskStatus)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "create_plan",
		Description: "Create or replace a project's execution plan.",
	}, s.handleCreatePlan)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "log_session",
		Description: "Record session notes, creating today's session file or appending to it.",
	}, s.handleLogSession)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "reindex",
		Description: "Rebuild the full search index from the workspace.",
	}, s.handleReindex)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "init_project",
		Description: "Initialize a new project with the standard folder layout and a seed status.md.",
	}, s.handleInitProject)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "register_webhook",
		Description: "Register a webhook subscription. Matching events are POSTed to the URL " +
			"with an HMAC-SHA256 signature in X-Vibe-Signature.",
	}, s.handleRegisterWebhook)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "unregister_webhook",
		Description: "Remove a webhook subscription by id.",
	}, s.handleUnregisterWebhook)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_webhooks",
		Description: "List webhook subscriptions. Signing secrets are never included.",
	}, s.handleListWebhooks)

	s.logger.Debug("MCP tools registered", slog.Int("count", 15))
}

// toolCall logs the start of a tool invocation and returns a completion
// callback; every tool call gets a request_id for log correlation.
func (s *Server) toolCall(tool string, attrs ...any) func(err error, attrs ...any) {
	requestID := generateRequestID()
	start := time.Now()

	startAttrs := append([]any{slog.String("request_id", requestID)}, attrs...)
	s.logger.Info(tool+" started", startAttrs...)

	return func(err error, attrs ...any) {
		duration := time.Since(start)
		if err != nil {
			s.logger.Error(tool+" failed",
				slog.String("request_id", requestID),
				slog.Duration("duration", duration),
				slog.String("error", err.Error()))
			return
		}
		doneAttrs := append([]any{
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
		}, attrs...)
		s.logger.Info(tool+" completed", doneAttrs...)
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
