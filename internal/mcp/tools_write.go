package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vibecoding/vibemcp/internal/workspace"
)

// handleCreateDoc writes a new document into a project folder.
func (s *Server) handleCreateDoc(ctx context.Context, _ *mcp.CallToolRequest, input CreateDocInput) (
	*mcp.CallToolResult,
	*workspace.WriteResult,
	error,
) {
	done := s.toolCall("create_doc",
		slog.String("project", input.Project),
		slog.String("folder", input.Folder),
		slog.String("filename", input.Filename))

	res, err := s.writer.CreateDoc(ctx, input.Project, input.Folder, input.Filename, input.Content)
	if err != nil {
		done(err)
		return nil, nil, MapError(err)
	}
	done(nil, slog.String("path", res.Path))
	return nil, res, nil
}

// handleUpdateDoc replaces the content of an existing document.
func (s *Server) handleUpdateDoc(ctx context.Context, _ *mcp.CallToolRequest, input UpdateDocInput) (
	*mcp.CallToolResult,
	*workspace.WriteResult,
	error,
) {
	done := s.toolCall("update_doc",
		slog.String("project", input.Project),
		slog.String("path", input.Path))

	res, err := s.writer.UpdateDoc(ctx, input.Project, input.Path, input.Content)
	if err != nil {
		done(err)
		return nil, nil, MapError(err)
	}
	done(nil, slog.String("path", res.Path))
	return nil, res, nil
}

// handleCreateTask writes a numbered task document.
func (s *Server) handleCreateTask(ctx context.Context, _ *mcp.CallToolRequest, input CreateTaskInput) (
	*mcp.CallToolResult,
	*workspace.TaskResult,
	error,
) {
	done := s.toolCall("create_task",
		slog.String("project", input.Project),
		slog.String("title", input.Title))

	res, err := s.writer.CreateTask(ctx, input.Project, input.Title, input.Objective, input.Steps, input.Feature)
	if err != nil {
		done(err)
		return nil, nil, MapError(err)
	}
	done(nil, slog.Int("task_number", res.TaskNumber), slog.String("path", res.Path))
	return nil, res, nil
}

// handleUpdateTaskStatus rewrites a task's Status line.
func (s *Server) handleUpdateTaskStatus(ctx context.Context, _ *mcp.CallToolRequest, input UpdateTaskStatusInput) (
	*mcp.CallToolResult,
	*workspace.StatusResult,
	error,
) {
	done := s.toolCall("update_task_status",
		slog.String("project", input.Project),
		slog.String("task_file", input.TaskFile),
		slog.String("new_status", input.NewStatus))

	res, err := s.writer.UpdateTaskStatus(ctx, input.Project, input.TaskFile, input.NewStatus)
	if err != nil {
		done(err)
		return nil, nil, MapError(err)
	}
	done(nil, slog.String("path", res.Path))
	return nil, res, nil
}

// handleCreatePlan creates or replaces a project's plan document.
func (s *Server) handleCreatePlan(ctx context.Context, _ *mcp.CallToolRequest, input CreatePlanInput) (
	*mcp.CallToolResult,
	*workspace.WriteResult,
	error,
) {
	done := s.toolCall("create_plan",
		slog.String("project", input.Project),
		slog.String("filename", input.Filename))

	res, err := s.writer.CreatePlan(ctx, input.Project, input.Content, input.Filename)
	if err != nil {
		done(err)
		return nil, nil, MapError(err)
	}
	done(nil, slog.String("path", res.Path), slog.String("action", res.Action))
	return nil, res, nil
}

// handleLogSession records session notes under today's date.
func (s *Server) handleLogSession(ctx context.Context, _ *mcp.CallToolRequest, input LogSessionInput) (
	*mcp.CallToolResult,
	*workspace.SessionResult,
	error,
) {
	done := s.toolCall("log_session", slog.String("project", input.Project))

	res, err := s.writer.LogSession(ctx, input.Project, input.Content)
	if err != nil {
		done(err)
		return nil, nil, MapError(err)
	}
	done(nil, slog.String("date", res.Date), slog.String("action", res.Action))
	return nil, res, nil
}

// handleReindex rebuilds the whole index.
func (s *Server) handleReindex(ctx context.Context, _ *mcp.CallToolRequest, _ ReindexInput) (
	*mcp.CallToolResult,
	*workspace.ReindexResult,
	error,
) {
	done := s.toolCall("reindex")

	res, err := s.writer.Reindex(ctx)
	if err != nil {
		done(err)
		return nil, nil, MapError(err)
	}
	done(nil, slog.Int("document_count", res.DocumentCount))
	return nil, res, nil
}

// handleInitProject scaffolds a new project.
func (s *Server) handleInitProject(ctx context.Context, _ *mcp.CallToolRequest, input InitProjectInput) (
	*mcp.CallToolResult,
	*workspace.InitResult,
	error,
) {
	done := s.toolCall("init_project", slog.String("project", input.Project))

	res, err := s.writer.InitProject(ctx, input.Project)
	if err != nil {
		done(err)
		return nil, nil, MapError(err)
	}
	done(nil, slog.String("path", res.Path))
	return nil, res, nil
}
