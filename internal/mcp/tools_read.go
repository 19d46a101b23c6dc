package mcp

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vibecoding/vibemcp/internal/store"
	"github.com/vibecoding/vibemcp/internal/workspace"
)

// handleSearch runs a ranked full-text query over the index.
func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query is required and must not be empty")
	}

	done := s.toolCall("search",
		slog.String("query", input.Query),
		slog.String("project", input.Project),
		slog.Int("limit", input.Limit))

	results, err := s.store.Search(ctx, input.Query, store.SearchOptions{
		Project: input.Project,
		Limit:   input.Limit,
	})
	if err != nil {
		done(err)
		return nil, SearchOutput{}, MapError(err)
	}

	output := SearchOutput{Results: make([]SearchHit, 0, len(results))}
	for _, r := range results {
		output.Results = append(output.Results, SearchHit{
			ProjectName:  r.ProjectName,
			DocumentPath: r.DocumentPath,
			Folder:       r.Folder,
			Heading:      r.Heading,
			Snippet:      r.Snippet,
			Score:        math.Round(r.Score*100) / 100,
		})
	}
	done(nil, slog.Int("result_count", len(output.Results)))
	return nil, output, nil
}

// handleReadDoc reads one document. Missing or unreadable documents are
// reported in-band through Exists and Error, not as protocol errors.
func (s *Server) handleReadDoc(ctx context.Context, _ *mcp.CallToolRequest, input ReadDocInput) (
	*mcp.CallToolResult,
	*workspace.DocResult,
	error,
) {
	if input.Project == "" || input.Filename == "" {
		return nil, nil, NewInvalidParamsError("project and filename are required")
	}

	done := s.toolCall("read_doc",
		slog.String("project", input.Project),
		slog.String("folder", input.Folder),
		slog.String("filename", input.Filename))

	res := s.reader.ReadDoc(input.Project, input.Folder, input.Filename)
	done(nil, slog.Bool("exists", res.Exists))
	return nil, res, nil
}

// handleListTasks lists indexed tasks.
func (s *Server) handleListTasks(ctx context.Context, _ *mcp.CallToolRequest, input ListTasksInput) (
	*mcp.CallToolResult,
	ListTasksOutput,
	error,
) {
	done := s.toolCall("list_tasks",
		slog.String("project", input.Project),
		slog.String("status", input.Status))

	tasks, err := s.reader.ListTasks(ctx, input.Project, input.Status)
	if err != nil {
		done(err)
		return nil, ListTasksOutput{}, MapError(err)
	}
	done(nil, slog.Int("task_count", len(tasks)))
	return nil, ListTasksOutput{Tasks: tasks}, nil
}

// handleGetPlan reads a project's execution plan. A missing plan is a
// normal outcome with Exists false.
func (s *Server) handleGetPlan(ctx context.Context, _ *mcp.CallToolRequest, input GetPlanInput) (
	*mcp.CallToolResult,
	*workspace.PlanResult,
	error,
) {
	if input.Project == "" {
		return nil, nil, NewInvalidParamsError("project is required")
	}

	done := s.toolCall("get_plan",
		slog.String("project", input.Project),
		slog.String("filename", input.Filename))

	res := s.reader.GetPlan(input.Project, input.Filename)
	done(nil, slog.Bool("exists", res.Exists))
	return nil, res, nil
}
