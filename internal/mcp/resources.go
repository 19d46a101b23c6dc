package mcp

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vibecoding/vibemcp/internal/store"
	"github.com/vibecoding/vibemcp/internal/workspace"
)

// resourceScheme prefixes every workspace resource URI.
const resourceScheme = "vibe://projects"

// registerResources registers the project listing resource plus the
// per-project and per-file templates.
func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		Name:        "projects",
		URI:         resourceScheme,
		Description: "All vibe projects with activity stats",
		MIMEType:    "text/markdown",
	}, s.handleProjectsResource)

	s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "project",
		URITemplate: resourceScheme + "/{name}",
		Description: "Folder layout and task status breakdown for one project",
		MIMEType:    "text/markdown",
	}, s.handleProjectDetailResource)

	s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "project-file",
		URITemplate: resourceScheme + "/{name}/{folder}/{file}",
		Description: "Raw document content with a metadata header",
		MIMEType:    "text/markdown",
	}, s.handleProjectFileResource)
}

// handleProjectsResource serves vibe://projects, a markdown listing of
// every indexed project.
func (s *Server) handleProjectsResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	summaries, err := s.store.ProjectSummaries(ctx)
	if err != nil {
		return nil, MapError(err)
	}
	return markdownResource(req.Params.URI, projectsMarkdown(summaries)), nil
}

// handleProjectDetailResource serves vibe://projects/{name}.
func (s *Server) handleProjectDetailResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	segments, err := resourceSegments(req.Params.URI)
	if err != nil || len(segments) != 1 {
		return nil, NewResourceNotFoundError(req.Params.URI)
	}

	detail, err := s.store.GetProjectDetail(ctx, segments[0])
	if err != nil {
		return nil, MapError(err)
	}
	return markdownResource(req.Params.URI, projectDetailMarkdown(detail)), nil
}

// handleProjectFileResource serves vibe://projects/{name}/{folder}/{file}.
// Unlike the read_doc tool, a missing file is a protocol error here.
func (s *Server) handleProjectFileResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	segments, err := resourceSegments(req.Params.URI)
	if err != nil || len(segments) != 3 {
		return nil, NewResourceNotFoundError(req.Params.URI)
	}
	name, folder, file := segments[0], segments[1], segments[2]

	res := s.reader.ReadDoc(name, folder, file)
	if !res.Exists {
		return nil, NewResourceNotFoundError(req.Params.URI)
	}
	if res.Error != "" {
		return nil, &MCPError{Code: ErrCodeInternalError, Message: res.Error}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", file)
	fmt.Fprintf(&b, "**Project:** %s\n", name)
	fmt.Fprintf(&b, "**Folder:** %s\n", folder)
	fmt.Fprintf(&b, "**Path:** `%s`\n\n", res.Path)
	b.WriteString("---\n\n")
	b.WriteString(res.Content)

	return markdownResource(req.Params.URI, b.String()), nil
}

// resourceSegments returns the unescaped path segments after the
// vibe://projects prefix.
func resourceSegments(uri string) ([]string, error) {
	rest, ok := strings.CutPrefix(uri, resourceScheme)
	if !ok {
		return nil, fmt.Errorf("unexpected resource uri: %s", uri)
	}
	rest = strings.TrimPrefix(rest, "/")
	if rest == "" {
		return nil, nil
	}
	parts := strings.Split(rest, "/")
	for i, part := range parts {
		unescaped, err := url.PathUnescape(part)
		if err != nil {
			return nil, fmt.Errorf("malformed resource uri segment %q: %w", part, err)
		}
		parts[i] = unescaped
	}
	return parts, nil
}

func markdownResource(uri, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: uri, MIMEType: "text/markdown", Text: text},
		},
	}
}

// projectsMarkdown renders the project listing.
func projectsMarkdown(summaries []store.ProjectSummary) string {
	var b strings.Builder
	b.WriteString("# Vibe Projects\n\n")
	fmt.Fprintf(&b, "Total projects: %d\n\n", len(summaries))

	for _, p := range summaries {
		fmt.Fprintf(&b, "## %s\n", p.Name)
		fmt.Fprintf(&b, "- Path: `%s`\n", p.Path)
		lastUpdated := p.LastUpdated
		if lastUpdated == "" {
			lastUpdated = "unknown"
		}
		fmt.Fprintf(&b, "- Last updated: %s\n", lastUpdated)
		fmt.Fprintf(&b, "- Open tasks: %d\n", p.OpenTasks)
		if p.LastSession != "" {
			fmt.Fprintf(&b, "- Last session: %s\n", strings.TrimSuffix(p.LastSession, ".md"))
		}
		fmt.Fprintf(&b, "- Files: tasks=%d, plans=%d, sessions=%d, reports=%d\n\n",
			p.FolderCounts["tasks"], p.FolderCounts["plans"],
			p.FolderCounts["sessions"], p.FolderCounts["reports"])
	}
	return b.String()
}

// taskStatusOrder fixes the rendering order of the status breakdown.
var taskStatusOrder = []string{"pending", "in-progress", "blocked", "done", "unknown"}

// projectDetailMarkdown renders one project's drill-down.
func projectDetailMarkdown(detail *store.ProjectDetail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Project: %s\n\n", detail.Project.Name)
	fmt.Fprintf(&b, "**Path:** `%s`\n", detail.Project.Path)
	fmt.Fprintf(&b, "**Created:** %s\n", orUnknown(detail.Project.CreatedAt))
	fmt.Fprintf(&b, "**Updated:** %s\n\n", orUnknown(detail.Project.UpdatedAt))

	b.WriteString("## Available Folders\n\n")
	for _, folder := range workspace.StandardFolders {
		n, ok := detail.FolderCounts[folder]
		if !ok || n == 0 {
			continue
		}
		word := "files"
		if n == 1 {
			word = "file"
		}
		fmt.Fprintf(&b, "- `%s/` (%d %s)\n", folder, n, word)
	}

	b.WriteString("\n## Task Status\n\n")
	statuses := make(map[string]int, len(detail.TaskStatuses))
	for status, n := range detail.TaskStatuses {
		if status == "" {
			status = "unknown"
		}
		statuses[status] += n
	}
	if len(statuses) == 0 {
		b.WriteString("No tasks found.\n")
		return b.String()
	}
	for _, status := range taskStatusOrder {
		if n := statuses[status]; n > 0 {
			fmt.Fprintf(&b, "- %s: %d\n", status, n)
		}
	}
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
