package mcp

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	verrors "github.com/vibecoding/vibemcp/internal/errors"
	"github.com/vibecoding/vibemcp/internal/store"
)

// pendingPreview caps how many pending tasks session_start spells out.
const pendingPreview = 5

// sessionSections are the headings session summaries are distilled from.
var sessionSections = []struct {
	heading string
	label   string
}{
	{"## Done", "Done"},
	{"## Blocked by", "Blocked by"},
	{"## Next", "Next"},
	{"## Decisions", "Decisions"},
}

// registerPrompts registers the context prompts with the MCP server.
func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(&mcp.Prompt{
		Name:        "project_briefing",
		Description: "Concise briefing of a project's current state: status, active tasks, and recent sessions.",
		Arguments: []*mcp.PromptArgument{
			{Name: "project", Description: "Name of the project to brief", Required: true},
		},
	}, s.handleProjectBriefing)

	s.mcp.AddPrompt(&mcp.Prompt{
		Name:        "session_start",
		Description: "Complete context to start working on a project: status, plan, open tasks, and the latest session.",
		Arguments: []*mcp.PromptArgument{
			{Name: "project", Description: "Name of the project to start a session for", Required: true},
		},
	}, s.handleSessionStart)
}

// handleProjectBriefing builds the project_briefing prompt text.
func (s *Server) handleProjectBriefing(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	project := req.Params.Arguments["project"]
	if project == "" {
		return nil, NewInvalidParamsError("project argument is required")
	}

	text, err := s.briefingText(ctx, project)
	if err != nil {
		return nil, MapError(err)
	}
	return promptResult(fmt.Sprintf("Briefing for project %s", project), text), nil
}

// handleSessionStart builds the session_start prompt text.
func (s *Server) handleSessionStart(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	project := req.Params.Arguments["project"]
	if project == "" {
		return nil, NewInvalidParamsError("project argument is required")
	}

	text, err := s.sessionStartText(ctx, project)
	if err != nil {
		return nil, MapError(err)
	}
	return promptResult(fmt.Sprintf("Session context for project %s", project), text), nil
}

func promptResult(description, text string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []*mcp.PromptMessage{
			{Role: "user", Content: &mcp.TextContent{Text: text}},
		},
	}
}

// briefingText renders the short project briefing: current status,
// active tasks with their objectives, and the last three sessions.
func (s *Server) briefingText(ctx context.Context, project string) (string, error) {
	if known, err := s.projectKnown(ctx, project); err != nil {
		return "", err
	} else if !known {
		return missingProjectText("Project Briefing", project), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Project Briefing: %s\n", project)

	s.writeStatusSection(&b, project, "## Current Status\n")

	tasks, err := s.store.ListDocuments(ctx, store.DocumentFilter{Project: project, Folder: "tasks"})
	if err != nil {
		return "", err
	}
	b.WriteString("## Active Tasks\n\n")
	active := 0
	for _, status := range []string{"in-progress", "blocked", "pending"} {
		for _, task := range tasks {
			if task.Status != status {
				continue
			}
			active++
			objective, ok := s.taskObjective(project, task.Filename)
			if !ok {
				fmt.Fprintf(&b, "- **[%s]** %s: _(could not read)_\n", status, task.Filename)
				continue
			}
			fmt.Fprintf(&b, "- **[%s]** %s: %s\n", status, task.Filename, objective)
		}
	}
	if active == 0 {
		b.WriteString("_No active tasks_\n\n")
	} else {
		b.WriteString("\n")
	}

	sessions, err := s.recentSessions(ctx, project)
	if err != nil {
		return "", err
	}
	b.WriteString("## Recent Sessions\n\n")
	if len(sessions) == 0 {
		b.WriteString("_No recent sessions_\n\n")
		return b.String(), nil
	}
	for i, session := range sessions {
		if i == 3 {
			break
		}
		res := s.reader.ReadDoc(project, "sessions", session.Filename)
		if !res.Exists || res.Error != "" {
			fmt.Fprintf(&b, "_%s: could not read_\n\n", session.Filename)
			continue
		}
		fmt.Fprintf(&b, "### %s\n\n", strings.TrimSuffix(session.Filename, ".md"))
		for _, section := range sessionSections {
			if text := extractSection(res.Content, section.heading); text != "" {
				fmt.Fprintf(&b, "**%s:** %s\n\n", section.label, text)
			}
		}
	}
	return b.String(), nil
}

// sessionStartText renders the full working context: status, plan,
// complete in-progress and blocked tasks, pending previews, and the
// latest session verbatim.
func (s *Server) sessionStartText(ctx context.Context, project string) (string, error) {
	if known, err := s.projectKnown(ctx, project); err != nil {
		return "", err
	} else if !known {
		return missingProjectText("Session Start", project), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Session Start: %s\n\n", project)

	s.writeStatusSection(&b, project, "## Current Status\n\n")

	if plan := s.reader.GetPlan(project, ""); plan.Exists {
		if plan.Error != "" {
			b.WriteString("## Execution Plan\n\n_Plan file exists but could not be read_\n\n")
		} else {
			fmt.Fprintf(&b, "## Execution Plan\n\n%s\n\n", strings.TrimSpace(plan.Content))
		}
	}

	tasks, err := s.store.ListDocuments(ctx, store.DocumentFilter{Project: project, Folder: "tasks"})
	if err != nil {
		return "", err
	}

	s.writeFullTasks(&b, project, tasks, "in-progress", "## In-Progress Tasks", "_No tasks in progress_")
	s.writeFullTasks(&b, project, tasks, "blocked", "## Blocked Tasks", "_No blocked tasks_")

	var pending []store.Document
	for _, task := range tasks {
		if task.Status == "pending" {
			pending = append(pending, task)
		}
	}
	b.WriteString("## Pending Tasks\n\n")
	if len(pending) == 0 {
		b.WriteString("_No pending tasks_\n\n")
	} else {
		for i, task := range pending {
			if i == pendingPreview {
				break
			}
			objective, ok := s.taskObjective(project, task.Filename)
			if !ok {
				fmt.Fprintf(&b, "- **%s**: _Could not read_\n", task.Filename)
				continue
			}
			if objective == "" {
				objective = "_No objective found_"
			}
			fmt.Fprintf(&b, "- **%s**: %s\n", task.Filename, objective)
		}
		if extra := len(pending) - pendingPreview; extra > 0 {
			fmt.Fprintf(&b, "\n_...and %d more pending tasks_", extra)
		}
		b.WriteString("\n\n")
	}

	sessions, err := s.recentSessions(ctx, project)
	if err != nil {
		return "", err
	}
	if len(sessions) > 0 {
		latest := sessions[0]
		res := s.reader.ReadDoc(project, "sessions", latest.Filename)
		if !res.Exists || res.Error != "" {
			b.WriteString("## Latest Session\n\n_Could not read latest session_\n\n")
		} else {
			fmt.Fprintf(&b, "## Latest Session (%s)\n\n%s\n\n",
				strings.TrimSuffix(latest.Filename, ".md"), strings.TrimSpace(res.Content))
		}
	}

	b.WriteString("---\n\n")
	b.WriteString("**Ready to work!** The context above should help you ")
	b.WriteString("understand where the project is and what needs to be done next.\n")
	return b.String(), nil
}

// projectKnown reports whether the project exists in the index.
func (s *Server) projectKnown(ctx context.Context, project string) (bool, error) {
	_, err := s.store.GetProject(ctx, project)
	if err != nil {
		if verrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func missingProjectText(title, project string) string {
	return fmt.Sprintf("# %s: %s\n\n"+
		"⚠️  Project '%s' not found in index.\n\n"+
		"The project may not exist or hasn't been indexed yet.",
		title, project, project)
}

// writeStatusSection appends the project's status.md under the given
// heading, with in-band fallbacks for missing or unreadable files.
func (s *Server) writeStatusSection(b *strings.Builder, project, heading string) {
	res := s.reader.ReadDoc(project, "", "status.md")
	switch {
	case res.Exists && res.Error == "":
		b.WriteString(heading)
		b.WriteString(strings.TrimSpace(res.Content))
		b.WriteString("\n\n")
	case res.Exists:
		b.WriteString("## Current Status\n\n_Status file exists but could not be read_\n\n")
	default:
		b.WriteString("## Current Status\n\n_No status file found_\n\n")
	}
}

// writeFullTasks appends every task with the given status verbatim.
func (s *Server) writeFullTasks(b *strings.Builder, project string, tasks []store.Document, status, heading, emptyLine string) {
	b.WriteString(heading + "\n\n")
	found := false
	for _, task := range tasks {
		if task.Status != status {
			continue
		}
		found = true
		res := s.reader.ReadDoc(project, "tasks", task.Filename)
		if !res.Exists || res.Error != "" {
			fmt.Fprintf(b, "### %s\n\n_Could not read task_\n\n", task.Filename)
			continue
		}
		fmt.Fprintf(b, "### %s\n\n%s\n\n", task.Filename, strings.TrimSpace(res.Content))
	}
	if !found {
		b.WriteString(emptyLine + "\n\n")
	}
}

// taskObjective extracts the "## Objective" section of a task file.
func (s *Server) taskObjective(project, filename string) (string, bool) {
	res := s.reader.ReadDoc(project, "tasks", filename)
	if !res.Exists || res.Error != "" {
		return "", false
	}
	return extractSection(res.Content, "## Objective"), true
}

// recentSessions lists a project's session documents, newest first.
// Session files are date-named, so the filename sorts chronologically.
func (s *Server) recentSessions(ctx context.Context, project string) ([]store.Document, error) {
	sessions, err := s.store.ListDocuments(ctx, store.DocumentFilter{Project: project, Folder: "sessions"})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(sessions, func(a, b store.Document) int {
		return strings.Compare(b.Filename, a.Filename)
	})
	return sessions, nil
}

// extractSection returns the content under an exact heading line up to
// the next heading, trimmed, with runs of blank lines collapsed.
func extractSection(content, heading string) string {
	var collected []string
	inSection := false
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == heading {
			inSection = true
			continue
		}
		if inSection {
			if strings.HasPrefix(line, "#") {
				break
			}
			collected = append(collected, line)
		}
	}
	text := strings.TrimSpace(strings.Join(collected, "\n"))
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return text
}
