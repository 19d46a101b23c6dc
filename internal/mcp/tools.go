package mcp

import "github.com/vibecoding/vibemcp/internal/workspace"

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query   string `json:"query" jsonschema:"the search query, FTS5 syntax supported"`
	Project string `json:"project,omitempty" jsonschema:"restrict results to a single project"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 20"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Results []SearchHit `json:"results" jsonschema:"ranked search results"`
}

// SearchHit is a single ranked match.
type SearchHit struct {
	ProjectName  string  `json:"project_name" jsonschema:"project owning the document"`
	DocumentPath string  `json:"document_path" jsonschema:"root-relative document path"`
	Folder       string  `json:"folder" jsonschema:"folder containing the document"`
	Heading      string  `json:"heading,omitempty" jsonschema:"section heading of the match"`
	Snippet      string  `json:"snippet" jsonschema:"contextual snippet with >>>match<<< markers"`
	Score        float64 `json:"score" jsonschema:"relevance score, higher is better"`
}

// ReadDocInput defines the input schema for the read_doc tool.
type ReadDocInput struct {
	Project  string `json:"project" jsonschema:"project name"`
	Folder   string `json:"folder" jsonschema:"folder containing the document (tasks, plans, sessions, ...)"`
	Filename string `json:"filename" jsonschema:"file name, e.g. 001-setup.md"`
}

// ListTasksInput defines the input schema for the list_tasks tool.
type ListTasksInput struct {
	Project string `json:"project,omitempty" jsonschema:"restrict to a single project"`
	Status  string `json:"status,omitempty" jsonschema:"filter by status: pending, in-progress, blocked, done"`
}

// ListTasksOutput defines the output schema for the list_tasks tool.
type ListTasksOutput struct {
	Tasks []workspace.TaskInfo `json:"tasks" jsonschema:"task listing ordered by path"`
}

// GetPlanInput defines the input schema for the get_plan tool.
type GetPlanInput struct {
	Project  string `json:"project" jsonschema:"project name"`
	Filename string `json:"filename,omitempty" jsonschema:"plan file name, default execution-plan.md"`
}

// CreateDocInput defines the input schema for the create_doc tool.
type CreateDocInput struct {
	Project  string `json:"project" jsonschema:"project name"`
	Folder   string `json:"folder" jsonschema:"target folder, empty for project root"`
	Filename string `json:"filename" jsonschema:"file name, .md appended when missing"`
	Content  string `json:"content" jsonschema:"full document content"`
}

// UpdateDocInput defines the input schema for the update_doc tool.
type UpdateDocInput struct {
	Project string `json:"project" jsonschema:"project name"`
	Path    string `json:"path" jsonschema:"project-relative document path, e.g. plans/execution-plan.md"`
	Content string `json:"content" jsonschema:"replacement content"`
}

// CreateTaskInput defines the input schema for the create_task tool.
type CreateTaskInput struct {
	Project   string   `json:"project" jsonschema:"project name"`
	Title     string   `json:"title" jsonschema:"task title, slugged into the filename"`
	Objective string   `json:"objective" jsonschema:"what the task should accomplish"`
	Steps     []string `json:"steps,omitempty" jsonschema:"ordered checklist steps"`
	Feature   string   `json:"feature,omitempty" jsonschema:"feature tag stored in frontmatter"`
}

// UpdateTaskStatusInput defines the input schema for the update_task_status tool.
type UpdateTaskStatusInput struct {
	Project   string `json:"project" jsonschema:"project name"`
	TaskFile  string `json:"task_file" jsonschema:"task file name inside tasks/"`
	NewStatus string `json:"new_status" jsonschema:"one of: pending, in-progress, blocked, done"`
}

// CreatePlanInput defines the input schema for the create_plan tool.
type CreatePlanInput struct {
	Project  string `json:"project" jsonschema:"project name"`
	Content  string `json:"content" jsonschema:"full plan content"`
	Filename string `json:"filename,omitempty" jsonschema:"plan file name, default execution-plan.md"`
}

// LogSessionInput defines the input schema for the log_session tool.
type LogSessionInput struct {
	Project string `json:"project" jsonschema:"project name"`
	Content string `json:"content" jsonschema:"session notes to record"`
}

// ReindexInput defines the input schema for the reindex tool (no parameters).
type ReindexInput struct{}

// InitProjectInput defines the input schema for the init_project tool.
type InitProjectInput struct {
	Project string `json:"project" jsonschema:"name of the project to scaffold"`
}

// RegisterWebhookInput defines the input schema for the register_webhook tool.
type RegisterWebhookInput struct {
	URL         string   `json:"url" jsonschema:"delivery URL, http or https"`
	Secret      string   `json:"secret" jsonschema:"HMAC-SHA256 signing secret, at least 32 characters"`
	EventTypes  []string `json:"event_types" jsonschema:"event types to subscribe to, * for all"`
	Project     string   `json:"project,omitempty" jsonschema:"restrict to one project, empty for all"`
	Description string   `json:"description,omitempty" jsonschema:"free-form description"`
}

// RegisterWebhookOutput defines the output schema for the register_webhook tool.
type RegisterWebhookOutput struct {
	Status         string   `json:"status"`
	SubscriptionID int64    `json:"subscription_id"`
	URL            string   `json:"url"`
	EventTypes     []string `json:"event_types"`
	Project        string   `json:"project,omitempty"`
}

// UnregisterWebhookInput defines the input schema for the unregister_webhook tool.
type UnregisterWebhookInput struct {
	SubscriptionID int64 `json:"subscription_id" jsonschema:"id of the subscription to remove"`
}

// UnregisterWebhookOutput defines the output schema for the unregister_webhook tool.
type UnregisterWebhookOutput struct {
	Status         string `json:"status"`
	SubscriptionID int64  `json:"subscription_id"`
}

// ListWebhooksInput defines the input schema for the list_webhooks tool.
type ListWebhooksInput struct {
	Project string `json:"project,omitempty" jsonschema:"show only subscriptions matching this project"`
}

// ListWebhooksOutput defines the output schema for the list_webhooks tool.
type ListWebhooksOutput struct {
	Subscriptions []SubscriptionInfo `json:"subscriptions" jsonschema:"active and inactive subscriptions, secrets omitted"`
}

// SubscriptionInfo is one listed subscription. The signing secret is
// never included.
type SubscriptionInfo struct {
	ID          int64    `json:"id"`
	URL         string   `json:"url"`
	EventTypes  []string `json:"event_types"`
	Project     string   `json:"project,omitempty"`
	Active      bool     `json:"active"`
	Description string   `json:"description,omitempty"`
	CreatedAt   string   `json:"created_at"`
}
