package store

// Project is a row in the projects table. Each project maps to one
// immediate subdirectory of the workspace root.
type Project struct {
	ID        int64
	Name      string
	Path      string
	CreatedAt string
	UpdatedAt string
}

// Document is a row in the documents table. Path is the root-relative
// slash path and is unique across all projects.
type Document struct {
	ID          int64
	ProjectID   int64
	Path        string
	Folder      string
	Filename    string
	Type        string
	Status      string
	Owner       string
	Tags        []string
	Feature     string
	ContentHash string
	MTime       float64
	Updated     string
	IndexedAt   string
}

// Stamp is the change-detection fingerprint kept for an indexed document.
type Stamp struct {
	MTime       float64
	ContentHash string
}

// DocumentFilter narrows ListDocuments. Empty fields match everything.
type DocumentFilter struct {
	Project string
	Folder  string
	Type    string
	Status  string
	Feature string
}

// SearchOptions control a full-text query.
type SearchOptions struct {
	// Project restricts results to a single project when non-empty.
	Project string
	// Limit caps the number of results. Zero or negative means
	// DefaultSearchLimit.
	Limit int
}

// SearchResult is one ranked chunk hit. The boost factors are returned
// alongside the final score so callers can explain a ranking.
type SearchResult struct {
	ChunkID      int64
	DocumentID   int64
	ProjectName  string
	DocumentPath string
	Folder       string
	Heading      string
	Content      string
	Snippet      string
	BM25Score    float64
	TypeBoost    float64
	RecencyBoost float64
	HeadingBoost float64
	StatusBoost  float64
	Score        float64
}

// Subscription is a webhook subscription row. Project empty means the
// subscription receives events from every project.
type Subscription struct {
	ID          int64
	URL         string
	Secret      string
	EventTypes  []string
	Project     string
	Active      bool
	Description string
	CreatedAt   string
}

// DeliveryLog records one webhook delivery attempt. StatusCode is zero
// when no HTTP response was received.
type DeliveryLog struct {
	ID             int64
	SubscriptionID int64
	EventType      string
	EventID        string
	Payload        string
	StatusCode     int
	Success        bool
	ErrorMessage   string
	CreatedAt      string
}

// ProjectSummary is the aggregate view of one project used by the
// project listing resource.
type ProjectSummary struct {
	Name         string
	Path         string
	LastUpdated  string
	OpenTasks    int
	LastSession  string
	FolderCounts map[string]int
}

// ProjectDetail is the per-project drill-down: document counts by
// folder and task counts by status.
type ProjectDetail struct {
	Project      Project
	FolderCounts map[string]int
	TaskStatuses map[string]int
}
