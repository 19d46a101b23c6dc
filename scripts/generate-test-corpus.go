//go:build ignore

// Package main generates a synthetic markdown workspace for
// benchmarking the indexer and search.
// Usage: go run scripts/generate-test-corpus.go -projects 20 -tasks 40 -output testdata/bench
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	numProjects = flag.Int("projects", 20, "Number of projects to generate")
	numTasks    = flag.Int("tasks", 40, "Tasks per project")
	numNotes    = flag.Int("notes", 15, "Notes per project")
	numSessions = flag.Int("sessions", 10, "Session logs per project")
	outputDir   = flag.String("output", "testdata/bench", "Workspace root to generate into")
	seed        = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var statusTemplate = `# %s

Status: %s

Current focus is the %s. %s

## Recent progress

- %s the %s
- %s the %s

## Blockers

%s
`

var taskTemplate = `# %s %s

Status: %s

## Objective

%s the %s so that %s.

## Steps

- [ ] Reproduce the current behavior
- [ ] %s the %s
- [ ] Verify that %s

## Notes

%s
`

var planTemplate = `# Execution plan

## Phase 1: %s

%s the %s. Exit criteria: %s.

## Phase 2: %s

%s the %s. Exit criteria: %s.

## Phase 3: Cleanup

Remove the old %s and update the runbooks.
`

var noteTemplate = `# %s notes

Observations from working on the %s.

## Decision

%s the %s rather than rewriting it, so that %s.

## Follow-ups

- %s the %s
- Measure whether %s
`

var sessionTemplate = `# Session %s

## Did

- %s the %s
- Reviewed the %s

## Next

- %s the %s

## Decisions

Chose to %s the %s first because %s.
`

// Word pools for generating plausible project-memory content.
var (
	projectStems = []string{
		"chat", "billing", "ingest", "search", "auth", "deploy",
		"metrics", "mailer", "gateway", "scheduler", "exporter",
		"notebook", "catalog", "ledger", "relay", "crawler",
		"themes", "mobile", "docs", "support",
	}
	projectSuffixes = []string{
		"app", "api", "service", "cli", "bot", "ui", "worker", "pipeline",
	}
	components = []string{
		"rate limiter", "retry queue", "session store", "login flow",
		"sync loop", "export job", "webhook fanout", "cache layer",
		"search ranking", "migration runner", "pagination cursor",
		"audit log", "presence tracker", "upload pipeline",
	}
	verbs = []string{
		"Refactor", "Stabilize", "Ship", "Instrument", "Backfill",
		"Harden", "Simplify", "Document", "Profile", "Migrate",
	}
	outcomes = []string{
		"timeouts stop paging on-call",
		"new tenants onboard without manual steps",
		"the dashboard loads in under a second",
		"retries stop duplicating writes",
		"stale results disappear from search",
		"deploys roll back cleanly",
		"the queue drains during peak hours",
	}
	taskStatuses = []string{"pending", "pending", "in-progress", "blocked", "done"}
	moods        = []string{"building", "planning", "stabilizing", "shipping"}
	blockers     = []string{
		"None right now.",
		"Waiting on a schema review.",
		"Staging credentials expired, renewal requested.",
		"Upstream API rate limits are undocumented.",
	}
)

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	root := *outputDir
	names := projectNames(rng, *numProjects)

	documents := 0
	for _, project := range names {
		n, err := generateProject(rng, root, project)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating project %s: %v\n", project, err)
			os.Exit(1)
		}
		documents += n
	}

	fmt.Printf("Generated %d documents across %d projects in %s\n", documents, len(names), root)
}

// projectNames builds unique stem-suffix names, numbering overflow.
func projectNames(rng *rand.Rand, n int) []string {
	used := map[string]bool{}
	names := make([]string, 0, n)
	for len(names) < n {
		name := fmt.Sprintf("%s-%s", pick(rng, projectStems), pick(rng, projectSuffixes))
		if used[name] {
			name = fmt.Sprintf("%s-%d", name, len(names))
		}
		used[name] = true
		names = append(names, name)
	}
	return names
}

func generateProject(rng *rand.Rand, root, project string) (int, error) {
	for _, folder := range []string{"plans", "tasks", "notes", "sessions"} {
		if err := os.MkdirAll(filepath.Join(root, project, folder), 0o755); err != nil {
			return 0, err
		}
	}

	documents := 0
	write := func(rel, content string) error {
		documents++
		return os.WriteFile(filepath.Join(root, project, rel), []byte(content), 0o644)
	}

	status := fmt.Sprintf(statusTemplate,
		project, pick(rng, moods),
		pick(rng, components), "The rest of the surface is holding steady.",
		pick(rng, verbs), pick(rng, components),
		pick(rng, verbs), pick(rng, components),
		pick(rng, blockers))
	if err := write("status.md", status); err != nil {
		return documents, err
	}

	plan := fmt.Sprintf(planTemplate,
		pick(rng, components), pick(rng, verbs), pick(rng, components), pick(rng, outcomes),
		pick(rng, components), pick(rng, verbs), pick(rng, components), pick(rng, outcomes),
		pick(rng, components))
	if err := write(filepath.Join("plans", "execution-plan.md"), plan); err != nil {
		return documents, err
	}

	for i := 1; i <= *numTasks; i++ {
		verb := pick(rng, verbs)
		component := pick(rng, components)
		content := fmt.Sprintf(taskTemplate,
			verb, component,
			pick(rng, taskStatuses),
			verb, component, pick(rng, outcomes),
			pick(rng, verbs), pick(rng, components),
			pick(rng, outcomes),
			"Check the session logs for earlier attempts.")
		name := fmt.Sprintf("%03d-%s.md", i, slug(verb+" "+component))
		if err := write(filepath.Join("tasks", name), content); err != nil {
			return documents, err
		}
	}

	for i := 0; i < *numNotes; i++ {
		component := pick(rng, components)
		content := fmt.Sprintf(noteTemplate,
			title(component), component,
			pick(rng, verbs), component, pick(rng, outcomes),
			pick(rng, verbs), pick(rng, components),
			pick(rng, outcomes))
		name := fmt.Sprintf("%s-%d.md", slug(component), i)
		if err := write(filepath.Join("notes", name), content); err != nil {
			return documents, err
		}
	}

	day := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	for i := 0; i < *numSessions; i++ {
		date := day.AddDate(0, 0, -i).Format("2006-01-02")
		content := fmt.Sprintf(sessionTemplate,
			date,
			pick(rng, verbs), pick(rng, components),
			pick(rng, components),
			pick(rng, verbs), pick(rng, components),
			strings.ToLower(pick(rng, verbs)), pick(rng, components),
			pick(rng, outcomes))
		if err := write(filepath.Join("sessions", date+".md"), content); err != nil {
			return documents, err
		}
	}

	return documents, nil
}

func pick(rng *rand.Rand, pool []string) string {
	return pool[rng.Intn(len(pool))]
}

func slug(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	return s
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
