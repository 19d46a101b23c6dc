package frontmatter

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FullFrontmatter(t *testing.T) {
	// Given a document with every recognized field
	content := `---
project: myapp
type: task
status: in-progress
updated: 2026-01-15
tags: [Backend, API]
owner: sam
feature: auth
---

# Task: Wire up login

## Objective
Ship it.
`

	// When parsed
	fm, body, offset, warn := Parse([]byte(content), "myapp/tasks/001-login.md")

	// Then fields come from the frontmatter, tags lowercased
	require.NoError(t, warn)
	assert.Equal(t, "myapp", fm.Project)
	assert.Equal(t, "task", fm.Type)
	assert.Equal(t, "in-progress", fm.Status)
	assert.Equal(t, "2026-01-15", fm.Updated)
	assert.Equal(t, []string{"backend", "api"}, fm.Tags)
	assert.Equal(t, "sam", fm.Owner)
	assert.Equal(t, "auth", fm.Feature)

	// And the body starts at the first heading
	assert.True(t, strings.HasPrefix(body, "# Task: Wire up login"))
	assert.Equal(t, body, content[offset:])
}

func TestParse_NoFrontmatter(t *testing.T) {
	content := "# Roadmap\n\nQ3 goals.\n"

	fm, body, offset, warn := Parse([]byte(content), "myapp/plans/roadmap.md")

	require.NoError(t, warn)
	assert.Equal(t, content, body)
	assert.Equal(t, 0, offset)
	// Inference still applies.
	assert.Equal(t, "myapp", fm.Project)
	assert.Equal(t, "plan", fm.Type)
}

func TestParse_LeadingBlankLineMeansNoFrontmatter(t *testing.T) {
	content := "\n---\ntype: plan\n---\nBody\n"

	fm, body, _, warn := Parse([]byte(content), "myapp/plans/roadmap.md")

	require.NoError(t, warn)
	assert.Equal(t, content, body)
	assert.Equal(t, "plan", fm.Type, "type still inferred from the folder")
}

func TestParse_NoClosingDelimiter(t *testing.T) {
	content := "---\ntype: plan\n# Not closed\n"

	_, body, offset, warn := Parse([]byte(content), "myapp/plans/roadmap.md")

	require.NoError(t, warn)
	assert.Equal(t, content, body)
	assert.Equal(t, 0, offset)
}

func TestParse_MalformedYAMLWarnsAndInfers(t *testing.T) {
	content := "---\ntype: [unclosed\n---\n# Body\n"

	fm, body, _, warn := Parse([]byte(content), "myapp/tasks/001-x.md")

	require.Error(t, warn)
	assert.Contains(t, warn.Error(), "myapp/tasks/001-x.md")
	assert.Equal(t, content, body, "whole file becomes the body")
	assert.Equal(t, "task", fm.Type, "inference replaces the bad frontmatter")
}

func TestParse_NonMappingYAMLWarns(t *testing.T) {
	content := "---\n- one\n- two\n---\n# Body\n"

	fm, body, _, warn := Parse([]byte(content), "myapp/scratch/notes.md")

	require.Error(t, warn)
	assert.Equal(t, content, body)
	assert.Equal(t, "scratch", fm.Type)
}

func TestParse_EmptyBlockIsQuietlyAbsent(t *testing.T) {
	content := "---\n---\n# Body\n"

	_, body, _, warn := Parse([]byte(content), "myapp/scratch/notes.md")

	require.NoError(t, warn)
	assert.Equal(t, content, body)
}

func TestParse_UpdatedScalarIsStringified(t *testing.T) {
	tests := []struct {
		name    string
		updated string
		want    string
	}{
		{name: "iso date", updated: "updated: 2026-01-15", want: "2026-01-15"},
		{name: "quoted", updated: `updated: "2026-01-15"`, want: "2026-01-15"},
		{name: "integer", updated: "updated: 20260115", want: "20260115"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := "---\n" + tt.updated + "\n---\nBody\n"
			fm, _, _, warn := Parse([]byte(content), "myapp/plans/p.md")
			require.NoError(t, warn)
			assert.Equal(t, tt.want, fm.Updated)
		})
	}
}

func TestParse_TypeInferenceFromFolder(t *testing.T) {
	tests := []struct {
		relPath  string
		wantType string
	}{
		{relPath: "myapp/tasks/001-x.md", wantType: "task"},
		{relPath: "myapp/plans/roadmap.md", wantType: "plan"},
		{relPath: "myapp/sessions/2026-01-15.md", wantType: "session"},
		{relPath: "myapp/reports/weekly.md", wantType: "report"},
		{relPath: "myapp/changelog/v1.md", wantType: "changelog"},
		{relPath: "myapp/references/api.md", wantType: "reference"},
		{relPath: "myapp/scratch/ideas.md", wantType: "scratch"},
		{relPath: "myapp/assets/inventory.md", wantType: "asset"},
		{relPath: "myapp/status.md", wantType: "status"},
		{relPath: "myapp/notes.md", wantType: ""},
		{relPath: "myapp/unknown-folder/doc.md", wantType: ""},
	}

	for _, tt := range tests {
		t.Run(tt.relPath, func(t *testing.T) {
			fm, _, _, warn := Parse([]byte("# Doc\n"), tt.relPath)
			require.NoError(t, warn)
			assert.Equal(t, tt.wantType, fm.Type)
			assert.Equal(t, "myapp", fm.Project)
		})
	}
}

func TestParse_ExplicitFieldsWinOverInference(t *testing.T) {
	content := "---\nproject: other\ntype: reference\nstatus: done\n---\nStatus: pending\n"

	fm, _, _, warn := Parse([]byte(content), "myapp/tasks/001-x.md")

	require.NoError(t, warn)
	assert.Equal(t, "other", fm.Project)
	assert.Equal(t, "reference", fm.Type)
	assert.Equal(t, "done", fm.Status, "frontmatter status beats the body line")
}

func TestParse_TaskStatusFromBody(t *testing.T) {
	t.Run("found in early lines", func(t *testing.T) {
		content := "# Task: Fix bug\n\nStatus: In-Progress\n\n## Objective\n"
		fm, _, _, _ := Parse([]byte(content), "myapp/tasks/002-fix.md")
		assert.Equal(t, "in-progress", fm.Status, "captured value is lowercased")
	})

	t.Run("no space after colon", func(t *testing.T) {
		content := "# Task\nstatus:blocked\n"
		fm, _, _, _ := Parse([]byte(content), "myapp/tasks/002-fix.md")
		assert.Equal(t, "blocked", fm.Status)
	})

	t.Run("trailing text disqualifies the line", func(t *testing.T) {
		content := "# Task\nStatus: done and dusted\n"
		fm, _, _, _ := Parse([]byte(content), "myapp/tasks/002-fix.md")
		assert.Equal(t, "", fm.Status)
	})

	t.Run("only scans the first ten non-blank lines", func(t *testing.T) {
		var b strings.Builder
		b.WriteString("# Task\n")
		for i := 0; i < 10; i++ {
			b.WriteString("filler line\n\n")
		}
		b.WriteString("Status: pending\n")
		fm, _, _, _ := Parse([]byte(b.String()), "myapp/tasks/003-x.md")
		assert.Equal(t, "", fm.Status)
	})

	t.Run("non-task documents are not scanned", func(t *testing.T) {
		content := "# Plan\nStatus: pending\n"
		fm, _, _, _ := Parse([]byte(content), "myapp/plans/p.md")
		assert.Equal(t, "", fm.Status)
	})
}

func TestParse_CRLFDelimiters(t *testing.T) {
	content := "---\r\ntype: plan\r\n---\r\nBody here\r\n"

	fm, body, _, warn := Parse([]byte(content), "myapp/plans/p.md")

	require.NoError(t, warn)
	assert.Equal(t, "plan", fm.Type)
	assert.Equal(t, "Body here\r\n", body)
}

func TestParse_BodyOffsetSkipsBlankLines(t *testing.T) {
	content := "---\ntype: plan\n---\n\n\n# Plan\n"

	_, body, offset, warn := Parse([]byte(content), "myapp/plans/p.md")

	require.NoError(t, warn)
	assert.Equal(t, "# Plan\n", body)
	assert.Equal(t, body, content[offset:])
}

func TestParse_InvalidUTF8IsReplaced(t *testing.T) {
	content := append([]byte("# Notes\n\nbad: "), 0xff, 0xfe, '\n')

	_, body, _, warn := Parse(content, "myapp/scratch/notes.md")

	require.NoError(t, warn)
	assert.Contains(t, body, "�")
}

func TestParse_UnknownFieldsIgnored(t *testing.T) {
	content := "---\ntype: plan\npriority: high\nwhatever: [1, 2]\n---\nBody\n"

	fm, _, _, warn := Parse([]byte(content), "myapp/plans/p.md")

	require.NoError(t, warn)
	assert.Equal(t, "plan", fm.Type)
}

func TestParse_RenderedFieldsRoundTrip(t *testing.T) {
	// Given a parsed document with explicit frontmatter
	content := "---\nproject: relay\ntype: task\nstatus: blocked\nupdated: 2026-02-01\ntags: [infra, ops]\nowner: kim\nfeature: presence\n---\n\nBody text.\n"
	first, _, _, warn := Parse([]byte(content), "relay/tasks/004-x.md")
	require.NoError(t, warn)

	// When the same fields are rendered back into a document and parsed again
	rendered := fmt.Sprintf(
		"---\nproject: %s\ntype: %s\nstatus: %s\nupdated: %s\ntags: [%s]\nowner: %s\nfeature: %s\n---\n\nBody text.\n",
		first.Project, first.Type, first.Status, first.Updated,
		strings.Join(first.Tags, ", "), first.Owner, first.Feature)
	second, body, _, warn := Parse([]byte(rendered), "relay/tasks/004-x.md")

	// Then the records match
	require.NoError(t, warn)
	assert.Equal(t, first, second)
	assert.Equal(t, "Body text.\n", body)
}
