package ui

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStatusInfo() StatusInfo {
	return StatusInfo{
		Root:         "/home/dev/vibe",
		Database:     "/home/dev/vibe/index.db",
		Projects:     3,
		Documents:    42,
		Chunks:       160,
		DatabaseSize: 2 * 1024 * 1024,
		LastReindex:  time.Now().Add(-5 * time.Minute),
		Webhooks:     2,
	}
}

func TestStatusRenderer_Render(t *testing.T) {
	// Given: a status snapshot
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	// When: rendering
	require.NoError(t, r.Render(testStatusInfo()))

	// Then: every stat appears
	output := buf.String()
	assert.Contains(t, output, "/home/dev/vibe")
	assert.Contains(t, output, "index.db")
	assert.Contains(t, output, "2.0 MB")
	assert.Contains(t, output, "Projects:  3")
	assert.Contains(t, output, "Documents: 42")
	assert.Contains(t, output, "Chunks:    160")
	assert.Contains(t, output, "Webhooks:  2")
	assert.Contains(t, output, "5 minutes ago")
}

func TestStatusRenderer_RenderOmitsEmptySections(t *testing.T) {
	// Given: a snapshot with no webhooks and no reindex yet
	info := testStatusInfo()
	info.Webhooks = 0
	info.LastReindex = time.Time{}

	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	// When: rendering
	require.NoError(t, r.Render(info))

	// Then: the optional lines are absent
	output := buf.String()
	assert.NotContains(t, output, "Webhooks")
	assert.NotContains(t, output, "Indexed:")
}

func TestStatusRenderer_RenderJSON(t *testing.T) {
	// Given: a status snapshot
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	// When: rendering JSON
	require.NoError(t, r.RenderJSON(testStatusInfo()))

	// Then: it round-trips with snake_case keys
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "/home/dev/vibe", decoded["root"])
	assert.Equal(t, float64(42), decoded["documents"])
	assert.Equal(t, float64(2*1024*1024), decoded["database_size"])
	assert.Contains(t, decoded, "last_reindex")
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{512, "512 B"},
		{1536, "1.5 KB"},
		{3 * 1024 * 1024, "3.0 MB"},
		{2 * 1024 * 1024 * 1024, "2.0 GB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.bytes))
	}
}

func TestFormatTime_RelativeRanges(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{name: "seconds ago", t: now.Add(-10 * time.Second), want: "just now"},
		{name: "one minute", t: now.Add(-90 * time.Second), want: "1 minute ago"},
		{name: "minutes", t: now.Add(-10 * time.Minute), want: "10 minutes ago"},
		{name: "one hour", t: now.Add(-90 * time.Minute), want: "1 hour ago"},
		{name: "days", t: now.Add(-49 * time.Hour), want: "2 days ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatTime(tt.t))
		})
	}
}

func TestFormatTime_AbsoluteBeyondAWeek(t *testing.T) {
	// Given: a timestamp older than a week
	old := time.Now().Add(-10 * 24 * time.Hour)

	// Then: the absolute date is used
	assert.Equal(t, old.Format("2006-01-02 15:04"), formatTime(old))
}
