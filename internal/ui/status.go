package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo is the index health snapshot shown by the status command.
type StatusInfo struct {
	Root         string    `json:"root"`
	Database     string    `json:"database"`
	Projects     int64     `json:"projects"`
	Documents    int64     `json:"documents"`
	Chunks       int64     `json:"chunks"`
	DatabaseSize int64     `json:"database_size"`
	LastReindex  time.Time `json:"last_reindex"`
	Webhooks     int       `json:"webhooks"`
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render writes the status as a human-readable block.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("vibemcp index status"))

	_, _ = fmt.Fprintf(r.out, "  Root:     %s\n", info.Root)
	_, _ = fmt.Fprintf(r.out, "  Database: %s (%s)\n", info.Database, FormatBytes(info.DatabaseSize))
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintf(r.out, "  Projects:  %d\n", info.Projects)
	_, _ = fmt.Fprintf(r.out, "  Documents: %d\n", info.Documents)
	_, _ = fmt.Fprintf(r.out, "  Chunks:    %d\n", info.Chunks)
	if info.Webhooks > 0 {
		_, _ = fmt.Fprintf(r.out, "  Webhooks:  %d\n", info.Webhooks)
	}
	if !info.LastReindex.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Indexed:   %s\n", formatTime(info.LastReindex))
	}
	return nil
}

// RenderJSON writes the status as indented JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// formatTime renders a timestamp relative to now for recent times and
// absolute beyond a week.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes renders a byte count in human units.
func FormatBytes(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)

	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
