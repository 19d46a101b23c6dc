package ui

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Snippet match markers produced by the search index.
const (
	matchStart = ">>>"
	matchEnd   = "<<<"
)

// maxSnippetWidth caps the snippet line in search output.
const maxSnippetWidth = 160

// SearchRow is one row of the search results table.
type SearchRow struct {
	Score   float64
	Path    string
	Heading string
	Snippet string
}

// SearchRenderer writes styled search results to a terminal.
type SearchRenderer struct {
	out     io.Writer
	styles  Styles
	noColor bool
}

// NewSearchRenderer creates a search results renderer.
func NewSearchRenderer(out io.Writer, noColor bool) *SearchRenderer {
	return &SearchRenderer{
		out:     out,
		styles:  GetStyles(noColor),
		noColor: noColor,
	}
}

// Render writes the result table. Each hit takes two lines: score,
// path, and heading on the first, the snippet indented below.
func (r *SearchRenderer) Render(query string, rows []SearchRow) error {
	if len(rows) == 0 {
		_, _ = fmt.Fprintf(r.out, "No results for %q\n", query)
		return nil
	}

	plural := "results"
	if len(rows) == 1 {
		plural = "result"
	}
	_, _ = fmt.Fprintf(r.out, "%s\n\n",
		r.styles.Header.Render(fmt.Sprintf("%d %s for %q", len(rows), plural, query)))

	for i, row := range rows {
		rank := r.styles.Dim.Render(fmt.Sprintf("%2d.", i+1))
		score := r.styles.Label.Render(fmt.Sprintf("%5.1f", row.Score))
		path := r.styles.Active.Render(row.Path)

		line := fmt.Sprintf("%s %s  %s", rank, score, path)
		if row.Heading != "" {
			line += "  " + r.styles.Dim.Render("› "+row.Heading)
		}
		_, _ = fmt.Fprintln(r.out, line)

		if snippet := r.formatSnippet(row.Snippet); snippet != "" {
			_, _ = fmt.Fprintf(r.out, "           %s\n", snippet)
		}
	}
	return nil
}

// formatSnippet collapses whitespace, truncates, and turns the match
// markers into highlighted text. Without color the markers stay, since
// they are the only thing pointing at the match.
func (r *SearchRenderer) formatSnippet(snippet string) string {
	s := strings.Join(strings.Fields(snippet), " ")
	if utf8.RuneCountInString(s) > maxSnippetWidth {
		runes := []rune(s)
		s = string(runes[:maxSnippetWidth]) + "..."
	}
	if r.noColor {
		return s
	}
	return r.highlight(s)
}

// highlight replaces >>>match<<< spans with styled text.
func (r *SearchRenderer) highlight(s string) string {
	var sb strings.Builder
	for {
		start := strings.Index(s, matchStart)
		if start < 0 {
			break
		}
		rest := s[start+len(matchStart):]
		end := strings.Index(rest, matchEnd)
		if end < 0 {
			break
		}
		sb.WriteString(r.styles.Dim.Render(s[:start]))
		sb.WriteString(r.styles.Match.Render(rest[:end]))
		s = rest[end+len(matchEnd):]
	}
	sb.WriteString(r.styles.Dim.Render(s))
	return sb.String()
}
