// Package chunk splits document bodies into heading-scoped sections
// sized for full-text indexing.
package chunk

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxChunkChars caps a chunk's content length, measured in runes.
// Roughly 1500 tokens.
const MaxChunkChars = 6000

// priorityHeadings get boosted at search time. Matched case-insensitively
// against the hash-stripped, trimmed heading text.
var priorityHeadings = map[string]bool{
	"current status": true,
	"next":           true,
	"next steps":     true,
	"blockers":       true,
	"blocked by":     true,
	"decisions":      true,
}

// Regex patterns for markdown structure
var (
	// Matches level-1 and level-2 headings at line start.
	headingPattern = regexp.MustCompile(`(?m)^(#{1,2})\s+(.+)$`)

	// Blank-line paragraph separator.
	paragraphPattern = regexp.MustCompile(`\n\n+`)

	// Leading hashes of a heading line.
	hashPrefix = regexp.MustCompile(`^#+\s*`)
)

// Chunk is one indexable slice of a document body.
type Chunk struct {
	// Heading is the section's heading line including its hashes,
	// e.g. "## Next Steps". Empty for preamble text.
	Heading string

	// Level is the heading level (1 or 2), 0 for preamble.
	Level int

	// Content is the section text, whitespace-trimmed, without the
	// heading line.
	Content string

	// Order is the chunk's 0-based position within the document.
	Order int

	// CharOffset is the rune offset of the section's content in the body.
	// Sub-chunks of an oversized section repeat their section's offset.
	CharOffset int

	// Priority marks chunks under a priority heading.
	Priority bool
}

// Split divides a document body into ordered chunks. Every level-1 or
// level-2 heading starts a section, including headings with no content.
// Text before the first heading becomes a heading-less preamble section
// when non-empty; a body with no headings at all is a single preamble
// chunk, even when empty. Oversized sections are split by paragraphs,
// then lines, then a hard character cut; sub-chunks inherit the
// section's heading, level, and priority flag.
func Split(body string) []Chunk {
	sections := splitByHeadings(body)

	chunks := make([]Chunk, 0, len(sections))
	for _, sec := range sections {
		priority := isPriorityHeading(sec.heading)
		offset := utf8.RuneCountInString(body[:sec.offset])

		if utf8.RuneCountInString(sec.content) <= MaxChunkChars {
			chunks = append(chunks, Chunk{
				Heading:    sec.heading,
				Level:      sec.level,
				Content:    sec.content,
				Order:      len(chunks),
				CharOffset: offset,
				Priority:   priority,
			})
			continue
		}

		for _, sub := range splitByParagraphs(sec.content, MaxChunkChars) {
			chunks = append(chunks, Chunk{
				Heading:    sec.heading,
				Level:      sec.level,
				Content:    sub,
				Order:      len(chunks),
				CharOffset: offset,
				Priority:   priority,
			})
		}
	}
	return chunks
}

// section is an intermediate heading-delimited span of the body.
type section struct {
	heading string
	level   int
	content string
	offset  int // byte offset of the section content in body
}

// splitByHeadings carves the body at each level-1/2 heading. Section
// content runs from just past the heading line to the next heading.
func splitByHeadings(body string) []section {
	matches := headingPattern.FindAllStringSubmatchIndex(body, -1)
	if len(matches) == 0 {
		return []section{{content: strings.TrimSpace(body)}}
	}

	sections := make([]section, 0, len(matches)+1)
	if pre := strings.TrimSpace(body[:matches[0][0]]); pre != "" {
		sections = append(sections, section{content: pre})
	}

	for i, m := range matches {
		hashes := body[m[2]:m[3]]
		title := strings.TrimSpace(body[m[4]:m[5]])

		start := m[1] + 1 // past the heading line's newline
		if start > len(body) {
			start = len(body)
		}
		end := len(body)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		sections = append(sections, section{
			heading: hashes + " " + title,
			level:   len(hashes),
			content: strings.TrimSpace(body[start:end]),
			offset:  start,
		})
	}
	return sections
}

// splitByParagraphs packs blank-line-delimited paragraphs greedily into
// chunks of at most maxChars runes. Paragraphs that alone exceed the
// limit fall through to line splitting.
func splitByParagraphs(content string, maxChars int) []string {
	var out []string
	var cur []string
	curLen := 0

	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, "\n\n"))
			cur = nil
			curLen = 0
		}
	}

	for _, para := range paragraphPattern.Split(content, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		n := utf8.RuneCountInString(para)
		if n > maxChars {
			flush()
			out = append(out, splitByLines(para, maxChars)...)
			continue
		}
		joiner := 0
		if len(cur) > 0 {
			joiner = 2 // "\n\n"
		}
		if curLen+n+joiner > maxChars {
			flush()
			joiner = 0
		}
		cur = append(cur, para)
		curLen += n + joiner
	}
	flush()
	return out
}

// splitByLines packs lines greedily into chunks of at most maxChars
// runes. A single line longer than the limit is hard-cut into
// limit-sized pieces so no text is lost.
func splitByLines(content string, maxChars int) []string {
	var out []string
	var cur []string
	curLen := 0

	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, "\n"))
			cur = nil
			curLen = 0
		}
	}

	for _, line := range strings.Split(content, "\n") {
		n := utf8.RuneCountInString(line)
		if n > maxChars {
			flush()
			for n > maxChars {
				head, rest := cutRunes(line, maxChars)
				out = append(out, head)
				line = rest
				n -= maxChars
			}
			if line != "" {
				out = append(out, line)
			}
			continue
		}
		joiner := 0
		if len(cur) > 0 {
			joiner = 1 // "\n"
		}
		if curLen+n+joiner > maxChars {
			flush()
			joiner = 0
		}
		cur = append(cur, line)
		curLen += n + joiner
	}
	flush()
	return out
}

// cutRunes splits s after n runes.
func cutRunes(s string, n int) (string, string) {
	count := 0
	for i := range s {
		if count == n {
			return s[:i], s[i:]
		}
		count++
	}
	return s, ""
}

// isPriorityHeading reports whether the heading's text, hashes stripped
// and lowercased, is in the priority set.
func isPriorityHeading(heading string) bool {
	if heading == "" {
		return false
	}
	text := strings.ToLower(strings.TrimSpace(hashPrefix.ReplaceAllString(heading, "")))
	return priorityHeadings[text]
}
