// Package frontmatter parses the YAML metadata block of vibe documents
// and fills in what the author left out by inferring it from the
// document's location in the workspace.
package frontmatter

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Frontmatter is a document's resolved metadata. Empty string means the
// field is absent (stored as NULL); Tags is nil when absent.
type Frontmatter struct {
	Project string
	Type    string
	Status  string
	Updated string
	Tags    []string
	Owner   string
	Feature string
}

// folderTypes maps first-level folder names to document types.
var folderTypes = map[string]string{
	"tasks":      "task",
	"plans":      "plan",
	"sessions":   "session",
	"reports":    "report",
	"changelog":  "changelog",
	"references": "reference",
	"scratch":    "scratch",
	"assets":     "asset",
}

// statusLine matches an in-body status declaration near the top of a
// task document, e.g. "Status: in-progress".
var statusLine = regexp.MustCompile(`(?i)^status:\s*(\w[\w-]*)\s*$`)

// statusScanLines bounds how far into the body the status scan looks.
const statusScanLines = 10

// Parse extracts YAML frontmatter from content and infers absent fields
// from relPath (the document's root-relative path, e.g.
// "myproject/tasks/001-setup.md").
//
// Frontmatter is recognized only when the first line is exactly "---"
// and a later line closes the block the same way; the YAML between must
// decode to a mapping. Anything else, including leading blank lines,
// means no frontmatter. Malformed YAML is reported through warn and
// treated as absent rather than failing the document.
//
// body is the content after the closing delimiter with leading newlines
// stripped; bodyOffset is the byte position of body within content.
// Explicit frontmatter values always win over inference.
func Parse(content []byte, relPath string) (fm Frontmatter, body string, bodyOffset int, warn error) {
	text := strings.ToValidUTF8(string(content), "�")
	body = text

	if raw, rest, offset, ok, yamlErr := extract(text); yamlErr != nil {
		warn = fmt.Errorf("%s: invalid frontmatter: %w", relPath, yamlErr)
	} else if ok {
		fm = fromMapping(raw)
		body = rest
		bodyOffset = offset
	}

	infer(&fm, relPath, body)
	return fm, body, bodyOffset, warn
}

// extract finds the frontmatter block. ok reports whether a well-formed
// block was found; yamlErr is set when delimiters were present but the
// YAML between them did not decode to a mapping.
func extract(text string) (raw map[string]any, body string, bodyOffset int, ok bool, yamlErr error) {
	first, restOffset := splitLine(text, 0)
	if trimCR(first) != "---" {
		return nil, "", 0, false, nil
	}

	yamlStart := restOffset
	offset := restOffset
	for offset <= len(text) {
		line, next := splitLine(text, offset)
		if trimCR(line) == "---" {
			var decoded any
			if err := yaml.Unmarshal([]byte(text[yamlStart:offset]), &decoded); err != nil {
				return nil, "", 0, false, err
			}
			if decoded == nil {
				// An empty block is not frontmatter; no warning needed.
				return nil, "", 0, false, nil
			}
			mapping, isMap := decoded.(map[string]any)
			if !isMap {
				return nil, "", 0, false, fmt.Errorf("frontmatter is not a mapping")
			}
			bodyOffset = next
			for bodyOffset < len(text) && text[bodyOffset] == '\n' {
				bodyOffset++
			}
			return mapping, text[bodyOffset:], bodyOffset, true, nil
		}
		if next == offset {
			break
		}
		offset = next
	}

	// No closing delimiter; the whole file is body.
	return nil, "", 0, false, nil
}

// splitLine returns the line starting at offset (without its newline)
// and the offset of the following line.
func splitLine(text string, offset int) (string, int) {
	if offset >= len(text) {
		return "", offset
	}
	if i := strings.IndexByte(text[offset:], '\n'); i >= 0 {
		return text[offset : offset+i], offset + i + 1
	}
	return text[offset:], len(text)
}

func trimCR(line string) string {
	return strings.TrimSuffix(line, "\r")
}

// fromMapping reads the recognized fields out of the decoded YAML.
// Unknown keys are ignored. Scalars of any YAML type are stringified
// (an unquoted date stays "2026-01-15"); tags are lowercased.
func fromMapping(raw map[string]any) Frontmatter {
	var fm Frontmatter
	fm.Project = scalar(raw["project"])
	fm.Type = scalar(raw["type"])
	fm.Status = scalar(raw["status"])
	fm.Updated = scalar(raw["updated"])
	fm.Owner = scalar(raw["owner"])
	fm.Feature = scalar(raw["feature"])

	if tags, isList := raw["tags"].([]any); isList {
		fm.Tags = make([]string, 0, len(tags))
		for _, t := range tags {
			fm.Tags = append(fm.Tags, strings.ToLower(scalar(t)))
		}
	}
	return fm
}

func scalar(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// infer fills absent fields from the document's path and body.
func infer(fm *Frontmatter, relPath, body string) {
	parts := strings.Split(relPath, "/")
	if len(parts) >= 2 {
		if fm.Project == "" {
			fm.Project = parts[0]
		}
		second := parts[1]
		if fm.Type == "" {
			if strings.HasSuffix(second, ".md") {
				// A file directly in the project root; only the status
				// document has a well-known type.
				if second == "status.md" {
					fm.Type = "status"
				}
			} else if t, known := folderTypes[second]; known {
				fm.Type = t
			}
		}
	}

	if fm.Type == "task" && fm.Status == "" {
		fm.Status = scanBodyStatus(body)
	}
}

// scanBodyStatus looks for a "Status: <value>" line within the first
// few non-blank lines of a task body. The captured value is lowercased.
func scanBodyStatus(body string) string {
	seen := 0
	for _, line := range strings.Split(body, "\n") {
		line = trimCR(line)
		if strings.TrimSpace(line) == "" {
			continue
		}
		if m := statusLine.FindStringSubmatch(line); m != nil {
			return strings.ToLower(m[1])
		}
		seen++
		if seen >= statusScanLines {
			break
		}
	}
	return ""
}
