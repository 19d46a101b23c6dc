// Package ignore applies gitignore-style exclusion rules to workspace
// paths. Workspaces kept under version control often carry .gitignore
// files; the indexer honors them so generated or vendored markdown
// never reaches the index.
package ignore

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"
)

// Matcher evaluates gitignore-style rules against slash-separated
// paths relative to the workspace root. Build it fully before matching;
// it is safe for concurrent reads but not concurrent mutation.
type Matcher struct {
	rules []rule
}

type rule struct {
	regex    *regexp.Regexp
	base     string // rule applies only under this directory
	negation bool   // pattern started with !
	dirOnly  bool   // pattern ended with /
	anchored bool   // pattern is relative to the base, not any depth
}

// New returns a Matcher with no rules. A rule-less Matcher ignores
// nothing.
func New() *Matcher {
	return &Matcher{}
}

// Empty reports whether the matcher holds no rules.
func (m *Matcher) Empty() bool {
	return len(m.rules) == 0
}

// AddPattern adds one gitignore pattern that applies to the whole tree.
func (m *Matcher) AddPattern(pattern string) {
	m.AddPatternAt(pattern, "")
}

// AddPatternAt adds a pattern that only applies to paths under base,
// the way a nested .gitignore only governs its own directory.
func (m *Matcher) AddPatternAt(pattern, base string) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return
	}

	r := rule{base: strings.Trim(base, "/")}

	switch {
	case strings.HasPrefix(pattern, `\#`), strings.HasPrefix(pattern, `\!`):
		pattern = pattern[1:]
	case strings.HasPrefix(pattern, "!"):
		r.negation = true
		pattern = pattern[1:]
	}

	if strings.HasSuffix(pattern, "/") {
		r.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		r.anchored = true
		pattern = strings.TrimPrefix(pattern, "/")
	}
	// A separator anywhere in the pattern anchors it: "docs/tmp" means
	// the tmp under docs, not any tmp at any depth.
	if strings.Contains(pattern, "/") && !strings.HasPrefix(pattern, "**/") {
		r.anchored = true
	}
	if pattern == "" {
		return
	}

	re, err := regexp.Compile("^" + globToRegex(pattern) + "$")
	if err != nil {
		return
	}
	r.regex = re
	m.rules = append(m.rules, r)
}

// LoadFile reads patterns from a gitignore file, scoping them to base.
// A missing file adds nothing and is not an error.
func (m *Matcher) LoadFile(filePath, base string) error {
	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open ignore file: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m.AddPatternAt(scanner.Text(), base)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read ignore file: %w", err)
	}
	return nil
}

// Ignored reports whether relPath should be excluded. Rules are applied
// in order; the last matching rule wins, so a later negation can
// re-include a path an earlier rule excluded.
func (m *Matcher) Ignored(relPath string, isDir bool) bool {
	relPath = strings.Trim(path.Clean(relPath), "/")
	if relPath == "." || relPath == "" {
		return false
	}

	ignored := false
	for _, r := range m.rules {
		if r.matches(relPath, isDir) {
			ignored = !r.negation
		}
	}
	return ignored
}

// matches evaluates one rule against a slash-separated relative path.
func (r rule) matches(relPath string, isDir bool) bool {
	if r.base != "" {
		if !strings.HasPrefix(relPath, r.base+"/") {
			return false
		}
		relPath = strings.TrimPrefix(relPath, r.base+"/")
	}

	parts := strings.Split(relPath, "/")

	if r.anchored {
		if r.regex.MatchString(relPath) {
			return !r.dirOnly || isDir
		}
		// A dir-only rule also claims everything beneath the directory
		// it names.
		if r.dirOnly {
			for i := 1; i < len(parts); i++ {
				if r.regex.MatchString(strings.Join(parts[:i], "/")) {
					return true
				}
			}
		}
		return false
	}

	if r.dirOnly {
		for i, part := range parts {
			if r.regex.MatchString(part) {
				if i == len(parts)-1 {
					return isDir
				}
				return true
			}
		}
		return false
	}

	// Unanchored patterns match the basename, the full path, or any
	// single component along it.
	if r.regex.MatchString(parts[len(parts)-1]) || r.regex.MatchString(relPath) {
		return true
	}
	for _, part := range parts[:len(parts)-1] {
		if r.regex.MatchString(part) {
			return true
		}
	}
	return false
}

// globToRegex translates one gitignore glob into a regular expression
// body. * stops at separators, ** crosses them, ? is any single
// non-separator character, and character classes pass through.
func globToRegex(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); {
		c := pattern[i]
		switch c {
		case '*':
			if strings.HasPrefix(pattern[i:], "**/") {
				b.WriteString("(?:.*/)?")
				i += 3
				continue
			}
			if strings.HasPrefix(pattern[i:], "**") {
				b.WriteString(".*")
				i += 2
				continue
			}
			b.WriteString("[^/]*")
			i++
		case '?':
			b.WriteString("[^/]")
			i++
		case '[':
			if j := strings.IndexByte(pattern[i:], ']'); j > 0 {
				b.WriteString(pattern[i : i+j+1])
				i += j + 1
				continue
			}
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		case '\\':
			if i+1 < len(pattern) {
				b.WriteString(regexp.QuoteMeta(string(pattern[i+1])))
				i += 2
				continue
			}
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	return b.String()
}
