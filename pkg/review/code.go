package review

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"
)

// hunkHeader captures the new-file starting line of a diff hunk.
var hunkHeader = regexp.MustCompile(`@@ -\d+(?:,\d+)? \+(\d+)`)

// lineCommenters maps file extensions to single-line comment prefixes
// used to annotate line numbers in the LLM's view of the code.
var lineCommenters = map[string]string{
	".go":   "//",
	".ts":   "//",
	".tsx":  "//",
	".js":   "//",
	".jsx":  "//",
	".java": "//",
	".c":    "//",
	".h":    "//",
	".cpp":  "//",
	".cs":   "//",
	".rs":   "//",
	".py":   "#",
	".rb":   "#",
	".sh":   "#",
	".yaml": "#",
	".yml":  "#",
	".tf":   "#",
	".sql":  "--",
	".lua":  "--",
}

// preparedCode is the two parallel renderings of a diff's kept lines.
// WithLines is what the LLM reviews; WithoutLines is what
// fingerprinting hashes, so line shifts do not bust the cache.
type preparedCode struct {
	WithLines    string
	WithoutLines string
	// LineNumbers are the new-file line numbers present in the kept
	// code, ascending. Used to validate line references in violations.
	LineNumbers []int
}

// prepareCodeForReview walks the unified diff, drops removed lines,
// and renders the kept lines with and without line-number annotations.
// An unparseable hunk header fails the whole unit.
func prepareCodeForReview(patch, newPath string) (*preparedCode, error) {
	commenter := lineCommenters[strings.ToLower(filepath.Ext(newPath))]

	var withLines, withoutLines strings.Builder
	var lineNumbers []int
	line := 0
	inHunk := false

	for _, raw := range strings.Split(patch, "\n") {
		switch {
		case strings.HasPrefix(raw, "@@"):
			m := hunkHeader.FindStringSubmatch(raw)
			if m == nil {
				return nil, fmt.Errorf("unparseable hunk header %q in %s", raw, newPath)
			}
			fmt.Sscanf(m[1], "%d", &line)
			inHunk = true
		case !inHunk:
			// Preamble before the first hunk.
		case strings.HasPrefix(raw, "-"):
			// Removed line: not part of the new file.
		case strings.HasPrefix(raw, "\\"):
			// "\ No newline at end of file" marker.
		case raw == "":
			// Trailing split artifact; real empty context lines carry a
			// leading space.
		default:
			content := raw
			if strings.HasPrefix(raw, "+") || strings.HasPrefix(raw, " ") {
				content = raw[1:]
			}
			if commenter != "" {
				fmt.Fprintf(&withLines, "%s line %d\n", commenter, line)
			}
			withLines.WriteString(content)
			withLines.WriteString("\n")
			withoutLines.WriteString(content)
			withoutLines.WriteString("\n")
			lineNumbers = append(lineNumbers, line)
			line++
		}
	}

	if len(lineNumbers) == 0 {
		return nil, fmt.Errorf("no reviewable lines in %s", newPath)
	}
	return &preparedCode{
		WithLines:    withLines.String(),
		WithoutLines: withoutLines.String(),
		LineNumbers:  lineNumbers,
	}, nil
}

// nearestLine maps a line reference from the LLM onto an actual code
// line. When the reference does not name a kept line (the model may
// point at an injected annotation), the next kept line is chosen.
// Returns whether an adjustment happened.
func (p *preparedCode) nearestLine(n int) (int, bool) {
	if slices.Contains(p.LineNumbers, n) {
		return n, false
	}
	idx := sort.SearchInts(p.LineNumbers, n)
	if idx >= len(p.LineNumbers) {
		return p.LineNumbers[len(p.LineNumbers)-1], true
	}
	return p.LineNumbers[idx], true
}

// contextAround returns the LLM-view lines within distance of the
// given line reference, used for the violation's context hash.
func (p *preparedCode) contextAround(n, distance int) string {
	lines := strings.Split(strings.TrimRight(p.WithLines, "\n"), "\n")
	// Locate the annotated position of n in the LLM view; fall back to
	// a proportional guess when annotations are absent.
	target := -1
	for i, l := range lines {
		if strings.HasSuffix(l, fmt.Sprintf(" line %d", n)) {
			target = i
			break
		}
	}
	if target < 0 {
		idx := sort.SearchInts(p.LineNumbers, n)
		if idx >= len(p.LineNumbers) {
			idx = len(p.LineNumbers) - 1
		}
		target = idx
	}

	lo := max(0, target-distance)
	hi := min(len(lines), target+distance+1)
	return strings.Join(lines[lo:hi], "\n")
}
