// Package taskparser extracts structured task blocks from a planner's
// free-form text output (spec.md §6). The canonical grammar is delimited
// `@@@task ... @@@` blocks with Markdown-like headed sections; parsing is
// pluggable behind the Parser interface so a planner's own output format
// can be matched with a different implementation.
package taskparser

import (
	"fmt"
	"strings"
)

// ParsedTask is one task block extracted from planner text, before DAG
// validation or store insertion. Dependencies holds the titles of other
// tasks in the same text, as written by the planner; Register resolves
// these to store-minted ids after insertion order is known.
type ParsedTask struct {
	Title             string
	Objective         string
	Scope             []string
	DefinitionOfDone  []string
	VerificationHints []string
	Dependencies      []string // titles of previously defined tasks
}

// Parser extracts ParsedTask values from raw planner text. Implementations
// must be pluggable (spec.md §6: "The canonical parser must be
// pluggable.").
type Parser interface {
	Parse(text string) ([]ParsedTask, error)
}

// DefaultParser implements the canonical `@@@task ... @@@` grammar: a
// delimited block containing `# <title>`, `## Objective`, `## Scope`,
// `## Definition of Done`, `## Verification`, and optionally
// `## Dependencies` (comma/newline separated previously defined task
// titles).
type DefaultParser struct{}

const (
	blockOpen  = "@@@task"
	blockClose = "@@@"
)

// sectionKind identifies one of the recognised headed sections within a
// task block.
type sectionKind int

const (
	sectionNone sectionKind = iota
	sectionObjective
	sectionScope
	sectionDefinitionOfDone
	sectionVerification
	sectionDependencies
)

// Parse implements Parser.
func (DefaultParser) Parse(text string) ([]ParsedTask, error) {
	var tasks []ParsedTask
	seenTitles := make(map[string]bool)

	for _, block := range extractBlocks(text) {
		t, err := parseBlock(block)
		if err != nil {
			return nil, err
		}
		if t.Title == "" {
			return nil, fmt.Errorf("taskparser: block missing title")
		}
		for _, dep := range t.Dependencies {
			if !seenTitles[dep] {
				return nil, fmt.Errorf("taskparser: task %q depends on unknown or not-yet-defined task %q", t.Title, dep)
			}
		}
		seenTitles[t.Title] = true
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// extractBlocks returns the raw body of every @@@task ... @@@ delimited
// block, in order of appearance.
func extractBlocks(text string) []string {
	var blocks []string
	rest := text
	for {
		start := strings.Index(rest, blockOpen)
		if start < 0 {
			break
		}
		afterOpen := rest[start+len(blockOpen):]
		end := strings.Index(afterOpen, blockClose)
		if end < 0 {
			break
		}
		blocks = append(blocks, afterOpen[:end])
		rest = afterOpen[end+len(blockClose):]
	}
	return blocks
}

// parseBlock parses one task block's body into a ParsedTask.
func parseBlock(body string) (ParsedTask, error) {
	var t ParsedTask
	section := sectionNone
	var buf []string

	flush := func() {
		items := splitListItems(buf)
		switch section {
		case sectionScope:
			t.Scope = items
		case sectionDefinitionOfDone:
			t.DefinitionOfDone = items
		case sectionVerification:
			t.VerificationHints = items
		case sectionDependencies:
			t.Dependencies = splitDependencies(buf)
		case sectionObjective:
			t.Objective = strings.TrimSpace(strings.Join(buf, "\n"))
		}
		buf = nil
	}

	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "## "):
			flush()
			section = sectionFor(strings.TrimSpace(strings.TrimPrefix(trimmed, "## ")))
		case strings.HasPrefix(trimmed, "# "):
			flush()
			t.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
			section = sectionNone
		case trimmed == "":
			// blank lines separate items within a section but are not
			// themselves content.
		default:
			buf = append(buf, trimmed)
		}
	}
	flush()
	return t, nil
}

func sectionFor(heading string) sectionKind {
	switch strings.ToLower(heading) {
	case "objective":
		return sectionObjective
	case "scope":
		return sectionScope
	case "definition of done":
		return sectionDefinitionOfDone
	case "verification":
		return sectionVerification
	case "dependencies":
		return sectionDependencies
	default:
		return sectionNone
	}
}

// splitListItems strips a leading "- " or "* " bullet marker from each
// buffered line, if present, otherwise keeps the line as-is.
func splitListItems(lines []string) []string {
	if len(lines) == 0 {
		return nil
	}
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimPrefix(l, "- ")
		l = strings.TrimPrefix(l, "* ")
		out = append(out, strings.TrimSpace(l))
	}
	return out
}

// splitDependencies parses the Dependencies section body as a
// comma-and/or-newline separated list of task titles (spec.md §6).
func splitDependencies(lines []string) []string {
	var out []string
	for _, l := range lines {
		l = strings.TrimPrefix(l, "- ")
		l = strings.TrimPrefix(l, "* ")
		for _, part := range strings.Split(l, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
