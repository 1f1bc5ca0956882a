package pipeline

import (
	"strings"

	"github.com/goa-design/agentswarm/domain"
)

// ReportParser extracts a domain.CompletionReport from an agent's free-form
// completion text when the agent did not invoke the native
// report_to_parent tool (spec.md §4.6). It is pluggable, mirroring the
// task-block parser's own pluggability requirement (spec.md §6).
type ReportParser interface {
	Parse(agentID, taskID, text string) (domain.CompletionReport, error)
}

// reportSummaryCap bounds the synthesized-failure summary (SPEC_FULL.md
// §12, "Report-parsing fallback").
const reportSummaryCap = 200

// failureMarkers and successMarkers are case-insensitively matched against
// the first non-empty line of an agent's free-form completion text.
var (
	failureMarkers = []string{"failed", "failure", "error", "needs fix", "needs_fix", "blocked"}
	successMarkers = []string{"done", "success", "completed", "approved", "ok"}
)

// modifiedFilesPrefix introduces the optional modified-files line the
// default parser recognizes.
const modifiedFilesPrefix = "modified files:"

// DefaultReportParser implements a small heuristic scanner: the first
// non-empty line decides success/failure by substring match against
// failureMarkers/successMarkers (failure checked first, since "needs fix"
// would otherwise also match a loose "success"-ish scan); a line starting
// with "Modified files:" (case-insensitive) supplies a comma-or-newline
// separated ModifiedFiles list; the remaining non-empty lines (up to
// three) become Summary.
type DefaultReportParser struct{}

// Parse implements ReportParser.
func (DefaultReportParser) Parse(agentID, taskID, text string) (domain.CompletionReport, error) {
	lines := nonEmptyLines(text)
	if len(lines) == 0 {
		return domain.CompletionReport{}, errEmptyReportText
	}

	report := domain.CompletionReport{ReportingAgentID: agentID, TaskID: taskID}
	var summaryLines []string
	for _, line := range lines {
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, modifiedFilesPrefix) {
			report.ModifiedFiles = splitFiles(line[len(modifiedFilesPrefix):])
			continue
		}
		if len(summaryLines) < 3 {
			summaryLines = append(summaryLines, line)
		}
	}

	first := strings.ToLower(lines[0])
	report.Success = matchesAny(first, successMarkers)
	if matchesAny(first, failureMarkers) {
		report.Success = false
	}
	report.Summary = strings.Join(summaryLines, " ")
	return report, nil
}

// errEmptyReportText signals that Parse had nothing to work with; the
// pipeline falls back to SynthesizeFailureReport in this case.
var errEmptyReportText = emptyReportError{}

type emptyReportError struct{}

func (emptyReportError) Error() string { return "pipeline: completion text is empty" }

func nonEmptyLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

func splitFiles(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' }) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func matchesAny(haystack string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(haystack, m) {
			return true
		}
	}
	return false
}

// SynthesizeFailureReport builds the fallback report used when the report
// parser itself fails to extract a CompletionReport (spec.md §9 Open
// Question / SPEC_FULL.md §12 "Report-parsing fallback"): success=false, a
// summary truncated to reportSummaryCap characters, and an empty
// ModifiedFiles list.
func SynthesizeFailureReport(agentID, taskID, text string) domain.CompletionReport {
	summary := strings.TrimSpace(text)
	if len(summary) > reportSummaryCap {
		summary = summary[:reportSummaryCap]
	}
	return domain.CompletionReport{
		ReportingAgentID: agentID,
		TaskID:           taskID,
		Summary:          summary,
		Success:          false,
	}
}
