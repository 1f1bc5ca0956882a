// Package classify implements the error classifier from spec.md §4.4: it
// maps an arbitrary error into one of a fixed, ordered set of categories by
// case-insensitive substring match, each carrying a severity and a
// recoverable flag.
package classify

import (
	"strings"

	"github.com/goa-design/agentswarm/internal/agenterr"
)

// pattern pairs a substring to match (case-insensitively, against the full
// error chain's combined message) with the category it implies. Order is
// significant: spec.md §4.4 requires "Network before Timeout, RateLimit
// before Provider, etc." — the classifier stops at the first match.
type pattern struct {
	substr   string
	category agenterr.Category
}

// orderedPatterns is deliberately ordered per spec.md §4.4. Network is
// checked before the more generic Timeout; RateLimit (a specific kind of
// provider failure) is checked before the generic Provider category.
var orderedPatterns = []pattern{
	{"connection refused", agenterr.CategoryNetwork},
	{"connection reset", agenterr.CategoryNetwork},
	{"no such host", agenterr.CategoryNetwork},
	{"network", agenterr.CategoryNetwork},
	{"dns", agenterr.CategoryNetwork},
	{"deadline exceeded", agenterr.CategoryTimeout},
	{"timed out", agenterr.CategoryTimeout},
	{"timeout", agenterr.CategoryTimeout},
	{"429", agenterr.CategoryRateLimit},
	{"rate limit", agenterr.CategoryRateLimit},
	{"too many requests", agenterr.CategoryRateLimit},
	{"provider", agenterr.CategoryProvider},
	{"503", agenterr.CategoryProvider},
	{"502", agenterr.CategoryProvider},
	{"bad gateway", agenterr.CategoryProvider},
	{"upstream", agenterr.CategoryProvider},
	{"stream", agenterr.CategoryStreaming},
	{"sse", agenterr.CategoryStreaming},
	{"chunk", agenterr.CategoryStreaming},
	{"session", agenterr.CategorySession},
	{"conversation not found", agenterr.CategorySession},
	{"process exited", agenterr.CategoryProcess},
	{"process", agenterr.CategoryProcess},
	{"exit status", agenterr.CategoryProcess},
	{"pipe", agenterr.CategoryProcess},
	{"config", agenterr.CategoryConfiguration},
	{"invalid argument", agenterr.CategoryConfiguration},
	{"out of memory", agenterr.CategoryMemory},
	{"oom", agenterr.CategoryMemory},
	{"memory", agenterr.CategoryMemory},
	{"permission denied", agenterr.CategoryPermission},
	{"forbidden", agenterr.CategoryPermission},
	{"unauthorized", agenterr.CategoryPermission},
}

// severities maps every category to a fixed severity and recoverable flag
// per spec.md §4.4.
var severities = map[agenterr.Category]struct {
	severity    agenterr.Severity
	recoverable bool
}{
	agenterr.CategoryNetwork:       {agenterr.SeverityMedium, true},
	agenterr.CategoryTimeout:       {agenterr.SeverityMedium, true},
	agenterr.CategoryProvider:      {agenterr.SeverityHigh, true},
	agenterr.CategoryRateLimit:     {agenterr.SeverityMedium, true},
	agenterr.CategoryStreaming:     {agenterr.SeverityLow, true},
	agenterr.CategorySession:       {agenterr.SeverityMedium, true},
	agenterr.CategoryProcess:       {agenterr.SeverityHigh, true},
	agenterr.CategoryConfiguration: {agenterr.SeverityCritical, false},
	agenterr.CategoryMemory:        {agenterr.SeverityCritical, false},
	agenterr.CategoryPermission:    {agenterr.SeverityCritical, false},
	agenterr.CategoryUnknown:       {agenterr.SeverityLow, true},
}

// Classify maps err into an *agenterr.AgentError carrying the matched
// category, its fixed severity, and its recoverable flag. A nil err
// classifies as nil. Cancellation errors are never reclassified: they pass
// through agenterr.IsCancellation checks upstream and must not be retried.
//
// Classification already carrying category/severity information (an
// *agenterr.AgentError passed back through a decorator stack) is returned
// unchanged so repeated classification is idempotent.
func Classify(err error) *agenterr.AgentError {
	if err == nil {
		return nil
	}
	var existing *agenterr.AgentError
	if ae, ok := err.(*agenterr.AgentError); ok {
		existing = ae
	}
	if existing != nil && existing.Category != "" {
		return existing
	}

	msg := strings.ToLower(err.Error())
	category := agenterr.CategoryUnknown
	for _, p := range orderedPatterns {
		if strings.Contains(msg, p.substr) {
			category = p.category
			break
		}
	}
	sv := severities[category]
	out := agenterr.New(err.Error(), category, sv.severity, sv.recoverable)
	out.Cause = err
	return out
}
