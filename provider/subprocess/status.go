package subprocess

import (
	"strings"

	"github.com/goa-design/agentswarm/domain"
)

// mapToolStatus maps a provider-specific tool-call status string to the
// canonical four-state set via lowercase substring match (spec.md §4.3).
//
// Order matters and is preserved literally from the source behaviour
// (spec.md §9 "Open question: duplicate status mapping"): "start" and
// "complet" are checked before "fail"/"error", so an ambiguous value like
// "completion_error" maps to Completed, not Failed.
func mapToolStatus(raw string) domain.ToolCallStatus {
	s := strings.ToLower(raw)
	switch {
	case strings.Contains(s, "start"):
		return domain.ToolCallStarted
	case strings.Contains(s, "complet"):
		return domain.ToolCallCompleted
	case strings.Contains(s, "fail"), strings.Contains(s, "error"):
		return domain.ToolCallFailed
	default:
		return domain.ToolCallInProgress
	}
}
