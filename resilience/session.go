package resilience

import (
	"fmt"
	"strings"

	"github.com/goa-design/agentswarm/domain"
)

// ConversationTail is the subset of store.ConversationStore used by the
// session-recovery wrapper, kept as a small interface so resilience does
// not import store directly.
type ConversationTail interface {
	Tail(agentID string, n int) []domain.Message
}

const (
	sessionRecoveryTailMessages   = 20
	sessionRecoveryContentMaxLen  = 500
	// MaxSessionRecoveryAttempts is the spec.md §4.4 default.
	MaxSessionRecoveryAttempts = 2
)

// buildSessionRecoveryPrompt rebuilds a prompt from the tail of the agent's
// conversation (spec.md §4.4: "last 20 messages, each content truncated to
// 500 characters"), wrapped in a short preamble, for re-invoking a call
// that failed with a Session-category error.
func buildSessionRecoveryPrompt(tail ConversationTail, agentID, originalPrompt string) string {
	var sb strings.Builder
	sb.WriteString("session recovery: the previous session for this agent was interrupted. ")
	sb.WriteString("Resume from the conversation below and complete the original request.\n\n")
	if tail != nil {
		for _, msg := range tail.Tail(agentID, sessionRecoveryTailMessages) {
			content := msg.Content
			if runes := []rune(content); len(runes) > sessionRecoveryContentMaxLen {
				content = string(runes[:sessionRecoveryContentMaxLen])
			}
			fmt.Fprintf(&sb, "[%s] %s\n", msg.Role, content)
		}
	}
	sb.WriteString("\noriginal request:\n")
	sb.WriteString(originalPrompt)
	return sb.String()
}
