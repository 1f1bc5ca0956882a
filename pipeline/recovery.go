package pipeline

import (
	"github.com/goa-design/agentswarm/internal/agenterr"
	"github.com/goa-design/agentswarm/internal/classify"
)

// RecoveryKind tags the StageRecoveryHandler's decision (spec.md §4.7).
type RecoveryKind string

const (
	RecoverySkip     RecoveryKind = "skip"
	RecoveryFallback RecoveryKind = "fallback"
	RecoveryAbort    RecoveryKind = "abort"
)

// RecoveryDecision is what a StageRecoveryHandler decides to do with a
// stage's unrecovered error.
type RecoveryDecision struct {
	Kind   RecoveryKind
	Reason string      // Skip
	Result StageResult // Fallback
}

// Skip treats the failure as Continue, emitting StageSkipped with reason.
func Skip(reason string) RecoveryDecision { return RecoveryDecision{Kind: RecoverySkip, Reason: reason} }

// Fallback substitutes result for the stage's own result.
func Fallback(result StageResult) RecoveryDecision {
	return RecoveryDecision{Kind: RecoveryFallback, Result: result}
}

// Abort ends the run as a failure.
func Abort() RecoveryDecision { return RecoveryDecision{Kind: RecoveryAbort} }

// StageRecoveryHandler maps a stage's unrecovered exception to Skip,
// Fallback, or Abort (spec.md §4.7).
type StageRecoveryHandler interface {
	Recover(stageName string, err error) RecoveryDecision
}

// DefaultRecoveryHandler implements spec.md §4.7's default: "skip on I/O
// and timeout errors, abort otherwise." I/O-like failures are the Network
// and Process categories (the classifier's closest analogues to a
// language's IOError); Timeout is named explicitly.
type DefaultRecoveryHandler struct{}

// Recover implements StageRecoveryHandler.
func (DefaultRecoveryHandler) Recover(stageName string, err error) RecoveryDecision {
	if agenterr.IsCancellation(err) {
		return Abort()
	}
	category := classify.Classify(err).Category
	switch category {
	case agenterr.CategoryNetwork, agenterr.CategoryProcess, agenterr.CategoryTimeout:
		return Skip("stage " + stageName + " failed with a recoverable " + string(category) + " error: " + err.Error())
	default:
		return Abort()
	}
}
