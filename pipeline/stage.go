package pipeline

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/goa-design/agentswarm/internal/agenterr"
)

// ResultKind tags a StageResult variant (spec.md §4.7).
type ResultKind string

const (
	// ResultContinue advances to the next stage.
	ResultContinue ResultKind = "continue"
	// ResultSkipRemaining ends the run successfully without running the
	// remaining stages.
	ResultSkipRemaining ResultKind = "skip_remaining"
	// ResultRepeatPipeline moves to the next iteration, restarting from the
	// named stage (or the emitting stage, by default).
	ResultRepeatPipeline ResultKind = "repeat_pipeline"
	// ResultDone ends the run successfully.
	ResultDone ResultKind = "done"
	// ResultFailed ends the run as a failure.
	ResultFailed ResultKind = "failed"
)

// StageResult is the control-flow signal a stage returns to the engine
// (spec.md §4.7).
type StageResult struct {
	Kind ResultKind

	// SkipRemaining, Done
	Final Outcome

	// RepeatPipeline
	RepeatFromStage string // empty means "the emitting stage"

	// Failed
	ErrorMessage string
}

// Continue is the most common StageResult.
func Continue() StageResult { return StageResult{Kind: ResultContinue} }

// SkipRemaining ends the run successfully with final, skipping the
// remaining stages.
func SkipRemaining(final Outcome) StageResult {
	return StageResult{Kind: ResultSkipRemaining, Final: final}
}

// Done ends the run successfully with final.
func Done(final Outcome) StageResult {
	return StageResult{Kind: ResultDone, Final: final}
}

// RepeatPipeline moves to the next iteration. An empty fromStage resumes
// from the stage that returned this result.
func RepeatPipeline(fromStage string) StageResult {
	return StageResult{Kind: ResultRepeatPipeline, RepeatFromStage: fromStage}
}

// Failed ends the run as a failure carrying message.
func Failed(message string) StageResult {
	return StageResult{Kind: ResultFailed, ErrorMessage: message}
}

// RetryPolicy configures executeStageWithResilience's per-stage retry
// behavior (spec.md §4.7). A zero-value policy (MaxAttempts <= 1) disables
// stage-level retry entirely: the stage runs once and any error is handed
// straight to the StageRecoveryHandler.
type RetryPolicy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration // default 30s
	// Retryable overrides the default retryable predicate when set.
	Retryable func(error) bool
}

const defaultStageMaxDelay = 30 * time.Second

func (p RetryPolicy) delay(attempt int) time.Duration {
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultStageMaxDelay
	}
	mult := p.BackoffMultiplier
	if mult <= 0 {
		mult = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * mult)
	}
	if d > maxDelay {
		d = maxDelay
	}
	return d
}

func (p RetryPolicy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return defaultRetryable(err)
}

// ErrArgument marks a stage failure as stemming from an invalid argument
// rather than a transient condition; executeStageWithResilience never
// retries it (spec.md §4.7: "never retry on ArgumentError/StateError").
type ErrArgument struct{ Message string }

func (e *ErrArgument) Error() string { return e.Message }

// ErrState marks a stage failure that reflects a rejected state-machine
// transition (e.g. the coordinator refusing an out-of-order phase move)
// rather than a transient fault; never retried, same as ErrArgument.
type ErrState struct{ Cause error }

func (e *ErrState) Error() string { return "pipeline: invalid state: " + e.Cause.Error() }
func (e *ErrState) Unwrap() error { return e.Cause }

// defaultRetryable matches spec.md §4.7's default predicate: net.Error
// (the IOError analogue), and message substrings "timeout", "connection",
// "rate limit", "503", "429". Cancellation and ErrArgument/ErrState are
// never retryable.
func defaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	if agenterr.IsCancellation(err) {
		return false
	}
	var argErr *ErrArgument
	var stateErr *ErrState
	if errors.As(err, &argErr) || errors.As(err, &stateErr) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, substr := range []string{"timeout", "connection", "rate limit", "503", "429"} {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

// Stage is one step of the pipeline (spec.md §4.7).
type Stage interface {
	// Name identifies the stage for repeat-from-stage resolution and event
	// emission.
	Name() string
	// Description is a short human-readable summary.
	Description() string
	// RetryPolicy returns the stage's retry policy. A zero-value policy
	// means no stage-level retry.
	RetryPolicy() RetryPolicy
	// Execute runs the stage. A returned error is an exception to be
	// handled by executeStageWithResilience (retry, then recovery); a
	// returned StageResult with err == nil is the stage's own control-flow
	// decision.
	Execute(ctx context.Context, pc *Context) (StageResult, error)
}
