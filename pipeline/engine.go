package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/goa-design/agentswarm/coordinator"
	"github.com/goa-design/agentswarm/internal/agenterr"
)

const defaultMaxIterations = 3

// Engine drives an ordered list of stages over a bounded iteration budget
// (spec.md §4.7).
type Engine struct {
	stages        []Stage
	maxIterations int
	recovery      StageRecoveryHandler
	bus           *Bus
}

// NewEngine constructs an Engine. maxIterations <= 0 defaults to 3
// (spec.md §6). A nil recovery handler defaults to DefaultRecoveryHandler.
// A nil bus gets a fresh one.
func NewEngine(stages []Stage, maxIterations int, recovery StageRecoveryHandler, bus *Bus) *Engine {
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	if recovery == nil {
		recovery = DefaultRecoveryHandler{}
	}
	if bus == nil {
		bus = NewBus()
	}
	return &Engine{stages: stages, maxIterations: maxIterations, recovery: recovery, bus: bus}
}

// Bus returns the engine's pipeline event bus.
func (e *Engine) Bus() *Bus { return e.bus }

// Run executes the pipeline for one orchestration request (spec.md §4.7's
// execution loop). It returns the terminal Outcome; pipeline events are
// published to e.Bus() as the run progresses.
func (e *Engine) Run(ctx context.Context, pc *Context) Outcome {
	pipelineID := uuid.NewString()
	e.bus.Publish(Event{Kind: EventPipelineStarted, PipelineID: pipelineID, Timestamp: time.Now()})

	if err := pc.Coordinator.StartRun(); err != nil {
		return e.finishFailed(pipelineID, "", err)
	}

	startIndex := 0
	for iteration := 1; iteration <= e.maxIterations; iteration++ {
		if err := pc.EnsureActive(ctx); err != nil {
			return e.finishCancelled(pipelineID)
		}
		e.bus.Publish(Event{Kind: EventIterationStarted, PipelineID: pipelineID, Timestamp: time.Now(), Iteration: iteration})

		repeatFrom := -1
		terminal, outcome, ok := e.runIteration(ctx, pc, pipelineID, startIndex, &repeatFrom)
		if terminal {
			return outcome
		}
		if !ok {
			// Iteration completed every stage without RepeatPipeline: the
			// run ends successfully with the coordinator's task summary.
			return e.finishSuccess(pipelineID, pc)
		}
		startIndex = repeatFrom
	}

	_ = pc.Coordinator.State().Transition(coordinator.PhaseMaxWavesReached) // always allowed, see state.go
	taskIDs := pc.GetStringSlice(MetaTaskIDs)
	return Outcome{
		Kind:          OutcomeMaxWavesReached,
		Waves:         pc.GetInt(MetaWaveNumber),
		TaskSummaries: summarize(pc.Stores.Tasks, taskIDs),
	}
}

// runIteration runs stages [startIndex:] once. It returns terminal=true
// with a populated outcome when the run must end now (Done, SkipRemaining,
// Failed, or cancellation); otherwise ok reports whether a RepeatPipeline
// was requested (repeatFrom is then set) as opposed to the iteration
// completing every stage.
func (e *Engine) runIteration(ctx context.Context, pc *Context, pipelineID string, startIndex int, repeatFrom *int) (terminal bool, outcome Outcome, repeated bool) {
	for i := startIndex; i < len(e.stages); i++ {
		stage := e.stages[i]
		if err := pc.EnsureActive(ctx); err != nil {
			return true, e.finishCancelled(pipelineID), false
		}
		e.bus.Publish(Event{Kind: EventStageStarted, PipelineID: pipelineID, Timestamp: time.Now(), StageName: stage.Name()})

		result := e.executeStageWithResilience(ctx, pc, stage, pipelineID)
		switch result.Kind {
		case ResultContinue:
			continue
		case ResultSkipRemaining, ResultDone:
			e.bus.Publish(Event{Kind: EventPipelineCompleted, PipelineID: pipelineID, Timestamp: time.Now(), Success: true})
			return true, result.Final, false
		case ResultRepeatPipeline:
			idx := i
			if result.RepeatFromStage != "" {
				if found, ok := e.indexOf(result.RepeatFromStage); ok {
					idx = found
				}
			}
			*repeatFrom = idx
			return false, Outcome{}, true
		case ResultFailed:
			e.bus.Publish(Event{Kind: EventPipelineCompleted, PipelineID: pipelineID, Timestamp: time.Now(), Success: false})
			return true, Outcome{Kind: OutcomeFailed, StageName: stage.Name(), Message: result.ErrorMessage}, false
		}
	}
	return false, Outcome{}, false
}

func (e *Engine) indexOf(name string) (int, bool) {
	for i, s := range e.stages {
		if s.Name() == name {
			return i, true
		}
	}
	return 0, false
}

// executeStageWithResilience runs stage under its declared retry policy
// (if any), then consults the StageRecoveryHandler on any remaining error
// (spec.md §4.7).
func (e *Engine) executeStageWithResilience(ctx context.Context, pc *Context, stage Stage, pipelineID string) StageResult {
	result, err := e.runWithRetry(ctx, pc, stage, pipelineID)
	if err == nil {
		e.bus.Publish(Event{
			Kind: EventStageCompleted, PipelineID: pipelineID, Timestamp: time.Now(),
			StageName: stage.Name(), ResultKind: result.Kind,
		})
		return result
	}

	decision := e.recovery.Recover(stage.Name(), err)
	switch decision.Kind {
	case RecoverySkip:
		e.bus.Publish(Event{
			Kind: EventStageSkipped, PipelineID: pipelineID, Timestamp: time.Now(),
			StageName: stage.Name(), Reason: decision.Reason,
		})
		return Continue()
	case RecoveryFallback:
		e.bus.Publish(Event{
			Kind: EventStageCompleted, PipelineID: pipelineID, Timestamp: time.Now(),
			StageName: stage.Name(), ResultKind: decision.Result.Kind,
		})
		return decision.Result
	default:
		e.bus.Publish(Event{
			Kind: EventStageFailed, PipelineID: pipelineID, Timestamp: time.Now(),
			StageName: stage.Name(), Error: err.Error(), WillRetry: false,
		})
		return Failed(err.Error())
	}
}

// runWithRetry implements retryWithPolicy (spec.md §4.7): if the stage
// declares MaxAttempts > 1, retry on a retryable error with exponential
// backoff, emitting StageFailed(attempt, willRetry=true) before each
// retry's sleep; cancellation is never retried.
func (e *Engine) runWithRetry(ctx context.Context, pc *Context, stage Stage, pipelineID string) (StageResult, error) {
	policy := stage.RetryPolicy()
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := stage.Execute(ctx, pc)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if agenterr.IsCancellation(err) {
			return StageResult{}, err
		}
		willRetry := attempt < maxAttempts && policy.retryable(err)
		e.bus.Publish(Event{
			Kind: EventStageFailed, PipelineID: pipelineID, Timestamp: time.Now(),
			StageName: stage.Name(), Attempt: attempt, WillRetry: willRetry, Error: err.Error(),
		})
		if !willRetry {
			return StageResult{}, lastErr
		}
		select {
		case <-ctx.Done():
			return StageResult{}, ctx.Err()
		case <-time.After(policy.delay(attempt)):
		}
	}
	return StageResult{}, lastErr
}

func (e *Engine) finishSuccess(pipelineID string, pc *Context) Outcome {
	e.bus.Publish(Event{Kind: EventPipelineCompleted, PipelineID: pipelineID, Timestamp: time.Now(), Success: true})
	taskIDs := pc.GetStringSlice(MetaTaskIDs)
	return Outcome{Kind: OutcomeSuccess, TaskSummaries: summarize(pc.Stores.Tasks, taskIDs)}
}

func (e *Engine) finishFailed(pipelineID, stageName string, err error) Outcome {
	e.bus.Publish(Event{Kind: EventPipelineCompleted, PipelineID: pipelineID, Timestamp: time.Now(), Success: false})
	return Outcome{Kind: OutcomeFailed, StageName: stageName, Message: err.Error()}
}

func (e *Engine) finishCancelled(pipelineID string) Outcome {
	e.bus.Publish(Event{Kind: EventPipelineCancelled, PipelineID: pipelineID, Timestamp: time.Now()})
	return Outcome{Kind: OutcomeCancelled}
}
