// Package coordinator implements the coordination state machine and wave
// scheduling policy from spec.md §4.6: it owns the phase transitions, the
// per-wave agent-creation/task-assignment mutation sequence, and the
// dual-path completion reporting (native report_to_parent vs. parsed
// free-form text). The phase-machine shape (small mutex-guarded state plus
// an explicit allowed-transitions table) follows the same pattern as
// resilience.CircuitBreaker, itself grounded on the teacher's
// AdaptiveRateLimiter.
package coordinator

import (
	"fmt"
	"sync"
)

// Phase is one of the coordination states from spec.md §4.6.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhasePlanning        Phase = "planning"
	PhaseReady           Phase = "ready"
	PhaseExecuting       Phase = "executing"
	PhaseVerifying       Phase = "verifying"
	PhaseNeedsFix        Phase = "needs_fix"
	PhaseCompleted       Phase = "completed"
	PhaseFailed          Phase = "failed"
	PhaseMaxWavesReached Phase = "max_waves_reached"
)

// allowedTransitions enumerates every non-Failed transition spec.md §4.6
// names explicitly. Failed and MaxWavesReached are reachable from any phase
// (see Transition) and are therefore not listed here.
var allowedTransitions = map[Phase][]Phase{
	PhaseIdle:      {PhasePlanning},
	PhasePlanning:  {PhaseReady},
	PhaseReady:     {PhaseExecuting},
	PhaseExecuting: {PhaseVerifying},
	PhaseVerifying: {PhaseNeedsFix, PhaseCompleted},
	PhaseNeedsFix:  {PhaseExecuting},
}

// ErrInvalidTransition is returned by Transition when the requested move is
// not in the allowed table (and is not Failed/MaxWavesReached, which are
// always allowed).
type ErrInvalidTransition struct {
	From, To Phase
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("coordinator: invalid transition %s -> %s", e.From, e.To)
}

// CoordinationState is the mutex-guarded current phase of one coordination
// run (spec.md §3, §4.6).
type CoordinationState struct {
	mu    sync.Mutex
	phase Phase
}

// NewCoordinationState constructs a CoordinationState starting at Idle.
func NewCoordinationState() *CoordinationState {
	return &CoordinationState{phase: PhaseIdle}
}

// Phase returns the current phase.
func (s *CoordinationState) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Transition moves the state to "to" if that move is allowed from the
// current phase. Failed and MaxWavesReached are reachable from any phase
// (spec.md §4.6: "any phase can transition to Failed on an unrecoverable
// error"; the iteration-budget exhaustion rule extends the same allowance
// to MaxWavesReached).
func (s *CoordinationState) Transition(to Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if to == PhaseFailed || to == PhaseMaxWavesReached {
		s.phase = to
		return nil
	}
	for _, candidate := range allowedTransitions[s.phase] {
		if candidate == to {
			s.phase = to
			return nil
		}
	}
	return &ErrInvalidTransition{From: s.phase, To: to}
}
