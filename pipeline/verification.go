package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/goa-design/agentswarm/coordinator"
	"github.com/goa-design/agentswarm/domain"
)

// metaVerifierAgent is a GateVerificationStage-local metadata key (not
// part of the well-known set in context.go, since no other stage needs
// it): the Verifier agent is created once and reused across NeedsFix
// re-verification waves.
const metaVerifierAgent = "verifierAgentId"

// GateVerificationStage runs the Verifier-role provider over the wave just
// completed by CrafterExecutionStage and applies its verdict (spec.md
// §4.7). An Approved verdict ends the run successfully; a NeedsFix verdict
// resets the wave's tasks to Ready and repeats the pipeline from
// crafter-execution, bounded by the engine's iteration budget.
type GateVerificationStage struct{}

// Name implements Stage.
func (GateVerificationStage) Name() string { return "gate-verification" }

// Description implements Stage.
func (GateVerificationStage) Description() string {
	return "runs the verifier-role provider over the completed wave and applies its verdict"
}

// RetryPolicy implements Stage: single attempt (spec.md §4.7 leaves this
// stage's policy unstated).
func (GateVerificationStage) RetryPolicy() RetryPolicy { return RetryPolicy{MaxAttempts: 1} }

// Execute implements Stage.
func (s GateVerificationStage) Execute(ctx context.Context, pc *Context) (StageResult, error) {
	if err := pc.EnsureActive(ctx); err != nil {
		return StageResult{}, err
	}

	waveTaskIDs := s.waveTaskIDs(pc)
	if !pc.Coordinator.WaveComplete(waveTaskIDs) {
		return StageResult{}, &ErrState{Cause: fmt.Errorf("pipeline: gate-verification reached with an incomplete wave")}
	}

	if err := pc.Coordinator.BeginVerifying(); err != nil {
		return StageResult{}, &ErrState{Cause: err}
	}

	agentID := pc.GetString(metaVerifierAgent)
	if agentID == "" {
		agent, err := pc.Stores.Agents.Create(ctx, domain.Agent{
			WorkspaceID: pc.Workspace,
			Role:        domain.RoleVerifier,
			Name:        "verifier",
		})
		if err != nil {
			return StageResult{}, err
		}
		agentID = agent.ID
		pc.Set(metaVerifierAgent, agentID)
	}

	provider, err := selectProvider(pc, domain.RoleVerifier)
	if err != nil {
		return StageResult{}, err
	}

	prompt := s.buildPrompt(pc, waveTaskIDs)
	pc.NotifyPhase(PhaseEvent{Kind: PhaseVerificationStarting, WaveNumber: pc.GetInt(MetaWaveNumber)})
	text, err := provider.Run(ctx, domain.RoleVerifier, agentID, prompt)
	if err != nil {
		return StageResult{}, err
	}
	pc.NotifyPhase(PhaseEvent{Kind: PhaseVerificationCompleted, WaveNumber: pc.GetInt(MetaWaveNumber)})

	verdict := parseVerdict(text)
	if verdict == domain.VerdictNeedsFix {
		pc.Logger.Warn(ctx, "verifier requested fixes", "wave", pc.GetInt(MetaWaveNumber))
	}
	if err := pc.Coordinator.ApplyVerdict(ctx, waveTaskIDs, verdict); err != nil {
		return StageResult{}, err
	}

	if verdict == domain.VerdictNeedsFix {
		for _, id := range waveTaskIDs {
			if _, err := pc.Stores.Tasks.UpdateStatus(ctx, id, domain.TaskReady); err != nil {
				return StageResult{}, err
			}
		}
		return RepeatPipeline("crafter-execution"), nil
	}

	allTaskIDs := pc.GetStringSlice(MetaTaskIDs)
	return Done(Outcome{Kind: OutcomeSuccess, TaskSummaries: summarize(pc.Stores.Tasks, allTaskIDs)}), nil
}

func (GateVerificationStage) waveTaskIDs(pc *Context) []string {
	v, ok := pc.Get(MetaDelegations)
	if !ok {
		return nil
	}
	delegations, ok := v.([]coordinator.Delegation)
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(delegations))
	for _, d := range delegations {
		ids = append(ids, d.TaskID)
	}
	return ids
}

func (GateVerificationStage) buildPrompt(pc *Context, taskIDs []string) string {
	var sb strings.Builder
	sb.WriteString("## Tasks to verify\n")
	for _, id := range taskIDs {
		t, err := pc.Stores.Tasks.Get(id)
		if err != nil {
			continue
		}
		fmt.Fprintf(&sb, "### %s\n%s\n", t.Title, t.Result)
		if len(t.DefinitionOfDone) > 0 {
			sb.WriteString("Definition of done:\n")
			for _, d := range t.DefinitionOfDone {
				fmt.Fprintf(&sb, "- %s\n", d)
			}
		}
		if len(t.VerificationHints) > 0 {
			sb.WriteString("Verification hints:\n")
			for _, h := range t.VerificationHints {
				fmt.Fprintf(&sb, "- %s\n", h)
			}
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Respond with APPROVED if every task above meets its definition of done, or NEEDS FIX with specifics otherwise.\n")
	return sb.String()
}

// parseVerdict scans text case-insensitively for the verifier's decision
// (spec.md §4.7). NEEDS FIX is checked first since a verifier that both
// praises partial progress and flags a defect must not be read as
// Approved; an unrecognized response defaults to NeedsFix (spec.md §9 Open
// Question: fail closed rather than silently approve unverified work).
func parseVerdict(text string) domain.Verdict {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "needs fix") || strings.Contains(lower, "needs_fix") {
		return domain.VerdictNeedsFix
	}
	if strings.Contains(lower, "approved") {
		return domain.VerdictApproved
	}
	return domain.VerdictNeedsFix
}
