package pipeline

// DefaultStages returns the four built-in stages in the order spec.md §4.7
// runs them: planning, task registration, crafter execution, gate
// verification. Callers building a custom pipeline are free to splice in
// their own Stage implementations (or wrap one in a ConditionalStage)
// instead of using this list.
func DefaultStages() []Stage {
	return []Stage{
		PlanningStage{},
		TaskRegistrationStage{},
		CrafterExecutionStage{},
		GateVerificationStage{},
	}
}
