package pipeline

import "context"

// Predicate decides whether a ConditionalStage's inner stage should run.
type Predicate func(pc *Context) bool

// ConditionalStage forwards to Inner when Predicate(pc) is true, otherwise
// returns Continue without running Inner (spec.md §4.7: "A wrapper that,
// given a predicate on the context, forwards to an inner stage or returns
// Continue"). Its RetryPolicy is the inner stage's.
type ConditionalStage struct {
	Inner     Stage
	Predicate Predicate
}

// Name implements Stage.
func (c *ConditionalStage) Name() string { return c.Inner.Name() }

// Description implements Stage.
func (c *ConditionalStage) Description() string { return c.Inner.Description() }

// RetryPolicy implements Stage: the inner stage's policy (spec.md §4.7).
func (c *ConditionalStage) RetryPolicy() RetryPolicy { return c.Inner.RetryPolicy() }

// Execute implements Stage.
func (c *ConditionalStage) Execute(ctx context.Context, pc *Context) (StageResult, error) {
	if c.Predicate != nil && !c.Predicate(pc) {
		return Continue(), nil
	}
	return c.Inner.Execute(ctx, pc)
}
