package taskparser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const samplePlan = `Here is the plan.

@@@task
# Add health check endpoint
## Objective
Expose a GET /healthz endpoint returning 200 OK.
## Scope
- health.go
## Definition of Done
- Endpoint registered and returns 200
@@@

@@@task
# Test health check endpoint
## Objective
Add a test exercising the new endpoint.
## Scope
- health_test.go
## Definition of Done
- Test passes and covers the happy path
## Verification
- go test ./...
## Dependencies
Add health check endpoint
@@@
`

func TestDefaultParserParsesTwoTasksWithDependency(t *testing.T) {
	tasks, err := DefaultParser{}.Parse(samplePlan)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	require.Equal(t, "Add health check endpoint", tasks[0].Title)
	require.Equal(t, []string{"health.go"}, tasks[0].Scope)
	require.Equal(t, []string{"Endpoint registered and returns 200"}, tasks[0].DefinitionOfDone)
	require.Empty(t, tasks[0].Dependencies)

	require.Equal(t, "Test health check endpoint", tasks[1].Title)
	require.Equal(t, []string{"go test ./..."}, tasks[1].VerificationHints)
	require.Equal(t, []string{"Add health check endpoint"}, tasks[1].Dependencies)
}

func TestDefaultParserNoBlocksReturnsEmpty(t *testing.T) {
	tasks, err := DefaultParser{}.Parse("no tasks here, just prose.")
	require.NoError(t, err)
	require.Empty(t, tasks)
}

func TestDefaultParserRejectsForwardReference(t *testing.T) {
	const plan = `
@@@task
# First
## Objective
Do a thing.
## Dependencies
Second
@@@

@@@task
# Second
## Objective
Do another thing.
@@@
`
	_, err := DefaultParser{}.Parse(plan)
	require.Error(t, err)
}

func TestDefaultParserRejectsMissingTitle(t *testing.T) {
	const plan = `
@@@task
## Objective
No title above.
@@@
`
	_, err := DefaultParser{}.Parse(plan)
	require.Error(t, err)
}

func TestDefaultParserCommaSeparatedDependencies(t *testing.T) {
	const plan = `
@@@task
# A
## Objective
a
@@@

@@@task
# B
## Objective
b
@@@

@@@task
# C
## Objective
c
## Dependencies
A, B
@@@
`
	tasks, err := DefaultParser{}.Parse(plan)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	require.Equal(t, []string{"A", "B"}, tasks[2].Dependencies)
}

func TestValidateDAGAcceptsAcyclicGraph(t *testing.T) {
	tasks := []ParsedTask{
		{Title: "A"},
		{Title: "B", Dependencies: []string{"A"}},
		{Title: "C", Dependencies: []string{"A", "B"}},
	}
	require.NoError(t, ValidateDAG(tasks))
}

func TestValidateDAGRejectsCycle(t *testing.T) {
	tasks := []ParsedTask{
		{Title: "A", Dependencies: []string{"B"}},
		{Title: "B", Dependencies: []string{"A"}},
	}
	require.Error(t, ValidateDAG(tasks))
}
