package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTaskAppendResultJoinsWithNewline(t *testing.T) {
	task := Task{}
	task.AppendResult("first")
	task.AppendResult("second")
	require.Equal(t, "first\nsecond", task.Result)
}

func TestTaskAppendResultIgnoresEmptyText(t *testing.T) {
	task := Task{Result: "kept"}
	task.AppendResult("")
	require.Equal(t, "kept", task.Result)
}

func TestTaskAppendResultTruncatesToCap(t *testing.T) {
	task := Task{}
	task.AppendResult(strings.Repeat("a", resultCap+500))
	require.Len(t, task.Result, resultCap)
}

func TestTaskCloneIsIndependent(t *testing.T) {
	original := Task{
		Scope:             []string{"a"},
		DefinitionOfDone:  []string{"b"},
		VerificationHints: []string{"c"},
		DependsOn:         []string{"d"},
	}
	clone := original.Clone()
	clone.Scope[0] = "mutated"
	require.Equal(t, "a", original.Scope[0])
}

func TestConversationTail(t *testing.T) {
	conv := Conversation{Messages: []Message{
		{Content: "1"}, {Content: "2"}, {Content: "3"},
	}}
	require.Len(t, conv.Tail(2), 2)
	require.Equal(t, "2", conv.Tail(2)[0].Content)
	require.Len(t, conv.Tail(0), 3)
	require.Len(t, conv.Tail(10), 3)
}
