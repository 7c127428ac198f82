package agent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Invariant 1 (§8): messages only ever append, never truncate or reorder.
func TestReduce_MessagesAppendOnly(t *testing.T) {
	prev := ThreadState{Messages: []Message{{Role: RoleUser, Content: "first"}}}
	partial := ThreadState{Messages: []Message{{Role: RoleAssistant, Content: "second"}}}

	next := Reduce(prev, partial)

	require.Len(t, next.Messages, 2)
	require.Equal(t, "first", next.Messages[0].Content)
	require.Equal(t, "second", next.Messages[1].Content)
	// prev's backing slice must be untouched by the merge.
	require.Len(t, prev.Messages, 1)
}

func TestReduce_EmptyPartialMessagesLeavesHistoryUnchanged(t *testing.T) {
	prev := ThreadState{Messages: []Message{{Role: RoleUser, Content: "first"}}}
	next := Reduce(prev, ThreadState{})
	require.Equal(t, prev.Messages, next.Messages)
}

// Invariant 2 (§8): Attempts is monotone non-decreasing across a thread's
// life — the reducer itself only ever replaces it with an explicit non-zero
// partial value (last-write-wins), it never decrements on its own, and every
// caller in this codebase that sets it (SendEffectNode) passes
// s.Attempts+1.
func TestReduce_AttemptsIsLastWriteWinsOnNonZero(t *testing.T) {
	prev := ThreadState{Attempts: 2}

	unchanged := Reduce(prev, ThreadState{})
	require.Equal(t, 2, unchanged.Attempts)

	bumped := Reduce(prev, ThreadState{Attempts: 3})
	require.Equal(t, 3, bumped.Attempts)
}

func TestReduce_RecordAndContactReplaceOnlyWhenIDPresent(t *testing.T) {
	prev := ThreadState{
		Record:  Record{ID: "rec-1", Status: StatusOpen},
		Contact: Contact{ID: "c1", DisplayName: "Jordan"},
	}

	// A partial with no Record/Contact ID must not clobber the committed ones.
	untouched := Reduce(prev, ThreadState{})
	require.Equal(t, prev.Record, untouched.Record)
	require.Equal(t, prev.Contact, untouched.Contact)

	replaced := Reduce(prev, ThreadState{Record: Record{ID: "rec-1", Status: StatusDone}})
	require.Equal(t, StatusDone, replaced.Record.Status)
	require.Equal(t, prev.Contact, replaced.Contact)
}

func TestReduce_WaitingForResponsePointerDistinguishesUnsetFromFalse(t *testing.T) {
	prev := ThreadState{WaitingForResponse: BoolPtr(true)}

	untouched := Reduce(prev, ThreadState{})
	require.True(t, untouched.IsWaitingForResponse())

	cleared := Reduce(prev, ThreadState{WaitingForResponse: BoolPtr(false)})
	require.False(t, cleared.IsWaitingForResponse())
}

func TestReduce_ScalarFieldsLastWriteWinsWhenNonZero(t *testing.T) {
	prev := ThreadState{
		LastChannel:    ChannelEmail,
		WorkflowStatus: WorkflowRunning,
		CurrentNode:    "analyzeRecord",
		NextNode:       "sendEmail",
	}

	next := Reduce(prev, ThreadState{WorkflowStatus: WorkflowCompleted})

	require.Equal(t, ChannelEmail, next.LastChannel)
	require.Equal(t, WorkflowCompleted, next.WorkflowStatus)
	require.Equal(t, "analyzeRecord", next.CurrentNode)
	require.Equal(t, "sendEmail", next.NextNode)
}
