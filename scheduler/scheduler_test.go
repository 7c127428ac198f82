package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outreachrun/agentgraph/agent"
	"github.com/outreachrun/agentgraph/precheck"
)

type fakeLister struct {
	records []RecordRef
}

func (f *fakeLister) ListEligible(_ context.Context, _ []string, batchSize int) ([]RecordRef, error) {
	if len(f.records) > batchSize {
		return f.records[:batchSize], nil
	}
	return f.records, nil
}

type fakeRunner struct {
	attemptsDelta int
	err           error
}

func (f *fakeRunner) Invoke(_ context.Context, _ string, initial agent.ThreadState) (agent.ThreadState, error) {
	if f.err != nil {
		return agent.ThreadState{}, f.err
	}
	initial.Attempts += f.attemptsDelta
	return initial, nil
}

func testRules() precheck.Rules {
	return precheck.Rules{
		MinDaysBetweenActions:    3,
		MaxActionAttempts:        5,
		RecordTooRecentDays:      1,
		RecentUpdateCooldownDays: 0.5,
		HighPriorityMinDays:      1,
		LowPriorityMultiplier:    2,
	}
}

func TestTick_SkipsOnStaticPreCheck(t *testing.T) {
	lister := &fakeLister{records: []RecordRef{
		{ThreadID: "t1", ActionCount: 5, DaysSinceLastAction: 100, DaysSinceLastUpdate: 100, DaysSinceCreation: 100},
	}}
	runner := &fakeRunner{}
	s := New(nil)

	results := s.Tick(context.Background(), Workflow{
		ID: "wf1", Rules: testRules(), Batch: 10, Lister: lister, Runner: runner,
	})

	require.Len(t, results, 1)
	require.Equal(t, OutcomeSkippedStatic, results[0].Outcome)
	require.Equal(t, precheck.ReasonMaxAttemptsReached, results[0].Reason)
}

func TestTick_ActionTakenWhenAttemptsIncrement(t *testing.T) {
	lister := &fakeLister{records: []RecordRef{
		{ThreadID: "t1", ActionCount: 0, DaysSinceLastAction: precheck.InfiniteDays, DaysSinceLastUpdate: 10, DaysSinceCreation: 10},
	}}
	runner := &fakeRunner{attemptsDelta: 1}
	s := New(nil)

	results := s.Tick(context.Background(), Workflow{
		ID: "wf1", Rules: testRules(), Batch: 10, Lister: lister, Runner: runner,
	})

	require.Len(t, results, 1)
	require.Equal(t, OutcomeActionTaken, results[0].Outcome)
}

func TestTick_SkippedAIWhenNoEffectTaken(t *testing.T) {
	lister := &fakeLister{records: []RecordRef{
		{ThreadID: "t1", ActionCount: 2, DaysSinceLastAction: 10, DaysSinceLastUpdate: 10, DaysSinceCreation: 10},
	}}
	runner := &fakeRunner{attemptsDelta: 0}
	s := New(nil)

	results := s.Tick(context.Background(), Workflow{
		ID: "wf1", Rules: testRules(), Batch: 10, Lister: lister, Runner: runner,
	})

	require.Len(t, results, 1)
	require.Equal(t, OutcomeSkippedAI, results[0].Outcome)
}

func TestTick_ErrorPropagatesPerRecord(t *testing.T) {
	lister := &fakeLister{records: []RecordRef{
		{ThreadID: "t1", ActionCount: 0, DaysSinceLastAction: precheck.InfiniteDays, DaysSinceLastUpdate: 10, DaysSinceCreation: 10},
	}}
	s := New(nil)
	runner := &fakeRunner{err: context.DeadlineExceeded}

	results := s.Tick(context.Background(), Workflow{
		ID: "wf1", Rules: testRules(), Batch: 10, Lister: lister, Runner: runner,
	})

	require.Len(t, results, 1)
	require.Equal(t, OutcomeError, results[0].Outcome)
	require.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
}
