package eval

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outreachrun/agentgraph/agent"
	"github.com/outreachrun/agentgraph/llm"
	"github.com/outreachrun/agentgraph/llm/model"
	"github.com/outreachrun/agentgraph/toolexec"
)

func baseInitialState(priority agent.Priority, hasEmail, hasPhone bool) agent.ThreadState {
	contact := agent.Contact{ID: "c1", DisplayName: "Jordan"}
	if hasEmail {
		e := "jordan@example.com"
		contact.Email = &e
	}
	if hasPhone {
		p := "+15550100"
		contact.Phone = &p
	}
	return agent.ThreadState{
		Record: agent.Record{
			ID:       "rec-1",
			Title:    "Invoice 1001",
			Status:   agent.StatusOpen,
			Priority: priority,
		},
		Contact:        contact,
		WorkflowStatus: agent.WorkflowRunning,
	}
}

// S1 — Happy-path email flow.
func TestScenario_HappyPathEmailFlow(t *testing.T) {
	s := Scenario{
		ID:           "s1",
		InitialState: baseInitialState(agent.PriorityHigh, true, false),
		LLMResponses: []string{"needs_email", "complete"},
		MockTools: map[string][]toolexec.Result{
			"sendEmail":          {{Success: true, Data: map[string]any{"messageId": "m1"}}},
			"updateRecordStatus": {{Success: true}},
		},
		Interrupts: []agent.ResumeInput{
			{Channel: agent.ChannelEmail, Content: "Thanks, paid."},
		},
		Expected: Expected{
			NodeSequence: []string{
				agent.NodeAnalyzeRecord, agent.NodeSendEmail, agent.NodeWaitForResponse,
				agent.NodeProcessResponse, agent.NodeAnalyzeRecord, agent.NodeMarkComplete,
			},
			FinalState: map[string]any{
				"record.status":  "DONE",
				"workflowStatus": "COMPLETED",
				"attempts":       1,
				"lastChannel":    "EMAIL",
			},
			ToolsCalled: []ExpectedToolCall{
				{Name: "updateRecordStatus", Args: map[string]any{"id": "rec-1", "status": "DONE"}, Mode: MatchStrict},
			},
		},
	}

	obs, err := NewRunner().Run(context.Background(), s)
	require.NoError(t, err)

	failures := Verify(context.Background(), s.Expected, obs, nil)
	require.Empty(t, failures, "%v", failures)
}

// S2 — No response, human review.
func TestScenario_NoResponseHumanReview(t *testing.T) {
	s := Scenario{
		ID:           "s2",
		InitialState: baseInitialState(agent.PriorityMedium, false, true),
		LLMResponses: []string{"needs_call", "escalate"},
		MockTools: map[string][]toolexec.Result{
			"sendCall": {{Success: true, Data: map[string]any{"callId": "call-1"}}},
		},
		Interrupts: []agent.ResumeInput{
			{Timeout: true, Content: ""},
		},
		Expected: Expected{
			NodeSequence: []string{
				agent.NodeAnalyzeRecord, agent.NodeSendCall, agent.NodeWaitForResponse,
				agent.NodeProcessResponse, agent.NodeAnalyzeRecord, agent.NodeHumanReview,
			},
			FinalState: map[string]any{
				"workflowStatus": "WAITING_HUMAN",
			},
		},
	}

	obs, err := NewRunner().Run(context.Background(), s)
	require.NoError(t, err)

	failures := Verify(context.Background(), s.Expected, obs, nil)
	require.Empty(t, failures, "%v", failures)
}

// S4 — Tool failure surfaces in messages.
func TestScenario_ToolFailureSurfacesInMessages(t *testing.T) {
	s := Scenario{
		ID:           "s4",
		InitialState: baseInitialState(agent.PriorityHigh, true, false),
		LLMResponses: []string{"needs_email", "escalate"},
		MockTools: map[string][]toolexec.Result{
			"sendEmail": {{Success: false, Message: "SMTP down"}},
		},
		Interrupts: []agent.ResumeInput{
			{Timeout: true, Content: ""},
		},
	}

	obs, err := NewRunner().Run(context.Background(), s)
	require.NoError(t, err)

	require.Equal(t, 1, obs.FinalState.Attempts)
	found := false
	for _, m := range obs.FinalState.Messages {
		if m.Role == agent.RoleTool && strings.Contains(m.Content, "SMTP down") {
			found = true
		}
	}
	require.True(t, found, "expected a tool-role message mentioning SMTP down, got %+v", obs.FinalState.Messages)
}

// S6 — LLM judge argument match.
func TestScenario_JudgeArgumentMatch(t *testing.T) {
	s := Scenario{
		ID:           "s6",
		InitialState: baseInitialState(agent.PriorityHigh, true, false),
		LLMResponses: []string{"needs_email", "complete"},
		MockTools: map[string][]toolexec.Result{
			"sendEmail":          {{Success: true}},
			"updateRecordStatus": {{Success: true}},
		},
		Interrupts: []agent.ResumeInput{
			{Channel: agent.ChannelEmail, Content: "paid"},
		},
		Expected: Expected{
			ToolsCalled: []ExpectedToolCall{
				{Name: "sendEmail", Args: map[string]any{"subject": "Invoice 1001"}, Mode: MatchJudge},
			},
		},
	}

	obs, err := NewRunner().Run(context.Background(), s)
	require.NoError(t, err)

	judge := alwaysMatchJudge{}
	failures := Verify(context.Background(), s.Expected, obs, judge)
	require.Empty(t, failures, "%v", failures)
}

// alwaysMatchJudge is a stand-in llm.Invoker for S6: it always returns a
// positive judge verdict, exercising the judge code path without a real
// model. A real deployment wires llm.DefaultInvoker here instead.
type alwaysMatchJudge struct{}

func (alwaysMatchJudge) InvokeLLM(ctx context.Context, history []model.Message, userMessage string, toolCtx llm.Context) (string, error) {
	return `{"match": true, "reason": "stub"}`, nil
}
