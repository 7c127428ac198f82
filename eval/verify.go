package eval

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/outreachrun/agentgraph/agent"
	"github.com/outreachrun/agentgraph/llm"
	"github.com/outreachrun/agentgraph/toolexec"
)

// Failure describes one expectation that did not hold.
type Failure struct {
	Check string
	Want  any
	Got   any
}

func (f Failure) String() string {
	return fmt.Sprintf("%s: want %v, got %v", f.Check, f.Want, f.Got)
}

// Verify checks every expectation in expected against observed, returning
// one Failure per check that did not hold. A scenario passes iff Verify
// returns an empty slice. judge is used for MatchJudge checks; pass nil if
// the scenario scripts none.
func Verify(ctx context.Context, expected Expected, observed Observation, judge llm.Invoker) []Failure {
	var failures []Failure

	if !reflect.DeepEqual(expected.NodeSequence, observed.NodeSequence) {
		failures = append(failures, Failure{Check: "nodeSequence", Want: expected.NodeSequence, Got: observed.NodeSequence})
	}

	for key, want := range expected.FinalState {
		got, err := lookupStatePath(observed.FinalState, key)
		if err != nil {
			failures = append(failures, Failure{Check: "finalState." + key, Want: want, Got: err.Error()})
			continue
		}
		if !deepEqualLoose(want, got) {
			failures = append(failures, Failure{Check: "finalState." + key, Want: want, Got: got})
		}
	}

	for _, expectedCall := range expected.ToolsCalled {
		if fail := verifyToolCall(ctx, expectedCall, observed.ToolCalls, judge); fail != nil {
			failures = append(failures, *fail)
		}
	}

	for _, expectedResp := range expected.LLMResponses {
		if fail := verifyLLMResponse(ctx, expectedResp, observed.AssistantByNode, judge); fail != nil {
			failures = append(failures, *fail)
		}
	}

	return failures
}

// verifyToolCall requires at least one recorded call named expected.Name;
// MatchStrict additionally requires some such call's Args to deep-equal
// expected.Args exactly, MatchJudge delegates to judge instead.
func verifyToolCall(ctx context.Context, expected ExpectedToolCall, calls []toolexec.MockCall, judge llm.Invoker) *Failure {
	var named []toolexec.MockCall
	for _, c := range calls {
		if c.Name == expected.Name {
			named = append(named, c)
		}
	}
	if len(named) == 0 {
		return &Failure{Check: "toolsCalled." + expected.Name, Want: "at least one call", Got: "no calls"}
	}
	if expected.Args == nil {
		return nil
	}

	switch expected.Mode {
	case MatchJudge:
		for _, c := range named {
			match, reason, err := JudgeArgsMatch(ctx, judge, expected.Args, c.Args)
			if err == nil && match {
				return nil
			}
			_ = reason
		}
		return &Failure{Check: "toolsCalled." + expected.Name + ".args(judge)", Want: expected.Args, Got: named}
	default:
		for _, c := range named {
			if reflect.DeepEqual(expected.Args, c.Args) {
				return nil
			}
		}
		return &Failure{Check: "toolsCalled." + expected.Name + ".args", Want: expected.Args, Got: named}
	}
}

// verifyLLMResponse requires the concatenation of assistant messages
// produced at expected.Node to contain every Contains substring
// case-insensitively (MatchStrict/default), or delegates the single
// Contains entry to judge (MatchJudge).
func verifyLLMResponse(ctx context.Context, expected ExpectedLLMResponse, byNode map[string][]string, judge llm.Invoker) *Failure {
	combined := strings.Join(byNode[expected.Node], "\n")

	if expected.Mode == MatchJudge {
		if len(expected.Contains) == 0 {
			return nil
		}
		match, _, err := JudgeResponseMatches(ctx, judge, combined, expected.Contains[0])
		if err == nil && match {
			return nil
		}
		return &Failure{Check: "llmResponses." + expected.Node + "(judge)", Want: expected.Contains[0], Got: combined}
	}

	lower := strings.ToLower(combined)
	for _, substr := range expected.Contains {
		if !strings.Contains(lower, strings.ToLower(substr)) {
			return &Failure{Check: "llmResponses." + expected.Node, Want: substr, Got: combined}
		}
	}
	return nil
}

// lookupStatePath resolves a small set of dotted paths into ThreadState
// without reflection over the whole struct, since §4.9 only ever names a
// handful of fields (record.status, attempts, lastChannel, workflowStatus).
func lookupStatePath(state agent.ThreadState, path string) (any, error) {
	switch path {
	case "record.status":
		return string(state.Record.Status), nil
	case "record.id":
		return state.Record.ID, nil
	case "record.priority":
		return string(state.Record.Priority), nil
	case "attempts":
		return state.Attempts, nil
	case "lastChannel":
		return string(state.LastChannel), nil
	case "workflowStatus":
		return string(state.WorkflowStatus), nil
	case "currentNode":
		return state.CurrentNode, nil
	case "nextNode":
		return state.NextNode, nil
	default:
		return nil, fmt.Errorf("unknown finalState key %q", path)
	}
}

// deepEqualLoose compares want (typically a string/int/bool literal from a
// scenario definition) against got (the same field read back typed), after
// normalizing both through fmt so e.g. "DONE" matches agent.StatusDone's
// string form regardless of which literal form the scenario author used.
func deepEqualLoose(want, got any) bool {
	if reflect.DeepEqual(want, got) {
		return true
	}
	return fmt.Sprintf("%v", want) == fmt.Sprintf("%v", got)
}
