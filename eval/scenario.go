// Package eval drives a workflow deterministically against a scripted
// scenario — fixed mock tool responses, a fixed interrupt-resume script, and
// fixed keyword-driven LLM stubs — then verifies the resulting node
// sequence, final state, tool calls, and LLM output against expectations
// (§4.9).
package eval

import (
	"github.com/outreachrun/agentgraph/agent"
	"github.com/outreachrun/agentgraph/toolexec"
)

// MatchMode selects how an expected tool call's arguments (or an expected
// LLM response's content) are compared against what was actually observed.
type MatchMode string

const (
	MatchStrict MatchMode = "strict"
	MatchJudge  MatchMode = "judge"
)

// Scenario is one scripted end-to-end run: an initial thread state, scripted
// collaborators, and the expectations to verify against the observed run.
type Scenario struct {
	ID           string
	InitialState agent.ThreadState
	// MockTools scripts toolexec.MockExecutor's Responses directly: one
	// result sequence per tool name, consumed in order and repeating the
	// last entry once exhausted.
	MockTools map[string][]toolexec.Result
	// LLMResponses scripts model.MockChatModel's Responses (as plain text;
	// the eval harness wraps each string in a ChatOut), consumed across
	// every analyzeRecord/processResponse call in the run, in order.
	LLMResponses []string
	// Interrupts is the FIFO resume-value script fed to every wait-node
	// suspension encountered, in order.
	Interrupts []agent.ResumeInput
	Expected   Expected
}

// Expected is the set of checks a Scenario's observed run must satisfy.
type Expected struct {
	NodeSequence []string
	// FinalState lists dotted-path keys into the final agent.ThreadState
	// (e.g. "record.status", "attempts", "lastChannel") that must
	// deep-equal the given value.
	FinalState  map[string]any
	ToolsCalled []ExpectedToolCall
	LLMResponses []ExpectedLLMResponse
}

// ExpectedToolCall requires at least one recorded MockCall named Name to
// exist; when Mode is MatchStrict, Args must deep-equal some such call's
// Args, and when MatchJudge, an LLM judge decides semantic equivalence.
type ExpectedToolCall struct {
	Name string
	Args map[string]any
	Mode MatchMode
}

// ExpectedLLMResponse requires the concatenation of assistant messages
// produced at Node to contain every Contains substring. When Mode is
// MatchJudge, an LLM judge decides semantic equivalence against the single
// entry in Contains instead of literal substring matching.
type ExpectedLLMResponse struct {
	Node     string
	Contains []string
	Mode     MatchMode
}
