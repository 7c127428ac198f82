package eval

import (
	"context"
	"fmt"

	"github.com/outreachrun/agentgraph/agent"
	"github.com/outreachrun/agentgraph/graph/emit"
	"github.com/outreachrun/agentgraph/graph/store"
	"github.com/outreachrun/agentgraph/llm"
	"github.com/outreachrun/agentgraph/llm/model"
	"github.com/outreachrun/agentgraph/toolexec"
)

// maxOuterIterations bounds the number of resumes a Runner will drive a
// single scenario through, matching §4.9's "cap at 50
// outer iterations." The graph.Engine itself already enforces this per
// Run/Resume call; this bounds the number of resume round-trips the runner
// is willing to attempt on top of that.
const maxOuterIterations = 50

// Observation is everything Verify needs to check a scenario's expectations
// against what a run actually did.
type Observation struct {
	NodeSequence    []string
	FinalState      agent.ThreadState
	ToolCalls       []toolexec.MockCall
	AssistantByNode map[string][]string
}

// Runner builds a fresh agent.Runtime per scenario over an in-memory store,
// a scripted tool executor, and a scripted chat model, then drives the
// scenario to completion or a final WAITING_HUMAN suspension.
type Runner struct{}

// NewRunner returns a Runner. It carries no state of its own; every Run
// call builds its own isolated store/executor/runtime so scenarios never
// interfere with each other.
func NewRunner() *Runner { return &Runner{} }

// Run drives s to completion: invoke the graph, and for every suspension
// encountered, resume with the next scripted interrupt value until the
// script is exhausted, at which point the last snapshot is returned with
// WorkflowStatus forced to WAITING_HUMAN if it is still suspended.
func (r *Runner) Run(ctx context.Context, s Scenario) (Observation, error) {
	threadID := s.ID
	if threadID == "" {
		threadID = "eval-thread"
	}

	memStore := store.NewMemStore[agent.ThreadState]()
	tools := toolexec.NewMockExecutor(s.MockTools)
	chat := &model.MockChatModel{Responses: textsToChatOut(s.LLMResponses)}
	invoker := llm.NewDefaultInvoker(chat, tools, nil, nil)

	engine, err := agent.Compile(agent.WorkflowDefinition{}, invoker, tools, memStore, emit.NewNullEmitter())
	if err != nil {
		return Observation{}, fmt.Errorf("compile: %w", err)
	}
	runtime := agent.NewRuntime(engine, memStore, memStore, "eval-runner")

	final, err := runtime.Invoke(ctx, threadID, s.InitialState)
	if err != nil {
		return Observation{}, fmt.Errorf("invoke: %w", err)
	}

	interruptIdx := 0
	for iter := 0; iter < maxOuterIterations; iter++ {
		tuple, err := memStore.GetTuple(ctx, threadID)
		if err != nil {
			return Observation{}, fmt.Errorf("get tuple: %w", err)
		}
		if !tuple.Suspended {
			break
		}
		if interruptIdx >= len(s.Interrupts) {
			final = tuple.State
			final.WorkflowStatus = agent.WorkflowWaitingHuman
			if err := memStore.Put(ctx, store.Tuple[agent.ThreadState]{
				ThreadID: threadID, Step: tuple.Step, NodeID: tuple.NodeID, State: final,
			}); err != nil {
				return Observation{}, fmt.Errorf("finalize waiting snapshot: %w", err)
			}
			break
		}

		resumeValue := s.Interrupts[interruptIdx]
		interruptIdx++
		final, err = runtime.Resume(ctx, threadID, resumeValue)
		if err != nil {
			return Observation{}, fmt.Errorf("resume: %w", err)
		}
	}

	history, err := runtime.History(ctx, threadID)
	if err != nil {
		return Observation{}, fmt.Errorf("history: %w", err)
	}

	sequence := make([]string, 0, len(history))
	assistantByNode := make(map[string][]string)
	prevLen := 0
	for _, tuple := range history {
		// The terminal sentinel node (EndNode) is a routing implementation
		// detail, not one of the named node kinds a scenario's expected
		// nodeSequence lists. A wait-interrupt node also produces two
		// adjacent checkpoints for one logical visit — a suspend commit,
		// then a resume commit at the same node once an external value
		// arrives — which collapse to a single sequence entry.
		if tuple.NodeID != "" && tuple.NodeID != agent.EndNode {
			if len(sequence) == 0 || sequence[len(sequence)-1] != tuple.NodeID {
				sequence = append(sequence, tuple.NodeID)
			}
		}
		msgs := tuple.State.Messages
		if len(msgs) > prevLen {
			for _, m := range msgs[prevLen:] {
				if m.Role == agent.RoleAssistant {
					assistantByNode[tuple.NodeID] = append(assistantByNode[tuple.NodeID], m.Content)
				}
			}
		}
		prevLen = len(msgs)
	}

	return Observation{
		NodeSequence:    sequence,
		FinalState:      final,
		ToolCalls:       tools.Calls(),
		AssistantByNode: assistantByNode,
	}, nil
}

func textsToChatOut(texts []string) []model.ChatOut {
	out := make([]model.ChatOut, len(texts))
	for i, t := range texts {
		out[i] = model.ChatOut{Text: t}
	}
	return out
}
