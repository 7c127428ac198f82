package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/outreachrun/agentgraph/graph"
	"github.com/outreachrun/agentgraph/llm"
	"github.com/outreachrun/agentgraph/llm/model"
	"github.com/outreachrun/agentgraph/toolexec"
)

// Legacy topology node ids, shared between the fixed-topology compiler and
// the node implementations that set NextNode to route between them.
const (
	NodeAnalyzeRecord   = "analyzeRecord"
	NodeSendEmail       = "sendEmail"
	NodeSendCall        = "sendCall"
	NodeWaitForResponse = "waitForResponse"
	NodeProcessResponse = "processResponse"
	NodeHumanReview     = "humanReview"
	NodeMarkComplete    = "markComplete"
)

// ToolExecutor is the capability node implementations dispatch tool calls
// through. toolexec.Executor and toolexec.MockExecutor both satisfy it.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]any) toolexec.Result
}

// RouteKey extracts the routing value graph.Edge conditions compare
// against: ThreadState.NextNode, per §4.4.
func RouteKey(state ThreadState) string {
	return state.NextNode
}

func toModelMessages(messages []Message) []model.Message {
	out := make([]model.Message, len(messages))
	for i, m := range messages {
		out[i] = model.Message{Role: string(m.Role), Content: m.Content}
	}
	return out
}

func lastAssistantContent(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleAssistant {
			return messages[i].Content
		}
	}
	return ""
}

func lastMessageContent(messages []Message) string {
	if len(messages) == 0 {
		return ""
	}
	return messages[len(messages)-1].Content
}

func llmError(nodeID string, err error) graph.NodeResult[ThreadState] {
	return graph.NodeResult[ThreadState]{Err: &NodeError{
		Message: err.Error(),
		Code:    "LLMUnavailable",
		NodeID:  nodeID,
		Cause:   err,
	}}
}

// AnalyzeNode is the LLM decision node (§4.3.1). It builds a summary of the
// record, contact, and recent conversation, invokes the LLM, and routes
// based on a case-insensitive keyword match over the response text.
type AnalyzeNode struct {
	Invoker llm.Invoker
	Context llm.Context
}

func NewAnalyzeNode(invoker llm.Invoker, llmCtx llm.Context) *AnalyzeNode {
	return &AnalyzeNode{Invoker: invoker, Context: llmCtx}
}

func (n *AnalyzeNode) Run(ctx context.Context, state ThreadState) graph.NodeResult[ThreadState] {
	summary := buildAnalyzeSummary(state)
	history := llm.RewriteToolMessages(toModelMessages(state.Messages))

	text, err := n.Invoker.InvokeLLM(ctx, history, summary, n.Context)
	if err != nil {
		return llmError(NodeAnalyzeRecord, err)
	}

	next := matchDecision(text)
	delta := ThreadState{
		CurrentNode: NodeAnalyzeRecord,
		NextNode:    next,
		Messages: []Message{{
			Role:     RoleAssistant,
			Content:  text,
			Metadata: map[string]any{"decision": next},
		}},
	}
	return graph.NodeResult[ThreadState]{Delta: delta, Route: graph.Continue()}
}

// buildAnalyzeSummary assembles the textual context the analyze node hands
// the LLM as its user-turn input: record, contact, attempt count, last
// channel, and recent conversation.
func buildAnalyzeSummary(state ThreadState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Record %q (status=%s, priority=%s, type=%s)\n",
		state.Record.Title, state.Record.Status, state.Record.Priority, state.Record.Type)
	fmt.Fprintf(&b, "Contact: %s\n", state.Contact.DisplayName)
	fmt.Fprintf(&b, "Attempts so far: %d, last channel: %s\n", state.Attempts, state.LastChannel)

	if len(state.Messages) > 0 {
		b.WriteString("Recent messages:\n")
		start := 0
		if len(state.Messages) > 10 {
			start = len(state.Messages) - 10
		}
		for _, m := range state.Messages[start:] {
			fmt.Fprintf(&b, "- [%s] %s\n", m.Role, m.Content)
		}
	}

	return b.String()
}

// matchDecision implements the keyword table in §4.3.1. Matching is
// deliberately loose substring matching, per the design note in §9: it
// will match "needs_email" inside unrelated prose, and is not tightened
// without explicit product sign-off.
func matchDecision(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "needs_email"), strings.Contains(lower, "send email"):
		return NodeSendEmail
	case strings.Contains(lower, "needs_call"), strings.Contains(lower, "send call"):
		return NodeSendCall
	case strings.Contains(lower, "escalate"):
		return NodeHumanReview
	default:
		return NodeMarkComplete
	}
}

// SendEffectNode is the send-effect node (§4.3.2), parameterized by which
// outbound tool and channel it drives.
type SendEffectNode struct {
	ToolName string
	Channel  Channel
	Tools    ToolExecutor
}

func NewSendEmailNode(tools ToolExecutor) *SendEffectNode {
	return &SendEffectNode{ToolName: NodeSendEmail, Channel: ChannelEmail, Tools: tools}
}

func NewSendCallNode(tools ToolExecutor) *SendEffectNode {
	return &SendEffectNode{ToolName: NodeSendCall, Channel: ChannelPhone, Tools: tools}
}

func (n *SendEffectNode) Run(ctx context.Context, state ThreadState) graph.NodeResult[ThreadState] {
	args := n.buildArgs(state)
	result := n.Tools.Execute(ctx, n.ToolName, args)

	content := fmt.Sprintf("%s succeeded", n.ToolName)
	if !result.Success {
		content = toolexec.DescribeFailure(n.ToolName, result)
	}

	delta := ThreadState{
		CurrentNode:        n.ToolName,
		Attempts:           state.Attempts + 1,
		LastChannel:        n.Channel,
		WaitingForResponse: BoolPtr(true),
		Messages:           []Message{{Role: RoleTool, Content: content}},
		NextNode:           NodeWaitForResponse,
	}
	return graph.NodeResult[ThreadState]{Delta: delta, Route: graph.Continue()}
}

func (n *SendEffectNode) buildArgs(state ThreadState) map[string]any {
	body := lastAssistantContent(state.Messages)
	switch n.ToolName {
	case NodeSendEmail:
		to := ""
		if state.Contact.Email != nil {
			to = *state.Contact.Email
		}
		return map[string]any{"to": to, "subject": state.Record.Title, "body": body}
	case NodeSendCall:
		phone := ""
		if state.Contact.Phone != nil {
			phone = *state.Contact.Phone
		}
		return map[string]any{"phone": phone, "talkingPoints": body}
	default:
		return map[string]any{}
	}
}

// WaitKind distinguishes the two wait-interrupt node instances: waiting for
// an inbound channel reply, or waiting for a human reviewer's decision.
type WaitKind string

const (
	WaitKindResponse WaitKind = "waitForResponse"
	WaitKindReview   WaitKind = "humanReview"
)

// WaitInterruptNode is the wait-interrupt node (§4.3.3). On first entry it
// suspends the thread; on resume it reads the ResumeInput threaded through
// ctx and produces the partial state appropriate to its Kind.
type WaitInterruptNode struct {
	Kind WaitKind
}

func NewWaitForResponseNode() *WaitInterruptNode {
	return &WaitInterruptNode{Kind: WaitKindResponse}
}

func NewHumanReviewNode() *WaitInterruptNode {
	return &WaitInterruptNode{Kind: WaitKindReview}
}

func (n *WaitInterruptNode) Run(ctx context.Context, state ThreadState) graph.NodeResult[ThreadState] {
	resume, ok := ResumeValue(ctx)
	if !ok {
		return graph.NodeResult[ThreadState]{Route: graph.Suspend(map[string]any{"kind": string(n.Kind)})}
	}

	if n.Kind == WaitKindReview {
		return n.runHumanReview(resume)
	}
	return n.runWaitForResponse(resume)
}

func (n *WaitInterruptNode) runWaitForResponse(resume ResumeInput) graph.NodeResult[ThreadState] {
	delta := ThreadState{
		CurrentNode:        NodeWaitForResponse,
		WaitingForResponse: BoolPtr(false),
		Messages: []Message{{
			Role:             RoleUser,
			Content:          resume.Content,
			Channel:          resume.Channel,
			ChannelMessageID: resume.ChannelMessageID,
		}},
		NextNode: NodeProcessResponse,
	}
	return graph.NodeResult[ThreadState]{Delta: delta, Route: graph.Continue()}
}

// runHumanReview implements §4.3.3's humanReview contract. The distilled
// text fixes nextNode to "analyzeRecord" unconditionally, but §4.4's edge
// table routes humanReview to either analyzeRecord or END depending on
// state.nextNode — the only way both are consistent is for a close
// decision to route to the terminal sentinel instead, which is what's
// implemented here (see DESIGN.md).
func (n *WaitInterruptNode) runHumanReview(resume ResumeInput) graph.NodeResult[ThreadState] {
	status := WorkflowRunning
	next := NodeAnalyzeRecord
	if resume.NextAction == ActionClose {
		status = WorkflowCompleted
		next = EndNode
	}

	delta := ThreadState{
		CurrentNode:    NodeHumanReview,
		WorkflowStatus: status,
		Messages:       []Message{{Role: RoleUser, Content: resume.Notes}},
		NextNode:       next,
	}
	return graph.NodeResult[ThreadState]{Delta: delta, Route: graph.Continue()}
}

// ProcessResponseNode is the process-response node (§4.3.4): it invokes the
// LLM with full history plus the latest inbound message and always routes
// back to analyzeRecord.
type ProcessResponseNode struct {
	Invoker llm.Invoker
	Context llm.Context
}

func NewProcessResponseNode(invoker llm.Invoker, llmCtx llm.Context) *ProcessResponseNode {
	return &ProcessResponseNode{Invoker: invoker, Context: llmCtx}
}

func (n *ProcessResponseNode) Run(ctx context.Context, state ThreadState) graph.NodeResult[ThreadState] {
	history := llm.RewriteToolMessages(toModelMessages(state.Messages))
	latest := lastMessageContent(state.Messages)

	text, err := n.Invoker.InvokeLLM(ctx, history, latest, n.Context)
	if err != nil {
		return llmError(NodeProcessResponse, err)
	}

	delta := ThreadState{
		CurrentNode: NodeProcessResponse,
		Messages:    []Message{{Role: RoleAssistant, Content: text}},
		NextNode:    NodeAnalyzeRecord,
	}
	return graph.NodeResult[ThreadState]{Delta: delta, Route: graph.Continue()}
}

// TerminalNode is the markComplete node (§4.3.5): it marks the record DONE
// and ends the run.
type TerminalNode struct {
	Tools ToolExecutor
}

func NewTerminalNode(tools ToolExecutor) *TerminalNode {
	return &TerminalNode{Tools: tools}
}

func (n *TerminalNode) Run(ctx context.Context, state ThreadState) graph.NodeResult[ThreadState] {
	result := n.Tools.Execute(ctx, "updateRecordStatus", map[string]any{
		"id":     state.Record.ID,
		"status": string(StatusDone),
	})

	content := "updateRecordStatus succeeded"
	if !result.Success {
		content = toolexec.DescribeFailure("updateRecordStatus", result)
	}

	record := state.Record
	record.Status = StatusDone

	delta := ThreadState{
		CurrentNode:    NodeMarkComplete,
		WorkflowStatus: WorkflowCompleted,
		Record:         record,
		Messages:       []Message{{Role: RoleTool, Content: content}},
		NextNode:       EndNode,
	}
	return graph.NodeResult[ThreadState]{Delta: delta, Route: graph.Continue()}
}

// EndNodeImpl is the terminal sentinel node every routable path with
// NextNode == EndNode resolves to. It carries no state change and always
// stops the run.
type EndNodeImpl struct{}

func (EndNodeImpl) Run(ctx context.Context, state ThreadState) graph.NodeResult[ThreadState] {
	return graph.NodeResult[ThreadState]{Route: graph.Stop()}
}
