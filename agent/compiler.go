package agent

import (
	"context"
	"strings"

	"github.com/outreachrun/agentgraph/graph"
	"github.com/outreachrun/agentgraph/graph/emit"
	"github.com/outreachrun/agentgraph/graph/store"
	"github.com/outreachrun/agentgraph/llm"
)

// Compile builds a graph.Engine[ThreadState] for def. When
// def.GraphDefinition is nil, it builds the fixed legacy topology of §4.4;
// otherwise it compiles the declarative node/edge description.
func Compile(def WorkflowDefinition, invoker llm.Invoker, tools ToolExecutor, st store.Store[ThreadState], emitter emit.Emitter, opts ...graph.Option) (*graph.Engine[ThreadState], error) {
	engine := graph.New[ThreadState](Reduce, st, emitter, RouteKey, opts...)

	if err := engine.Add(EndNode, EndNodeImpl{}); err != nil {
		return nil, err
	}

	if def.GraphDefinition == nil {
		if err := compileLegacyTopology(engine, invoker, tools, llmContextFor(def, nil)); err != nil {
			return nil, err
		}
		return engine, nil
	}

	if err := compileDeclarative(engine, def, invoker, tools); err != nil {
		return nil, err
	}
	return engine, nil
}

// llmContextFor builds the llm.Context a node's LLM calls use, appending
// nodeDef's Prompt to the workflow-level system prompt when it is
// non-empty.
func llmContextFor(def WorkflowDefinition, nodeDef *NodeDef) llm.Context {
	systemPrompt := def.SystemPrompt
	if nodeDef != nil && nodeDef.Prompt != "" {
		if systemPrompt != "" {
			systemPrompt += "\n\n"
		}
		systemPrompt += nodeDef.Prompt
	}
	return llm.Context{
		AllowedTools: def.AllowedTools,
		Model:        def.Model,
		Temperature:  def.Temperature,
		SystemPrompt: systemPrompt,
	}
}

// compileLegacyTopology wires the fixed graph described in §4.4:
//
//	START → analyzeRecord
//	analyzeRecord --cond(nextNode)--> {sendEmail|sendCall|humanReview|markComplete}
//	sendEmail → waitForResponse
//	sendCall → waitForResponse
//	waitForResponse --cond(nextNode)--> processResponse | END
//	processResponse → analyzeRecord
//	humanReview --cond(nextNode)--> analyzeRecord | END
//	markComplete --cond(nextNode)--> END
func compileLegacyTopology(engine *graph.Engine[ThreadState], invoker llm.Invoker, tools ToolExecutor, llmCtx llm.Context) error {
	nodes := map[string]graph.Node[ThreadState]{
		NodeAnalyzeRecord:   NewAnalyzeNode(invoker, llmCtx),
		NodeSendEmail:       NewSendEmailNode(tools),
		NodeSendCall:        NewSendCallNode(tools),
		NodeWaitForResponse: NewWaitForResponseNode(),
		NodeProcessResponse: NewProcessResponseNode(invoker, llmCtx),
		NodeHumanReview:     NewHumanReviewNode(),
		NodeMarkComplete:    NewTerminalNode(tools),
	}
	for id, node := range nodes {
		if err := engine.Add(id, node); err != nil {
			return err
		}
	}
	if err := engine.StartAt(NodeAnalyzeRecord); err != nil {
		return err
	}

	edges := []graph.Edge[ThreadState]{
		{From: NodeAnalyzeRecord, To: NodeSendEmail, Condition: NodeSendEmail},
		{From: NodeAnalyzeRecord, To: NodeSendCall, Condition: NodeSendCall},
		{From: NodeAnalyzeRecord, To: NodeHumanReview, Condition: NodeHumanReview},
		{From: NodeAnalyzeRecord, To: NodeMarkComplete, Condition: NodeMarkComplete},
		{From: NodeSendEmail, To: NodeWaitForResponse},
		{From: NodeSendCall, To: NodeWaitForResponse},
		{From: NodeWaitForResponse, To: NodeProcessResponse, Condition: NodeProcessResponse},
		{From: NodeWaitForResponse, To: EndNode, Condition: EndNode},
		{From: NodeProcessResponse, To: NodeAnalyzeRecord, Condition: NodeAnalyzeRecord},
		{From: NodeHumanReview, To: NodeAnalyzeRecord, Condition: NodeAnalyzeRecord},
		{From: NodeHumanReview, To: EndNode, Condition: EndNode},
		{From: NodeMarkComplete, To: EndNode, Condition: EndNode},
	}
	for _, e := range edges {
		if err := engine.Connect(e); err != nil {
			return err
		}
	}
	return nil
}

// compileDeclarative builds an engine from a WorkflowDefinition's
// GraphDefinition: one generic node per NodeDef, typed llm/tool/interrupt,
// wired by its Next spec.
func compileDeclarative(engine *graph.Engine[ThreadState], def WorkflowDefinition, invoker llm.Invoker, tools ToolExecutor) error {
	gd := def.GraphDefinition

	for name, nodeDef := range gd.Nodes {
		node, err := buildDeclarativeNode(name, nodeDef, def, invoker, tools)
		if err != nil {
			return err
		}
		if err := engine.Add(name, node); err != nil {
			return err
		}
	}

	if err := engine.StartAt(gd.Entrypoint); err != nil {
		return err
	}

	for name, nodeDef := range gd.Nodes {
		if err := connectDeclarativeEdges(engine, name, nodeDef.Next); err != nil {
			return err
		}
	}
	return nil
}

func rewriteEnd(target string) string {
	if target == "__end__" {
		return EndNode
	}
	return target
}

func connectDeclarativeEdges(engine *graph.Engine[ThreadState], from string, next NextSpec) error {
	if next.Static != "" {
		return engine.Connect(graph.Edge[ThreadState]{From: from, To: rewriteEnd(next.Static)})
	}
	for _, c := range next.Cases {
		target := rewriteEnd(c.Target)
		if err := engine.Connect(graph.Edge[ThreadState]{From: from, To: target, Condition: target}); err != nil {
			return err
		}
	}
	return nil
}

func buildDeclarativeNode(name string, nodeDef NodeDef, def WorkflowDefinition, invoker llm.Invoker, tools ToolExecutor) (graph.Node[ThreadState], error) {
	switch nodeDef.Type {
	case "llm":
		return &declarativeLLMNode{
			id:      name,
			invoker: invoker,
			llmCtx:  llmContextFor(def, &nodeDef),
			next:    nodeDef.Next,
		}, nil
	case "tool":
		return &declarativeToolNode{
			id:      name,
			toolRef: nodeDef.Tool,
			args:    nodeDef.Args,
			tools:   tools,
			next:    nodeDef.Next,
		}, nil
	case "interrupt":
		return &declarativeInterruptNode{id: name, next: nodeDef.Next}, nil
	default:
		return nil, ErrUnknownNode
	}
}

// declarativeLLMNode generalizes AnalyzeNode/ProcessResponseNode: it
// invokes the LLM and routes either to a static next node, or — when Next
// carries conditional cases — by matching the response text against each
// case's Condition string, the same substring-match policy §4.3.1 uses.
type declarativeLLMNode struct {
	id      string
	invoker llm.Invoker
	llmCtx  llm.Context
	next    NextSpec
}

func (n *declarativeLLMNode) Run(ctx context.Context, state ThreadState) graph.NodeResult[ThreadState] {
	history := llm.RewriteToolMessages(toModelMessages(state.Messages))
	summary := buildAnalyzeSummary(state)

	text, err := n.invoker.InvokeLLM(ctx, history, summary, n.llmCtx)
	if err != nil {
		return llmError(n.id, err)
	}

	nextNode := n.next.Static
	if len(n.next.Cases) > 0 {
		nextNode = matchConditions(text, n.next.Cases)
	}

	delta := ThreadState{
		CurrentNode: n.id,
		NextNode:    rewriteEnd(nextNode),
		Messages: []Message{{
			Role:     RoleAssistant,
			Content:  text,
			Metadata: map[string]any{"decision": nextNode},
		}},
	}
	return graph.NodeResult[ThreadState]{Delta: delta, Route: graph.Continue()}
}

// matchConditions finds the first case whose Condition appears
// case-insensitively in text, falling back to the last case (conventionally
// the default/else branch) if none match.
func matchConditions(text string, cases []NextCase) string {
	lower := strings.ToLower(text)
	for _, c := range cases {
		if strings.Contains(lower, strings.ToLower(c.Condition)) {
			return c.Target
		}
	}
	return cases[len(cases)-1].Target
}

// declarativeToolNode generalizes SendEffectNode/TerminalNode: it executes
// one named tool with a small templated argument set and routes to its
// static Next, or — when Next carries conditional cases — by matching the
// tool's outcome text against each case's Condition string.
type declarativeToolNode struct {
	id      string
	toolRef string
	args    map[string]string
	tools   ToolExecutor
	next    NextSpec
}

func (n *declarativeToolNode) Run(ctx context.Context, state ThreadState) graph.NodeResult[ThreadState] {
	args := make(map[string]any, len(n.args))
	for k, template := range n.args {
		args[k] = resolveArgTemplate(template, state)
	}

	result := n.tools.Execute(ctx, n.toolRef, args)
	content := n.toolRef + " succeeded"
	if !result.Success {
		content = n.toolRef + " failed: " + result.Message
	}

	nextNode := n.next.Static
	if len(n.next.Cases) > 0 {
		nextNode = matchConditions(content, n.next.Cases)
	}

	delta := ThreadState{
		CurrentNode: n.id,
		Messages:    []Message{{Role: RoleTool, Content: content}},
		NextNode:    rewriteEnd(nextNode),
	}
	return graph.NodeResult[ThreadState]{Delta: delta, Route: graph.Continue()}
}

// resolveArgTemplate replaces a template that is exactly one of a small set
// of {record.*}/{contact.*}/{lastMessage} placeholders with its value; any
// other template, including one that embeds a placeholder in longer text, is
// passed through literally.
func resolveArgTemplate(template string, state ThreadState) string {
	replacer := map[string]string{
		"{record.id}":      state.Record.ID,
		"{record.title}":   state.Record.Title,
		"{record.status}":  string(state.Record.Status),
		"{contact.name}":   state.Contact.DisplayName,
		"{contact.email}":  derefOr(state.Contact.Email, ""),
		"{contact.phone}":  derefOr(state.Contact.Phone, ""),
		"{lastMessage}":    lastAssistantContent(state.Messages),
	}
	if resolved, ok := replacer[template]; ok {
		return resolved
	}
	return template
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

// declarativeInterruptNode generalizes WaitInterruptNode: it suspends on
// first entry and, on resume, routes by matching the resume content/notes
// against conditional cases, or falls back to the static next.
type declarativeInterruptNode struct {
	id   string
	next NextSpec
}

func (n *declarativeInterruptNode) Run(ctx context.Context, state ThreadState) graph.NodeResult[ThreadState] {
	resume, ok := ResumeValue(ctx)
	if !ok {
		return graph.NodeResult[ThreadState]{Route: graph.Suspend(map[string]any{"node": n.id})}
	}

	matchText := resume.Content
	if resume.Notes != "" {
		matchText = resume.Notes
	}

	nextNode := n.next.Static
	if len(n.next.Cases) > 0 {
		nextNode = matchConditions(matchText, n.next.Cases)
	}

	delta := ThreadState{
		CurrentNode: n.id,
		Messages: []Message{{
			Role:             RoleUser,
			Content:          matchText,
			Channel:          resume.Channel,
			ChannelMessageID: resume.ChannelMessageID,
		}},
		NextNode: rewriteEnd(nextNode),
	}
	return graph.NodeResult[ThreadState]{Delta: delta, Route: graph.Continue()}
}
