// Package llm implements the tool-calling invocation loop between the
// workflow engine and a model.ChatModel backend: message assembly, tool
// catalogue filtering, and bounded chat/tool-call iteration.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/outreachrun/agentgraph/llm/model"
	"github.com/outreachrun/agentgraph/toolexec"
)

// maxToolIterations bounds how many chat/tool round-trips a single
// InvokeLLM call may make (§4.5).
const maxToolIterations = 15

// Context carries the per-call configuration InvokeLLM needs: which tools
// the LLM may use, which model/temperature to call, and the system prompt
// to prepend.
type Context struct {
	AllowedTools []string
	Model        string
	Temperature  float64
	SystemPrompt string
}

// ToolExecutor is the capability InvokeLLM dispatches tool calls through.
// Both toolexec.Executor and toolexec.MockExecutor satisfy it.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]any) toolexec.Result
}

// ToolCatalogue supplies the JSON-Schema tool specs available to the LLM,
// already keyed by name so InvokeLLM can filter to AllowedTools.
type ToolCatalogue map[string]model.ToolSpec

// Invoker is the contract node implementations call through; it hides the
// chat model, tool executor, and catalogue behind one method.
type Invoker interface {
	InvokeLLM(ctx context.Context, history []model.Message, userMessage string, toolCtx Context) (string, error)
}

// DefaultInvoker is the production Invoker: a ChatModel backend, a tool
// executor, a cost tracker, and the full tool catalogue it filters per
// call.
type DefaultInvoker struct {
	Chat      model.ChatModel
	Tools     ToolExecutor
	Catalogue ToolCatalogue
	Cost      *CostTracker
}

// NewDefaultInvoker constructs a DefaultInvoker. cost may be nil, in which
// case spend is not tracked.
func NewDefaultInvoker(chat model.ChatModel, tools ToolExecutor, catalogue ToolCatalogue, cost *CostTracker) *DefaultInvoker {
	return &DefaultInvoker{Chat: chat, Tools: tools, Catalogue: catalogue, Cost: cost}
}

// InvokeLLM implements §4.5: prepend the system prompt, filter the tool
// catalogue to AllowedTools, then loop sending the conversation to the
// chat model and executing any tool calls it requests, appending each
// tool's JSON-encoded result as a tool-role message, until the model
// answers with plain text or the iteration cap is reached.
func (inv *DefaultInvoker) InvokeLLM(ctx context.Context, history []model.Message, userMessage string, toolCtx Context) (string, error) {
	messages := make([]model.Message, 0, len(history)+2)
	if toolCtx.SystemPrompt != "" {
		messages = append(messages, model.Message{Role: model.RoleSystem, Content: toolCtx.SystemPrompt})
	}
	messages = append(messages, history...)
	if userMessage != "" {
		messages = append(messages, model.Message{Role: model.RoleUser, Content: userMessage})
	}

	tools := inv.filterTools(toolCtx.AllowedTools)

	for iteration := 0; iteration < maxToolIterations; iteration++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		out, err := inv.Chat.Chat(ctx, messages, tools)
		if err != nil {
			// A backend may itself report a fatal contract violation (e.g.
			// ErrToolArgsInvalid when it could not parse the model's own
			// tool-call arguments) rather than a transient failure; only
			// unclassified errors get folded into ErrUnavailable.
			if errors.Is(err, ErrToolArgsInvalid) {
				return "", err
			}
			return "", fmt.Errorf("%w: %s", ErrUnavailable, err)
		}
		if inv.Cost != nil {
			inv.Cost.RecordCall(toolCtx.Model, estimateTokens(messages), estimateTokens([]model.Message{{Content: out.Text}}))
		}

		if len(out.ToolCalls) == 0 {
			return out.Text, nil
		}

		if out.Text != "" {
			messages = append(messages, model.Message{Role: model.RoleAssistant, Content: out.Text})
		}

		for _, call := range out.ToolCalls {
			result := inv.Tools.Execute(ctx, call.Name, call.Input)
			encoded, err := json.Marshal(result)
			if err != nil {
				return "", fmt.Errorf("%w: encode result for %s: %s", ErrToolArgsInvalid, call.Name, err)
			}
			messages = append(messages, model.Message{
				Role:    model.RoleTool,
				Content: string(encoded),
			})
		}
	}

	return "", ErrToolLoopExceeded
}

// filterTools restricts the full catalogue to the names in allowed,
// preserving the order allowed lists them in. A nil/empty allowed list
// means no tools are offered this call.
func (inv *DefaultInvoker) filterTools(allowed []string) []model.ToolSpec {
	if len(allowed) == 0 || inv.Catalogue == nil {
		return nil
	}
	tools := make([]model.ToolSpec, 0, len(allowed))
	for _, name := range allowed {
		if spec, ok := inv.Catalogue[name]; ok {
			tools = append(tools, spec)
		}
	}
	return tools
}

// estimateTokens is a rough estimate (four characters per token) used only for
// cost observability, not billing; providers' own usage counters are more
// accurate but not all three backends this repository wires surface them
// uniformly through model.ChatOut.
func estimateTokens(messages []model.Message) int {
	total := 0
	for _, msg := range messages {
		total += len(msg.Content) / 4
	}
	return total
}

// RewriteToolMessages converts tool-role history entries to user-role with
// a "[System Action] " prefix before handing history to the chat model, per
// §9's message-to-LLM rewriting note. This is domain policy applied by
// callers (the analyze and process-response nodes), not InvokeLLM itself,
// since only those two node kinds read prior history back into a prompt.
func RewriteToolMessages(history []model.Message) []model.Message {
	rewritten := make([]model.Message, len(history))
	for i, msg := range history {
		if msg.Role == model.RoleTool {
			rewritten[i] = model.Message{
				Role:    model.RoleUser,
				Content: "[System Action] " + msg.Content,
			}
			continue
		}
		rewritten[i] = msg
	}
	return rewritten
}
