// Package model provides LLM chat provider adapters: a single ChatModel
// interface wrapping OpenAI, Anthropic, and Google backends, so the
// invocation layer above never imports a provider SDK directly.
package model

import "context"

// ChatModel sends a conversation to an LLM and returns its response,
// abstracting over provider-specific request/response shapes.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message is a single entry in an LLM conversation.
type Message struct {
	Role    string
	Content string
}

// Standard role constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolSpec describes a tool the LLM may call, in JSON Schema terms.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ChatOut is the LLM's response: free text, tool calls, or both.
type ChatOut struct {
	Text      string
	ToolCalls []ToolCall
}

// ToolCall is a request from the LLM to invoke a named tool with parsed
// input arguments.
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]any
}
