package llm

import "errors"

// ErrUnavailable wraps network/provider failures from a ChatModel backend
// (spec taxonomy: LLMUnavailable). Safe to retry by re-invoking the
// workflow with the same thread id.
var ErrUnavailable = errors.New("llm: provider unavailable")

// ErrToolArgsInvalid means the LLM returned tool-call arguments that could
// not be parsed as JSON (spec taxonomy: ToolArgsInvalid).
var ErrToolArgsInvalid = errors.New("llm: tool call arguments invalid")

// ErrToolLoopExceeded means a single InvokeLLM call exceeded the
// tool-call iteration cap (spec taxonomy: ToolLoopExceeded).
var ErrToolLoopExceeded = errors.New("llm: tool call loop exceeded")
