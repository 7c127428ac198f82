package toolexec

import "errors"

// ErrTransient marks a handler failure as retryable (spec taxonomy:
// ToolTransient). Wrap it with fmt.Errorf("%w: ...", ErrTransient, ...) from
// a Handler to set Result.Retryable.
var ErrTransient = errors.New("toolexec: transient tool failure")

// ErrUnknownTool identifies a call naming a tool with no registered handler
// (spec taxonomy: UnknownTool).
var ErrUnknownTool = errors.New("toolexec: unknown tool")
