package graph

import "context"

// contextKey is a private type for context keys, so values set by this
// package can never collide with keys from unrelated packages.
type contextKey string

const (
	// threadIDKey carries the identifier of the thread currently executing.
	threadIDKey contextKey = "agentgraph.thread_id"

	// stepKey carries the current step number.
	stepKey contextKey = "agentgraph.step"

	// nodeIDKey carries the id of the node currently executing.
	nodeIDKey contextKey = "agentgraph.node_id"

	// resumeValueKey carries the value a caller passed to Resume, visible
	// only to the node being re-entered after a suspend.
	resumeValueKey contextKey = "agentgraph.resume_value"
)

func withStepMeta(ctx context.Context, threadID string, step int, nodeID string) context.Context {
	ctx = context.WithValue(ctx, threadIDKey, threadID)
	ctx = context.WithValue(ctx, stepKey, step)
	ctx = context.WithValue(ctx, nodeIDKey, nodeID)
	return ctx
}

// ThreadID returns the thread id the current node is executing under, if
// any.
func ThreadID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(threadIDKey).(string)
	return v, ok
}

// Step returns the current step number, if any.
func Step(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(stepKey).(int)
	return v, ok
}

// CurrentNodeID returns the id of the node currently executing, if any.
func CurrentNodeID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(nodeIDKey).(string)
	return v, ok
}

// WithResumeValue attaches a resume value to ctx. The engine calls this
// internally before re-entering a suspended node's Run on Resume; nodes read
// it back with ResumeValue.
func WithResumeValue(ctx context.Context, v any) context.Context {
	return context.WithValue(ctx, resumeValueKey, v)
}

// ResumeValue returns the value passed to Resume, if ctx was produced by a
// resume rather than a fresh Run. A wait node checks this to decide whether
// it is being entered for the first time (ok == false, so it should suspend)
// or re-entered with an external response (ok == true, so it should route
// on the value).
func ResumeValue(ctx context.Context) (any, bool) {
	v := ctx.Value(resumeValueKey)
	return v, v != nil
}
