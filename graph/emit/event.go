// Package emit provides pluggable observability for graph execution: every
// node start/end, interrupt, and node error can be emitted to a log,
// an OpenTelemetry tracer, or nowhere at all.
package emit

// Event is a single observability event emitted during a run.
type Event struct {
	// ThreadID identifies the run this event belongs to.
	ThreadID string

	// Step is the checkpoint step number at the time of the event. Zero for
	// run-level events emitted before the first checkpoint exists.
	Step int

	// NodeID identifies the node involved, empty for run-level events.
	NodeID string

	// Msg names the event kind. The engine emits "node_start", "node_end",
	// "interrupt", and "run_error".
	Msg string

	// Meta carries event-specific structured data, e.g. "error", "next",
	// "payload", "terminal".
	Meta map[string]any
}
