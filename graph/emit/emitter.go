package emit

import "context"

// Emitter receives observability events from a run. Implementations must be
// non-blocking and must never panic; a slow or failing observability backend
// must not take down a workflow.
type Emitter interface {
	// Emit sends a single event.
	Emit(event Event)

	// EmitBatch sends multiple events in one call, for batching backends.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until any buffered events have been delivered.
	Flush(ctx context.Context) error
}
