package emit

import "context"

// NullEmitter discards every event. It is the default for production
// deployments that export events through the checkpointer's own metrics/logs
// instead, and for tests that don't care about observability output.
type NullEmitter struct{}

// NewNullEmitter returns an Emitter that discards everything it receives.
func NewNullEmitter() *NullEmitter { return &NullEmitter{} }

func (n *NullEmitter) Emit(Event) {}

func (n *NullEmitter) EmitBatch(context.Context, []Event) error { return nil }

func (n *NullEmitter) Flush(context.Context) error { return nil }
