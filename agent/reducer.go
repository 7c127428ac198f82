package agent

// Reduce merges a partial ThreadState produced by a node into the
// previously committed state, per §4.1: scalar fields are last-write-wins
// (only replaced when the partial carries a non-zero value), messages
// append, and record/contact replace wholesale when provided.
func Reduce(prev, partial ThreadState) ThreadState {
	next := prev

	if partial.Record.ID != "" {
		next.Record = partial.Record
	}
	if partial.Contact.ID != "" {
		next.Contact = partial.Contact
	}

	if len(partial.Messages) > 0 {
		merged := make([]Message, 0, len(prev.Messages)+len(partial.Messages))
		merged = append(merged, prev.Messages...)
		merged = append(merged, partial.Messages...)
		next.Messages = merged
	}

	if partial.Attempts != 0 {
		next.Attempts = partial.Attempts
	}
	if partial.LastChannel != "" {
		next.LastChannel = partial.LastChannel
	}
	if partial.WorkflowStatus != "" {
		next.WorkflowStatus = partial.WorkflowStatus
	}
	if partial.CurrentNode != "" {
		next.CurrentNode = partial.CurrentNode
	}
	if partial.NextNode != "" {
		next.NextNode = partial.NextNode
	}

	if partial.WaitingForResponse != nil {
		next.WaitingForResponse = partial.WaitingForResponse
	}

	return next
}
