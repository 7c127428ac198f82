package agent

import (
	"context"

	"github.com/outreachrun/agentgraph/graph"
)

// ResumeInput is the value an external caller supplies to Resume. Which
// fields matter depends on which wait node is being resumed:
// waitForResponse reads Channel/Content/ChannelMessageID/Timeout,
// humanReview reads Approved/Notes/NextAction.
type ResumeInput struct {
	// waitForResponse fields.
	Channel          Channel
	Content          string
	ChannelMessageID string
	Timeout          bool

	// humanReview fields.
	Approved  bool
	Notes     string
	NextAction HumanDecisionAction
}

// HumanDecisionAction is the outcome a human reviewer picks.
type HumanDecisionAction string

const (
	ActionContinue HumanDecisionAction = "continue"
	ActionEscalate HumanDecisionAction = "escalate"
	ActionClose    HumanDecisionAction = "close"
)

// ResumeValue returns the ResumeInput threaded through ctx by
// graph.Engine.Resume, if this invocation is a re-entry rather than a first
// entry. A wait node checks the second return value: false means "suspend",
// true means "an external value arrived, proceed."
func ResumeValue(ctx context.Context) (ResumeInput, bool) {
	v, ok := graph.ResumeValue(ctx)
	if !ok {
		return ResumeInput{}, false
	}
	input, ok := v.(ResumeInput)
	return input, ok
}
