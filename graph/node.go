package graph

import "context"

// Node is a processing unit in the workflow graph. It receives the currently
// committed state and returns a NodeResult describing the partial update and
// the routing decision.
type Node[S any] interface {
	// Run executes the node's logic. Implementations must be safe to call
	// more than once for the same committed state (the engine re-enters a
	// wait node on resume with the same committed state plus a resume value
	// threaded through ctx; see ResumeValue in the agent package).
	Run(ctx context.Context, state S) NodeResult[S]
}

// NodeFunc adapts a plain function to the Node interface.
type NodeFunc[S any] func(ctx context.Context, state S) NodeResult[S]

// Run implements Node.
func (f NodeFunc[S]) Run(ctx context.Context, state S) NodeResult[S] {
	return f(ctx, state)
}

// NodeResult is the outcome of one node execution.
type NodeResult[S any] struct {
	// Delta is merged into the committed state via the engine's Reducer.
	// This includes a suspending node: its merged Delta is saved in the
	// suspended checkpoint.
	Delta S

	// Route decides what the engine does next: advance to another node,
	// stop the workflow, or suspend awaiting an external resume value.
	Route Next

	// Err, if non-nil, halts the run without committing Delta or advancing
	// the checkpoint past the last good state (§7: failed steps leave the
	// last good state intact).
	Err error
}

// Next describes what the engine does after a node returns.
//
// Exactly one of Terminal, Suspend, or a non-empty To/edge-based routing
// applies; To left empty with Terminal and Suspend both false tells the
// engine to fall back to edge-based routing using the graph's RouteKey.
type Next struct {
	// To names the next node explicitly. Takes priority over edge-based
	// routing when set.
	To string

	// Terminal stops the run successfully; no further nodes execute.
	Terminal bool

	// Suspend pauses the run at this node. Payload is opaque context handed
	// to observability (e.g. what the node is waiting on) — it carries no
	// control-flow meaning to the engine itself.
	Suspend bool
	Payload any
}

// Stop returns a Next that terminates the run.
func Stop() Next { return Next{Terminal: true} }

// Goto returns a Next that routes explicitly to nodeID.
func Goto(nodeID string) Next { return Next{To: nodeID} }

// Suspend returns a Next that pauses the run at the current node.
func Suspend(payload any) Next { return Next{Suspend: true, Payload: payload} }

// Continue returns a Next that defers to edge-based routing.
func Continue() Next { return Next{} }

// NodeError is a structured node-execution error carrying a machine-readable
// code, mirroring the taxonomy in the error-handling design.
type NodeError struct {
	Message string
	Code    string
	NodeID  string
	Cause   error
}

func (e *NodeError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

func (e *NodeError) Unwrap() error { return e.Cause }
