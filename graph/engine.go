package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/outreachrun/agentgraph/graph/emit"
	"github.com/outreachrun/agentgraph/graph/store"
)

// Engine runs a registered set of nodes and edges over a checkpointed state
// type S. Unlike a general DAG scheduler, Engine drives exactly one thread of
// execution at a time per thread id: a node runs to completion, its delta is
// committed, and the next node is resolved before anything else happens. This
// matches the single-writer-per-thread model the checkpointer requires.
type Engine[S any] struct {
	reducer   Reducer[S]
	store     store.Store[S]
	emitter   emit.Emitter
	routeKey  RouteKey[S]
	nodes     map[string]Node[S]
	edges     map[string][]Edge[S]
	startNode string
	opts      Options
}

// New constructs an Engine. reducer merges node deltas into committed state;
// st persists checkpoints; emitter receives observability events (pass
// emit.NewNullEmitter() to discard them); routeKey extracts the value
// conditional edges compare against.
func New[S any](reducer Reducer[S], st store.Store[S], emitter emit.Emitter, routeKey RouteKey[S], options ...Option) *Engine[S] {
	opts := defaultOptions()
	for _, o := range options {
		o(&opts)
	}
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}
	return &Engine[S]{
		reducer:  reducer,
		store:    st,
		emitter:  emitter,
		routeKey: routeKey,
		nodes:    make(map[string]Node[S]),
		edges:    make(map[string][]Edge[S]),
		opts:     opts,
	}
}

// Add registers a node under nodeID. Returns an error if nodeID is already
// registered.
func (e *Engine[S]) Add(nodeID string, node Node[S]) error {
	if _, exists := e.nodes[nodeID]; exists {
		return fmt.Errorf("graph: node %q already registered", nodeID)
	}
	e.nodes[nodeID] = node
	return nil
}

// StartAt sets the node a fresh Run begins at. nodeID must already be
// registered via Add.
func (e *Engine[S]) StartAt(nodeID string) error {
	if _, ok := e.nodes[nodeID]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	e.startNode = nodeID
	return nil
}

// Connect registers an edge. Both From and To must already be registered
// nodes.
func (e *Engine[S]) Connect(edge Edge[S]) error {
	if _, ok := e.nodes[edge.From]; !ok {
		return fmt.Errorf("%w: edge from %s", ErrNodeNotFound, edge.From)
	}
	if _, ok := e.nodes[edge.To]; !ok {
		return fmt.Errorf("%w: edge to %s", ErrNodeNotFound, edge.To)
	}
	e.edges[edge.From] = append(e.edges[edge.From], edge)
	return nil
}

// Run starts a fresh thread at the configured start node. If threadID
// already has a checkpoint (a retried Run call, e.g. after a crash before the
// caller learned the outcome), Run does not re-execute anything already
// committed: a suspended thread is returned as-is (the caller must use Resume
// to advance it), a completed thread returns its final state. A checkpoint
// that is neither suspended nor done is mid-flow — the process crashed
// between committing one node's step and moving on to the next — so Run
// resolves the edge out of the last completed node and continues runLoop
// from there, exactly as Resume continues a suspended thread.
func (e *Engine[S]) Run(ctx context.Context, threadID string, initial S) (S, error) {
	if e.startNode == "" {
		var zero S
		return zero, ErrMissingStartNode
	}

	tuple, err := e.store.GetTuple(ctx, threadID)
	switch {
	case err == nil:
		if tuple.Suspended || tuple.Done {
			return tuple.State, nil
		}
		next, rerr := e.resolveEdge(tuple.NodeID, tuple.State)
		if rerr != nil {
			return tuple.State, rerr
		}
		ctx, cancel := e.withBudget(ctx)
		defer cancel()
		return e.runLoop(ctx, threadID, tuple.State, tuple.Step+1, next)
	case errors.Is(err, store.ErrNotFound):
		ctx, cancel := e.withBudget(ctx)
		defer cancel()
		return e.runLoop(ctx, threadID, initial, 0, e.startNode)
	default:
		var zero S
		return zero, err
	}
}

// Resume re-enters a suspended thread with an externally supplied value,
// visible to the re-entered node via ResumeValue. If the thread is not
// currently suspended, Resume is idempotent: it returns the thread's current
// state without re-running anything, so a duplicate delivery of an inbound
// reply does not double-execute a node's side effects.
func (e *Engine[S]) Resume(ctx context.Context, threadID string, resumeValue any) (S, error) {
	tuple, err := e.store.GetTuple(ctx, threadID)
	if err != nil {
		var zero S
		return zero, err
	}
	if !tuple.Suspended {
		return tuple.State, nil
	}

	ctx, cancel := e.withBudget(ctx)
	defer cancel()
	ctx = WithResumeValue(ctx, resumeValue)
	// The re-entered node commits to tuple.Step+1, not tuple.Step: the
	// suspended checkpoint already occupies tuple.Step, and Store.Put is
	// idempotent per (thread, step), so reusing it here would make the
	// node's post-resume progression silently fail to persist.
	return e.runLoop(ctx, threadID, tuple.State, tuple.Step+1, tuple.NodeID)
}

func (e *Engine[S]) withBudget(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.opts.RunWallClockBudget <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.opts.RunWallClockBudget)
}

// runLoop drives nodeID and every subsequent node to completion, suspend, or
// the step cap, committing a checkpoint after each successfully executed
// step.
func (e *Engine[S]) runLoop(ctx context.Context, threadID string, state S, step int, nodeID string) (S, error) {
	e.opts.Metrics.incInflight(1)
	defer e.opts.Metrics.incInflight(-1)

	// executed counts node executions in this call only; step keeps the
	// thread's checkpoint numbering across calls.
	executed := 0
	for {
		if err := ctx.Err(); err != nil {
			var zero S
			return zero, err
		}
		if executed >= e.effectiveMaxSteps() {
			e.opts.Metrics.incRunawayLoop()
			return state, fmt.Errorf("%w: thread %s at step %d", ErrMaxStepsExceeded, threadID, step)
		}
		executed++

		node, ok := e.nodes[nodeID]
		if !ok {
			return state, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
		}

		e.emit(emit.Event{ThreadID: threadID, Step: step, NodeID: nodeID, Msg: "node_start"})
		stepCtx := withStepMeta(ctx, threadID, step, nodeID)
		startedAt := time.Now()
		result := node.Run(stepCtx, state)
		elapsed := time.Since(startedAt)

		if result.Err != nil {
			e.opts.Metrics.observeStep(nodeID, "error", elapsed)
			e.emit(emit.Event{ThreadID: threadID, Step: step, NodeID: nodeID, Msg: "run_error",
				Meta: map[string]any{"error": result.Err.Error()}})
			return state, result.Err
		}
		e.opts.Metrics.observeStep(nodeID, "ok", elapsed)

		switch {
		case result.Route.Suspend:
			merged := e.reducer(state, result.Delta)
			if err := e.stageDelta(ctx, threadID, step, nodeID, result.Delta); err != nil {
				return state, err
			}
			if err := e.store.Put(ctx, store.Tuple[S]{
				ThreadID: threadID, Step: step, NodeID: nodeID, State: merged,
				Suspended: true, Payload: result.Route.Payload,
			}); err != nil {
				return state, err
			}
			e.opts.Metrics.incInterrupt(nodeID)
			e.emit(emit.Event{ThreadID: threadID, Step: step, NodeID: nodeID, Msg: "interrupt",
				Meta: map[string]any{"payload": result.Route.Payload}})
			return merged, nil

		case result.Route.Terminal:
			merged := e.reducer(state, result.Delta)
			if err := e.stageDelta(ctx, threadID, step, nodeID, result.Delta); err != nil {
				return state, err
			}
			if err := e.store.Put(ctx, store.Tuple[S]{
				ThreadID: threadID, Step: step, NodeID: nodeID, State: merged, Done: true,
			}); err != nil {
				return state, err
			}
			e.emit(emit.Event{ThreadID: threadID, Step: step, NodeID: nodeID, Msg: "node_end",
				Meta: map[string]any{"terminal": true}})
			return merged, nil

		default:
			merged := e.reducer(state, result.Delta)
			next := result.Route.To
			if next == "" {
				var err error
				next, err = e.resolveEdge(nodeID, merged)
				if err != nil {
					return merged, err
				}
			}
			if err := e.stageDelta(ctx, threadID, step, nodeID, result.Delta); err != nil {
				return merged, err
			}
			if err := e.store.Put(ctx, store.Tuple[S]{
				ThreadID: threadID, Step: step, NodeID: nodeID, State: merged,
			}); err != nil {
				return merged, err
			}
			e.emit(emit.Event{ThreadID: threadID, Step: step, NodeID: nodeID, Msg: "node_end",
				Meta: map[string]any{"next": next}})
			state = merged
			nodeID = next
			step++
			// A resume value belongs to the re-entered node only.
			if _, ok := ResumeValue(ctx); ok {
				ctx = WithResumeValue(ctx, nil)
			}
		}
	}
}

// stageDelta persists a node's raw, pre-reduce output via PutWrites before
// the step's final checkpoint commits, so a crash between the node running
// and the checkpoint landing leaves a record of what the node actually
// produced (§4.2). It is staging only: runLoop's own resume path (Run and
// Resume re-entering at tuple.Step+1) is what actually drives resume
// idempotence; GetWrites lets an operator or auxiliary tooling inspect what a
// node emitted for a given step without replaying it.
func (e *Engine[S]) stageDelta(ctx context.Context, threadID string, step int, nodeID string, delta any) error {
	encoded, err := json.Marshal(delta)
	if err != nil {
		return fmt.Errorf("graph: encode delta for %s at step %d: %w", nodeID, step, err)
	}
	return e.store.PutWrites(ctx, store.PendingWrite{
		ThreadID: threadID, Step: step, Key: nodeID, Value: encoded,
	})
}

// resolveEdge picks the edge out of fromNode whose Condition matches the
// committed state's route key, preferring the first unconditional edge if no
// conditioned edge matches and one exists. Edges are evaluated in
// registration order, first match wins.
func (e *Engine[S]) resolveEdge(fromNode string, state S) (string, error) {
	candidates := e.edges[fromNode]
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: node %s has no outgoing edges", ErrNoRoute, fromNode)
	}

	routeValue := ""
	if e.routeKey != nil {
		routeValue = e.routeKey(state)
	}

	var fallback string
	for _, edge := range candidates {
		if edge.Condition == "" {
			if fallback == "" {
				fallback = edge.To
			}
			continue
		}
		if edge.Condition == routeValue {
			return edge.To, nil
		}
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", fmt.Errorf("%w: node %s, route value %q matched no edge", ErrNoRoute, fromNode, routeValue)
}

func (e *Engine[S]) effectiveMaxSteps() int {
	if e.opts.MaxSteps <= 0 {
		return defaultMaxSteps
	}
	return e.opts.MaxSteps
}

func (e *Engine[S]) emit(event emit.Event) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(event)
}

// History returns every checkpoint saved for threadID, oldest first. Used by
// the eval harness to assert on the exact node sequence a scenario took.
func (e *Engine[S]) History(ctx context.Context, threadID string) ([]store.Tuple[S], error) {
	return e.store.List(ctx, threadID)
}
