// Package graph provides the generic, checkpointed execution engine underneath
// the outreach agent runtime. It knows nothing about records, contacts, or
// LLMs — only nodes, edges, reducers, and checkpoints. The agent package
// specializes it to a concrete state type.
package graph

// Reducer merges a partial state update (delta) produced by a node into the
// previously committed state. Reducers are the only place state-mutation
// semantics live; nodes themselves never mutate S in place, they return a
// delta and let the engine apply it.
//
// A reducer must be pure and deterministic: the same (prev, delta) pair
// always yields the same result.
type Reducer[S any] func(prev, delta S) S

// RouteKey extracts the conditional-routing value from a committed state.
// Declarative conditional edges compare their Condition string against
// RouteKey(state) to decide which edge to follow; see Edge.
type RouteKey[S any] func(state S) string
