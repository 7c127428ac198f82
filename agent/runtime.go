package agent

import (
	"context"
	"errors"

	"github.com/outreachrun/agentgraph/graph"
	"github.com/outreachrun/agentgraph/graph/store"
)

// Leaser is the subset of a store.Store's thread-exclusivity surface the
// runtime enforces before mutating a thread. MemStore, SQLiteStore, and
// MySQLStore all expose Lease/Release with this shape.
type Leaser interface {
	Lease(ctx context.Context, threadID, owner string) error
	Release(ctx context.Context, threadID, owner string) error
}

// Runtime wraps a compiled graph.Engine with the thread-lease enforcement
// and error-code mapping §6 specifies for an HTTP layer sitting on top.
type Runtime struct {
	engine *graph.Engine[ThreadState]
	store  store.Store[ThreadState]
	leaser Leaser
	owner  string
}

// NewRuntime wraps engine. leaser may be nil when st does not support
// per-thread leases (e.g. a bare MemStore in tests); owner identifies this
// process/worker for the lease.
func NewRuntime(engine *graph.Engine[ThreadState], st store.Store[ThreadState], leaser Leaser, owner string) *Runtime {
	return &Runtime{engine: engine, store: st, leaser: leaser, owner: owner}
}

// Invoke runs threadID to completion, a suspend point, or the iteration
// cap, starting fresh with initial if no checkpoint exists yet.
func (r *Runtime) Invoke(ctx context.Context, threadID string, initial ThreadState) (ThreadState, error) {
	if err := r.acquire(ctx, threadID); err != nil {
		var zero ThreadState
		return zero, err
	}
	defer r.release(ctx, threadID)

	return r.engine.Run(ctx, threadID, initial)
}

// Resume re-enters threadID with an external value. It maps
// graph/store-layer errors to the agent-level sentinels §6 specifies for
// an HTTP resume endpoint: ErrThreadNotFound (404), ErrNoPendingInterrupt
// (409, thread exists but isn't currently suspended), store.ErrUnavailable
// (503, passed through unmapped since callers already check for it there).
func (r *Runtime) Resume(ctx context.Context, threadID string, resumeValue ResumeInput) (ThreadState, error) {
	tuple, err := r.store.GetTuple(ctx, threadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			var zero ThreadState
			return zero, ErrThreadNotFound
		}
		var zero ThreadState
		return zero, err
	}
	if !tuple.Suspended {
		var zero ThreadState
		return zero, ErrNoPendingInterrupt
	}

	if err := r.acquire(ctx, threadID); err != nil {
		var zero ThreadState
		return zero, err
	}
	defer r.release(ctx, threadID)

	return r.engine.Resume(ctx, threadID, resumeValue)
}

// Decide is Resume specialized for the human-review decision contract
// (§6): it additionally checks the thread is actually paused at
// humanReview before re-entering, returning ErrNotWaiting otherwise.
func (r *Runtime) Decide(ctx context.Context, threadID string, decision ResumeInput) (ThreadState, error) {
	tuple, err := r.store.GetTuple(ctx, threadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			var zero ThreadState
			return zero, ErrThreadNotFound
		}
		var zero ThreadState
		return zero, err
	}
	if !tuple.Suspended || tuple.NodeID != NodeHumanReview {
		var zero ThreadState
		return zero, ErrNotWaiting
	}

	return r.Resume(ctx, threadID, decision)
}

// History returns every checkpoint saved for threadID, oldest first.
func (r *Runtime) History(ctx context.Context, threadID string) ([]store.Tuple[ThreadState], error) {
	return r.engine.History(ctx, threadID)
}

func (r *Runtime) acquire(ctx context.Context, threadID string) error {
	if r.leaser == nil {
		return nil
	}
	return r.leaser.Lease(ctx, threadID, r.owner)
}

// release drops the thread lease on best-effort basis; a release failure
// (e.g. the store is briefly unavailable) is not actionable by the caller
// since Invoke/Resume have already returned their result.
func (r *Runtime) release(ctx context.Context, threadID string) {
	if r.leaser == nil {
		return
	}
	_ = r.leaser.Release(ctx, threadID, r.owner)
}
