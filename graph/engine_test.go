package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/outreachrun/agentgraph/graph/emit"
	"github.com/outreachrun/agentgraph/graph/store"
)

type counterState struct {
	Count      int
	NextRoute  string
	LastResume string
}

func counterReducer(prev, delta counterState) counterState {
	prev.Count += delta.Count
	if delta.NextRoute != "" {
		prev.NextRoute = delta.NextRoute
	}
	if delta.LastResume != "" {
		prev.LastResume = delta.LastResume
	}
	return prev
}

func counterRouteKey(s counterState) string { return s.NextRoute }

func newTestEngine(t *testing.T) (*Engine[counterState], *store.MemStore[counterState]) {
	t.Helper()
	mem := store.NewMemStore[counterState]()
	eng := New(counterReducer, mem, emit.NewNullEmitter(), counterRouteKey)
	return eng, mem
}

func TestEngine_RunSequentialToTerminal(t *testing.T) {
	eng, _ := newTestEngine(t)

	mustAdd(t, eng, "start", NodeFunc[counterState](func(_ context.Context, s counterState) NodeResult[counterState] {
		return NodeResult[counterState]{Delta: counterState{Count: 1}, Route: Goto("finish")}
	}))
	mustAdd(t, eng, "finish", NodeFunc[counterState](func(_ context.Context, s counterState) NodeResult[counterState] {
		return NodeResult[counterState]{Delta: counterState{Count: 1}, Route: Stop()}
	}))
	if err := eng.StartAt("start"); err != nil {
		t.Fatalf("start at: %v", err)
	}

	final, err := eng.Run(context.Background(), "thread-1", counterState{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if final.Count != 2 {
		t.Fatalf("expected count 2, got %d", final.Count)
	}
}

func TestEngine_ConditionalEdgeRouting(t *testing.T) {
	eng, _ := newTestEngine(t)

	mustAdd(t, eng, "start", NodeFunc[counterState](func(_ context.Context, s counterState) NodeResult[counterState] {
		return NodeResult[counterState]{Delta: counterState{NextRoute: "b"}, Route: Continue()}
	}))
	mustAdd(t, eng, "a", NodeFunc[counterState](func(_ context.Context, s counterState) NodeResult[counterState] {
		return NodeResult[counterState]{Delta: counterState{Count: 100}, Route: Stop()}
	}))
	mustAdd(t, eng, "b", NodeFunc[counterState](func(_ context.Context, s counterState) NodeResult[counterState] {
		return NodeResult[counterState]{Delta: counterState{Count: 1}, Route: Stop()}
	}))
	if err := eng.StartAt("start"); err != nil {
		t.Fatalf("start at: %v", err)
	}
	if err := eng.Connect(Edge[counterState]{From: "start", To: "a", Condition: "a"}); err != nil {
		t.Fatalf("connect a: %v", err)
	}
	if err := eng.Connect(Edge[counterState]{From: "start", To: "b", Condition: "b"}); err != nil {
		t.Fatalf("connect b: %v", err)
	}

	final, err := eng.Run(context.Background(), "thread-1", counterState{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if final.Count != 1 {
		t.Fatalf("expected routing to node b (count 1), got %d", final.Count)
	}
}

func TestEngine_SuspendAndResume(t *testing.T) {
	eng, _ := newTestEngine(t)

	mustAdd(t, eng, "wait", NodeFunc[counterState](func(ctx context.Context, s counterState) NodeResult[counterState] {
		if v, ok := ResumeValue(ctx); ok {
			return NodeResult[counterState]{
				Delta: counterState{Count: 1, LastResume: v.(string)},
				Route: Stop(),
			}
		}
		return NodeResult[counterState]{Route: Suspend("waiting for reply")}
	}))
	if err := eng.StartAt("wait"); err != nil {
		t.Fatalf("start at: %v", err)
	}

	suspended, err := eng.Run(context.Background(), "thread-1", counterState{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if suspended.Count != 0 {
		t.Fatalf("expected no progress before resume, got count %d", suspended.Count)
	}

	resumed, err := eng.Resume(context.Background(), "thread-1", "hello")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Count != 1 || resumed.LastResume != "hello" {
		t.Fatalf("unexpected state after resume: %+v", resumed)
	}
}

func TestEngine_ResumeOnNonSuspendedThreadIsIdempotent(t *testing.T) {
	eng, _ := newTestEngine(t)

	mustAdd(t, eng, "start", NodeFunc[counterState](func(_ context.Context, s counterState) NodeResult[counterState] {
		return NodeResult[counterState]{Delta: counterState{Count: 5}, Route: Stop()}
	}))
	if err := eng.StartAt("start"); err != nil {
		t.Fatalf("start at: %v", err)
	}

	if _, err := eng.Run(context.Background(), "thread-1", counterState{}); err != nil {
		t.Fatalf("run: %v", err)
	}

	resumed, err := eng.Resume(context.Background(), "thread-1", "whatever")
	if err != nil {
		t.Fatalf("resume on completed thread should not error: %v", err)
	}
	if resumed.Count != 5 {
		t.Fatalf("resume on completed thread must not re-execute, got count %d", resumed.Count)
	}
}

func TestEngine_MaxStepsExceeded(t *testing.T) {
	eng, _ := newTestEngine(t)
	eng.opts.MaxSteps = 3

	mustAdd(t, eng, "loop", NodeFunc[counterState](func(_ context.Context, s counterState) NodeResult[counterState] {
		return NodeResult[counterState]{Delta: counterState{Count: 1}, Route: Goto("loop")}
	}))
	if err := eng.StartAt("loop"); err != nil {
		t.Fatalf("start at: %v", err)
	}

	_, err := eng.Run(context.Background(), "thread-1", counterState{})
	if !errors.Is(err, ErrMaxStepsExceeded) {
		t.Fatalf("expected ErrMaxStepsExceeded, got %v", err)
	}
}

func TestEngine_MissingStartNode(t *testing.T) {
	eng, _ := newTestEngine(t)
	_, err := eng.Run(context.Background(), "thread-1", counterState{})
	if !errors.Is(err, ErrMissingStartNode) {
		t.Fatalf("expected ErrMissingStartNode, got %v", err)
	}
}

func TestEngine_UnknownNodeError(t *testing.T) {
	eng, _ := newTestEngine(t)
	mustAdd(t, eng, "start", NodeFunc[counterState](func(_ context.Context, s counterState) NodeResult[counterState] {
		return NodeResult[counterState]{Route: Goto("missing")}
	}))
	if err := eng.StartAt("start"); err != nil {
		t.Fatalf("start at: %v", err)
	}

	_, err := eng.Run(context.Background(), "thread-1", counterState{})
	if !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestEngine_ResumeCommitsProgressionAtNextStep(t *testing.T) {
	eng, mem := newTestEngine(t)

	mustAdd(t, eng, "wait", NodeFunc[counterState](func(ctx context.Context, s counterState) NodeResult[counterState] {
		if v, ok := ResumeValue(ctx); ok {
			return NodeResult[counterState]{Delta: counterState{Count: 1, LastResume: v.(string)}, Route: Stop()}
		}
		return NodeResult[counterState]{Route: Suspend("waiting")}
	}))
	if err := eng.StartAt("wait"); err != nil {
		t.Fatalf("start at: %v", err)
	}

	if _, err := eng.Run(context.Background(), "thread-1", counterState{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := eng.Resume(context.Background(), "thread-1", "hello"); err != nil {
		t.Fatalf("resume: %v", err)
	}

	history, err := mem.List(context.Background(), "thread-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// The suspend checkpoint and the post-resume progression each need their
	// own row: reusing the suspend checkpoint's step number for the resumed
	// commit would make Store.Put's per-step idempotence silently swallow
	// the progression, leaving the persisted history stuck at "suspended"
	// forever even though the thread actually completed.
	if len(history) != 2 {
		t.Fatalf("expected 2 checkpoint rows (suspend + resume), got %d: %+v", len(history), history)
	}
	if !history[0].Suspended {
		t.Fatalf("expected first row to record the suspend, got %+v", history[0])
	}
	if history[1].Suspended {
		t.Fatalf("expected second row to record the post-resume progression, got %+v", history[1])
	}
	if history[1].State.Count != 1 || history[1].State.LastResume != "hello" {
		t.Fatalf("expected persisted resume progression, got %+v", history[1].State)
	}
}

// TestEngine_ResumeAfterRestartRecoversFromStore simulates a process crash
// between suspend and resume: a fresh Engine is built over the same store
// (standing in for the old in-memory Engine instance having been discarded)
// and Resume is driven against it directly. The resumed node must run
// exactly once — not re-run the already-committed suspend step.
func TestEngine_ResumeAfterRestartRecoversFromStore(t *testing.T) {
	mem := store.NewMemStore[counterState]()
	build := func() *Engine[counterState] {
		eng := New(counterReducer, mem, emit.NewNullEmitter(), counterRouteKey)
		mustAdd(t, eng, "wait", NodeFunc[counterState](func(ctx context.Context, s counterState) NodeResult[counterState] {
			if v, ok := ResumeValue(ctx); ok {
				return NodeResult[counterState]{Delta: counterState{Count: s.Count + 1, LastResume: v.(string)}, Route: Stop()}
			}
			return NodeResult[counterState]{Route: Suspend("waiting")}
		}))
		if err := eng.StartAt("wait"); err != nil {
			t.Fatalf("start at: %v", err)
		}
		return eng
	}

	before := build()
	if _, err := before.Run(context.Background(), "thread-1", counterState{}); err != nil {
		t.Fatalf("run: %v", err)
	}

	// "Restart": a brand new Engine value, same backing store.
	after := build()
	resumed, err := after.Resume(context.Background(), "thread-1", "hello")
	if err != nil {
		t.Fatalf("resume after restart: %v", err)
	}
	if resumed.Count != 1 {
		t.Fatalf("expected the resumed node to run exactly once (count 1), got %d", resumed.Count)
	}

	// A duplicate resume delivery (e.g. a retried webhook) must not
	// double-execute the node's delta a second time.
	again, err := after.Resume(context.Background(), "thread-1", "hello-retry")
	if err != nil {
		t.Fatalf("duplicate resume: %v", err)
	}
	if again.Count != 1 {
		t.Fatalf("duplicate resume on a completed thread must be idempotent, got count %d", again.Count)
	}
}

// TestEngine_RunRecoversMidFlowCheckpoint simulates a crash between two
// runLoop iterations: a checkpoint is committed for the node that just ran,
// but the process dies before the next node executes. That checkpoint is
// neither Suspended nor Done, which must not be confused with a completed
// thread. Re-invoking Run has to resume from the next node rather than
// returning the stale mid-flow state as final.
func TestEngine_RunRecoversMidFlowCheckpoint(t *testing.T) {
	eng, mem := newTestEngine(t)

	startRuns := 0
	mustAdd(t, eng, "start", NodeFunc[counterState](func(_ context.Context, s counterState) NodeResult[counterState] {
		startRuns++
		return NodeResult[counterState]{Delta: counterState{Count: 1}, Route: Continue()}
	}))
	mustAdd(t, eng, "finish", NodeFunc[counterState](func(_ context.Context, s counterState) NodeResult[counterState] {
		return NodeResult[counterState]{Delta: counterState{Count: 10}, Route: Stop()}
	}))
	if err := eng.StartAt("start"); err != nil {
		t.Fatalf("start at: %v", err)
	}
	if err := eng.Connect(Edge[counterState]{From: "start", To: "finish"}); err != nil {
		t.Fatalf("connect: %v", err)
	}

	// Seed the store directly, standing in for "start" having already run
	// and committed before the crash. Suspended and Done are both false.
	if err := mem.Put(context.Background(), store.Tuple[counterState]{
		ThreadID: "thread-1", Step: 0, NodeID: "start", State: counterState{Count: 1},
	}); err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}

	final, err := eng.Run(context.Background(), "thread-1", counterState{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if startRuns != 0 {
		t.Fatalf("expected start not to re-run on mid-flow recovery, ran %d times", startRuns)
	}
	if final.Count != 11 {
		t.Fatalf("expected count 11 (1 from the seeded checkpoint + 10 from finish), got %d", final.Count)
	}

	history, err := mem.List(context.Background(), "thread-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 checkpoint rows (seeded start + recovered finish), got %d: %+v", len(history), history)
	}
	if history[1].Step != 1 || history[1].NodeID != "finish" {
		t.Fatalf("expected the recovered commit at step 1 for finish, got %+v", history[1])
	}
}

func mustAdd(t *testing.T, eng *Engine[counterState], id string, node Node[counterState]) {
	t.Helper()
	if err := eng.Add(id, node); err != nil {
		t.Fatalf("add node %s: %v", id, err)
	}
}
