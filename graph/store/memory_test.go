package store

import (
	"context"
	"errors"
	"testing"
)

type testState struct {
	Value string
}

func TestMemStore_PutAndGetTuple(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore[testState]()

	if _, err := s.GetTuple(ctx, "thread-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	if err := s.Put(ctx, Tuple[testState]{ThreadID: "thread-1", Step: 0, NodeID: "start", State: testState{Value: "a"}}); err != nil {
		t.Fatalf("put step 0: %v", err)
	}
	if err := s.Put(ctx, Tuple[testState]{ThreadID: "thread-1", Step: 1, NodeID: "analyze", State: testState{Value: "b"}}); err != nil {
		t.Fatalf("put step 1: %v", err)
	}

	latest, err := s.GetTuple(ctx, "thread-1")
	if err != nil {
		t.Fatalf("get tuple: %v", err)
	}
	if latest.Step != 1 || latest.State.Value != "b" {
		t.Fatalf("expected latest step 1 value b, got step=%d value=%s", latest.Step, latest.State.Value)
	}
}

func TestMemStore_PutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore[testState]()

	t0 := Tuple[testState]{ThreadID: "t", Step: 0, State: testState{Value: "first"}}
	if err := s.Put(ctx, t0); err != nil {
		t.Fatalf("first put: %v", err)
	}
	retry := Tuple[testState]{ThreadID: "t", Step: 0, State: testState{Value: "second"}}
	if err := s.Put(ctx, retry); err != nil {
		t.Fatalf("retried put: %v", err)
	}

	got, err := s.GetTuple(ctx, "t")
	if err != nil {
		t.Fatalf("get tuple: %v", err)
	}
	if got.State.Value != "first" {
		t.Fatalf("retried put must not overwrite step 0, got %q", got.State.Value)
	}
}

func TestMemStore_PendingWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore[testState]()

	if err := s.PutWrites(ctx, PendingWrite{ThreadID: "t", Step: 2, Key: "tool_result", Value: []byte(`{"ok":true}`)}); err != nil {
		t.Fatalf("put writes: %v", err)
	}

	writes, err := s.GetWrites(ctx, "t", 2)
	if err != nil {
		t.Fatalf("get writes: %v", err)
	}
	if len(writes) != 1 {
		t.Fatalf("expected 1 pending write, got %d", len(writes))
	}
	if string(writes["tool_result"].Value) != `{"ok":true}` {
		t.Fatalf("unexpected pending write value: %s", writes["tool_result"].Value)
	}

	empty, err := s.GetWrites(ctx, "t", 99)
	if err != nil {
		t.Fatalf("get writes for unknown step: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no pending writes for unknown step, got %d", len(empty))
	}
}

func TestMemStore_List(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore[testState]()

	for step := 0; step < 3; step++ {
		if err := s.Put(ctx, Tuple[testState]{ThreadID: "t", Step: step}); err != nil {
			t.Fatalf("put step %d: %v", step, err)
		}
	}

	all, err := s.List(ctx, "t")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 checkpoints, got %d", len(all))
	}
	for i, tuple := range all {
		if tuple.Step != i {
			t.Fatalf("expected checkpoints in step order, got step %d at index %d", tuple.Step, i)
		}
	}
}

func TestMemStore_Lease(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore[testState]()

	if err := s.Lease(ctx, "t", "owner-a"); err != nil {
		t.Fatalf("first lease: %v", err)
	}
	if err := s.Lease(ctx, "t", "owner-a"); err != nil {
		t.Fatalf("re-lease by same owner: %v", err)
	}
	if err := s.Lease(ctx, "t", "owner-b"); !errors.Is(err, ErrConflictingWrite) {
		t.Fatalf("expected ErrConflictingWrite for competing owner, got %v", err)
	}

	if err := s.Release(ctx, "t", "owner-a"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := s.Lease(ctx, "t", "owner-b"); err != nil {
		t.Fatalf("lease after release: %v", err)
	}
}
