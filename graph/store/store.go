// Package store persists checkpointed state for graph runs. A Store is keyed
// by thread ID and step number; each step's write is immutable once saved, so
// a Store can double as the durability layer and the audit trail for a
// thread's history.
package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors a Store implementation should return (wrapped or bare) so
// callers can branch with errors.Is regardless of backend.
var (
	// ErrNotFound is returned when no checkpoint exists for a thread.
	ErrNotFound = errors.New("store: checkpoint not found")

	// ErrUnavailable signals a transient backend failure (connection drop,
	// lock timeout) that a caller may retry.
	ErrUnavailable = errors.New("store: backend unavailable")

	// ErrConflictingWrite is returned by Lease when another owner currently
	// holds the thread's lease.
	ErrConflictingWrite = errors.New("store: conflicting write, thread leased elsewhere")
)

// Tuple is a single saved checkpoint: the committed state as of Step, plus
// enough metadata to resume or audit the run.
type Tuple[S any] struct {
	ThreadID  string
	Step      int
	State     S
	NodeID    string // node that produced this state (the start node at step 0)
	Suspended bool   // true if this checkpoint parked the thread at an interrupt
	Done      bool   // true if NodeID returned a terminal route; the thread is complete
	Payload   any    // interrupt payload when Suspended is true
	CreatedAt time.Time
}

// PendingWrite is a value staged mid-step, before the step's checkpoint is
// committed. The engine stages each node's JSON-encoded delta with the node
// ID as Key; Store.GetWrites returns these keyed by Key.
type PendingWrite struct {
	ThreadID string
	Step     int
	Key      string
	Value    []byte // json-encoded
}

// Store is the durable checkpointer a graph.Engine reads from and writes to.
// Implementations must make Put for a given (ThreadID, Step) idempotent: a
// retried Put for a step already saved must be a no-op, not an error and not
// a duplicate row.
type Store[S any] interface {
	// Put saves the committed state for a thread at the given step. Put does
	// not check the thread's lease; exclusivity is taken separately through
	// a backend's Lease method.
	Put(ctx context.Context, t Tuple[S]) error

	// PutWrites stages intermediate values for a step before the step's
	// final state is committed. Safe to call multiple times with the same
	// key; the latest value wins.
	PutWrites(ctx context.Context, w PendingWrite) error

	// GetTuple returns the latest committed checkpoint for a thread.
	// Returns ErrNotFound if the thread has never been saved.
	GetTuple(ctx context.Context, threadID string) (Tuple[S], error)

	// GetWrites returns all pending writes staged for a thread at a given
	// step, keyed by their Key. The engine does not read them back on
	// resume; they serve auditing.
	GetWrites(ctx context.Context, threadID string, step int) (map[string]PendingWrite, error)

	// List returns every checkpoint saved for a thread, oldest first. Used
	// by the eval harness and by operators auditing a run.
	List(ctx context.Context, threadID string) ([]Tuple[S], error)
}
