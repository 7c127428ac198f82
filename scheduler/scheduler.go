// Package scheduler drives the cron-scheduled tick described in §4.8: per
// workflow, query eligible records, run the static pre-check, and invoke
// the graph runtime for the ones that pass.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/outreachrun/agentgraph/agent"
	"github.com/outreachrun/agentgraph/precheck"
)

// Outcome categorizes how a tick disposed of one record.
type Outcome string

const (
	OutcomeActionTaken  Outcome = "action_taken"
	OutcomeSkippedStatic Outcome = "skipped_static"
	OutcomeSkippedAI    Outcome = "skipped_ai"
	OutcomeError        Outcome = "error"
)

// RecordLister returns records eligible for a tick, already filtered by
// enabledStatuses and ordered oldest-updated-first, capped at batchSize.
// Records skipped by the static pre-check are not removed from eligibility
// by this call — they are expected to reappear, in the same relative
// order, on the next tick (see SPEC_FULL.md §4.8).
type RecordLister interface {
	ListEligible(ctx context.Context, enabledStatuses []string, batchSize int) ([]RecordRef, error)
}

// RecordRef is the minimal per-record view the scheduler needs to run the
// static pre-check and start a thread, independent of any storage schema.
type RecordRef struct {
	ThreadID            string
	Record               agent.Record
	Contact              agent.Contact
	ActionCount          int
	DaysSinceLastAction  float64
	DaysSinceLastUpdate  float64
	DaysSinceCreation    float64
}

// Result is one record's tick outcome.
type Result struct {
	ThreadID string
	Outcome  Outcome
	Reason   precheck.Reason
	Err      error
}

// WorkflowRunner starts or resumes a thread's graph run given its initial
// ThreadState. The scheduler only ever uses it to kick off a fresh
// invocation (resume/decide happen via webhook/UI, not the scheduler).
type WorkflowRunner interface {
	Invoke(ctx context.Context, threadID string, initial agent.ThreadState) (agent.ThreadState, error)
}

// Scheduler runs one cron-scheduled tick function per registered workflow.
// Ticks for different workflows may run concurrently; ticks for the same
// workflow are serialized by a per-workflow mutex, matching "at most one
// tick per workflow may be in flight."
type Scheduler struct {
	cron *cron.Cron
	log  *zap.SugaredLogger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New builds a Scheduler. log may be zap.NewNop().Sugar() in tests.
func New(log *zap.SugaredLogger) *Scheduler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Scheduler{
		cron:  cron.New(),
		log:   log,
		locks: make(map[string]*sync.Mutex),
	}
}

// Workflow bundles everything a tick needs for one workflow.
type Workflow struct {
	ID      string
	Cron    string
	Rules   precheck.Rules
	Filter  []string // enabledStatuses
	Batch   int
	Lister  RecordLister
	Runner  WorkflowRunner
}

// Register schedules w's cron expression to call Tick on every fire. It
// returns the cron.EntryID for later removal.
func (s *Scheduler) Register(w Workflow) (cron.EntryID, error) {
	return s.cron.AddFunc(w.Cron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		results := s.Tick(ctx, w)
		s.log.Infow("scheduler tick complete", "workflow_id", w.ID, "count", len(results))
	})
}

// Start begins running registered cron schedules.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the cron scheduler without waiting; the returned context is
// done once in-flight jobs have finished.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }

func (s *Scheduler) lockFor(workflowID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[workflowID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[workflowID] = l
	}
	return l
}

// Tick runs one pass over w's eligible records: list, static pre-check,
// invoke. It serializes against any other Tick call for the same
// workflow ID.
func (s *Scheduler) Tick(ctx context.Context, w Workflow) []Result {
	lock := s.lockFor(w.ID)
	lock.Lock()
	defer lock.Unlock()

	batch := w.Batch
	if batch <= 0 {
		batch = 50
	}

	records, err := w.Lister.ListEligible(ctx, w.Filter, batch)
	if err != nil {
		s.log.Errorw("list eligible records failed", "workflow_id", w.ID, "error", err)
		return []Result{{Outcome: OutcomeError, Err: err}}
	}

	results := make([]Result, 0, len(records))
	for _, rec := range records {
		results = append(results, s.runOne(ctx, w, rec))
	}
	return results
}

func (s *Scheduler) runOne(ctx context.Context, w Workflow, rec RecordRef) Result {
	decision := precheck.Evaluate(w.Rules, precheck.Input{
		ActionCount:         rec.ActionCount,
		DaysSinceLastAction: rec.DaysSinceLastAction,
		DaysSinceLastUpdate: rec.DaysSinceLastUpdate,
		DaysSinceCreation:   rec.DaysSinceCreation,
		Priority:            precheck.Priority(rec.Record.Priority),
	})

	if !decision.Proceed {
		s.log.Debugw("static pre-check skip", "workflow_id", w.ID, "thread_id", rec.ThreadID, "reason", decision.Reason)
		return Result{ThreadID: rec.ThreadID, Outcome: OutcomeSkippedStatic, Reason: decision.Reason}
	}

	initial := agent.ThreadState{
		Record:         rec.Record,
		Contact:        rec.Contact,
		Attempts:       rec.ActionCount,
		WorkflowStatus: agent.WorkflowRunning,
	}

	final, err := w.Runner.Invoke(ctx, rec.ThreadID, initial)
	if err != nil {
		s.log.Errorw("graph invocation failed", "workflow_id", w.ID, "thread_id", rec.ThreadID, "error", err)
		return Result{ThreadID: rec.ThreadID, Outcome: OutcomeError, Reason: decision.Reason, Err: err}
	}

	// The static pre-check only gates whether the graph runs at all; once
	// inside, the analyze node itself may decide no effect is warranted
	// (routing straight to markComplete/END without a send-effect node
	// incrementing Attempts). That distinguishes skipped_ai from
	// action_taken for records that passed the static gate.
	if final.Attempts == rec.ActionCount {
		return Result{ThreadID: rec.ThreadID, Outcome: OutcomeSkippedAI, Reason: decision.Reason}
	}
	return Result{ThreadID: rec.ThreadID, Outcome: OutcomeActionTaken, Reason: decision.Reason}
}
