package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite-backed Store[S]. It is the default durable backend
// for a single-process deployment: zero external setup, WAL mode for
// concurrent readers, a busy timeout so writers queue instead of failing
// under contention.
//
// Schema:
//   - checkpoints: one row per (thread_id, step), append-only
//   - pending_writes: staged values from a step not yet committed
//   - thread_leases: exclusive ownership per thread, used by the scheduler
//
// Type parameter S must be JSON-serializable.
type SQLiteStore[S any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewSQLiteStore opens (and migrates) a SQLite-backed store at path. Use
// ":memory:" for an ephemeral database, most useful in tests that want
// SQL semantics without a file on disk.
func NewSQLiteStore[S any](path string) (*SQLiteStore[S], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite connection: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore[S]{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore[S]) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS checkpoints (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			thread_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			node_id TEXT NOT NULL,
			state TEXT NOT NULL,
			suspended INTEGER NOT NULL DEFAULT 0,
			done INTEGER NOT NULL DEFAULT 0,
			payload TEXT NOT NULL DEFAULT 'null',
			created_at TEXT NOT NULL,
			UNIQUE(thread_id, step)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_checkpoints_thread ON checkpoints(thread_id, step)`,
		`CREATE TABLE IF NOT EXISTS pending_writes (
			thread_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (thread_id, step, key)
		)`,
		`CREATE TABLE IF NOT EXISTS thread_leases (
			thread_id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			acquired_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *SQLiteStore[S]) Put(ctx context.Context, t Tuple[S]) error {
	if s.isClosed() {
		return fmt.Errorf("%w: store closed", ErrUnavailable)
	}

	stateJSON, err := json.Marshal(t.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	payloadJSON, err := json.Marshal(t.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO checkpoints (thread_id, step, node_id, state, suspended, done, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(thread_id, step) DO NOTHING
	`
	_, err = s.db.ExecContext(ctx, query,
		t.ThreadID, t.Step, t.NodeID, string(stateJSON), boolToInt(t.Suspended), boolToInt(t.Done),
		string(payloadJSON), t.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

func (s *SQLiteStore[S]) PutWrites(ctx context.Context, w PendingWrite) error {
	if s.isClosed() {
		return fmt.Errorf("%w: store closed", ErrUnavailable)
	}

	query := `
		INSERT INTO pending_writes (thread_id, step, key, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(thread_id, step, key) DO UPDATE SET value = excluded.value
	`
	_, err := s.db.ExecContext(ctx, query, w.ThreadID, w.Step, w.Key, string(w.Value))
	if err != nil {
		return fmt.Errorf("insert pending write: %w", err)
	}
	return nil
}

func (s *SQLiteStore[S]) GetTuple(ctx context.Context, threadID string) (Tuple[S], error) {
	if s.isClosed() {
		var zero Tuple[S]
		return zero, fmt.Errorf("%w: store closed", ErrUnavailable)
	}

	query := `
		SELECT step, node_id, state, suspended, done, payload, created_at
		FROM checkpoints
		WHERE thread_id = ?
		ORDER BY step DESC
		LIMIT 1
	`
	var (
		t            Tuple[S]
		stateJSON    string
		payloadJSON  string
		suspendedInt int
		doneInt      int
		createdAt    string
	)
	t.ThreadID = threadID
	err := s.db.QueryRowContext(ctx, query, threadID).Scan(
		&t.Step, &t.NodeID, &stateJSON, &suspendedInt, &doneInt, &payloadJSON, &createdAt)
	if err == sql.ErrNoRows {
		var zero Tuple[S]
		return zero, ErrNotFound
	}
	if err != nil {
		var zero Tuple[S]
		return zero, fmt.Errorf("load latest checkpoint: %w", err)
	}
	if err := json.Unmarshal([]byte(stateJSON), &t.State); err != nil {
		var zero Tuple[S]
		return zero, fmt.Errorf("unmarshal state: %w", err)
	}
	if err := json.Unmarshal([]byte(payloadJSON), &t.Payload); err != nil {
		var zero Tuple[S]
		return zero, fmt.Errorf("unmarshal payload: %w", err)
	}
	t.Suspended = suspendedInt != 0
	t.Done = doneInt != 0
	t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		var zero Tuple[S]
		return zero, fmt.Errorf("parse created_at: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore[S]) GetWrites(ctx context.Context, threadID string, step int) (map[string]PendingWrite, error) {
	if s.isClosed() {
		return nil, fmt.Errorf("%w: store closed", ErrUnavailable)
	}

	query := `SELECT key, value FROM pending_writes WHERE thread_id = ? AND step = ?`
	rows, err := s.db.QueryContext(ctx, query, threadID, step)
	if err != nil {
		return nil, fmt.Errorf("query pending writes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]PendingWrite)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan pending write: %w", err)
		}
		out[key] = PendingWrite{ThreadID: threadID, Step: step, Key: key, Value: []byte(value)}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending writes: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore[S]) List(ctx context.Context, threadID string) ([]Tuple[S], error) {
	if s.isClosed() {
		return nil, fmt.Errorf("%w: store closed", ErrUnavailable)
	}

	query := `
		SELECT step, node_id, state, suspended, done, payload, created_at
		FROM checkpoints
		WHERE thread_id = ?
		ORDER BY step ASC
	`
	rows, err := s.db.QueryContext(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("query checkpoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Tuple[S]
	for rows.Next() {
		var (
			t            Tuple[S]
			stateJSON    string
			payloadJSON  string
			suspendedInt int
			doneInt      int
			createdAt    string
		)
		t.ThreadID = threadID
		if err := rows.Scan(&t.Step, &t.NodeID, &stateJSON, &suspendedInt, &doneInt, &payloadJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		if err := json.Unmarshal([]byte(stateJSON), &t.State); err != nil {
			return nil, fmt.Errorf("unmarshal state: %w", err)
		}
		if err := json.Unmarshal([]byte(payloadJSON), &t.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		t.Suspended = suspendedInt != 0
		t.Done = doneInt != 0
		t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return out, nil
}

// Lease acquires an exclusive lease on threadID for owner. Returns
// ErrConflictingWrite if a different owner currently holds it.
func (s *SQLiteStore[S]) Lease(ctx context.Context, threadID, owner string) error {
	if s.isClosed() {
		return fmt.Errorf("%w: store closed", ErrUnavailable)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin lease tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT owner FROM thread_leases WHERE thread_id = ?`, threadID).Scan(&current)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO thread_leases (thread_id, owner, acquired_at) VALUES (?, ?, ?)`,
			threadID, owner, time.Now().UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("insert lease: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read lease: %w", err)
	case current != owner:
		return fmt.Errorf("%w: thread %s held by %s", ErrConflictingWrite, threadID, current)
	}
	return tx.Commit()
}

// Release drops the lease on threadID if owner currently holds it.
func (s *SQLiteStore[S]) Release(ctx context.Context, threadID, owner string) error {
	if s.isClosed() {
		return fmt.Errorf("%w: store closed", ErrUnavailable)
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM thread_leases WHERE thread_id = ? AND owner = ?`, threadID, owner)
	return err
}

// Close closes the underlying database connection. Safe to call more than
// once.
func (s *SQLiteStore[S]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteStore[S]) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Path returns the database file path this store was opened with.
func (s *SQLiteStore[S]) Path() string { return s.path }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
