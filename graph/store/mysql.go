package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL-backed Store[S], for multi-process deployments where
// more than one scheduler instance may tick the same workflow. Thread
// exclusivity is implemented with MySQL's session-scoped GET_LOCK/
// RELEASE_LOCK rather than a row in a leases table, so a lease is
// automatically released if the holding connection dies.
type MySQLStore[S any] struct {
	db *sql.DB
}

// NewMySQLStore opens a MySQL-backed store using dsn (a go-sql-driver/mysql
// data source name) and migrates its schema.
func NewMySQLStore[S any](ctx context.Context, dsn string) (*MySQLStore[S], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping mysql: %v", ErrUnavailable, err)
	}

	s := &MySQLStore[S]{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

func (s *MySQLStore[S]) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS checkpoints (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			thread_id VARCHAR(191) NOT NULL,
			step INT NOT NULL,
			node_id VARCHAR(191) NOT NULL,
			state JSON NOT NULL,
			suspended TINYINT NOT NULL DEFAULT 0,
			done TINYINT NOT NULL DEFAULT 0,
			payload JSON NOT NULL,
			created_at DATETIME(6) NOT NULL,
			UNIQUE KEY uniq_thread_step (thread_id, step),
			INDEX idx_thread (thread_id)
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS pending_writes (
			thread_id VARCHAR(191) NOT NULL,
			step INT NOT NULL,
			` + "`key`" + ` VARCHAR(191) NOT NULL,
			value JSON NOT NULL,
			PRIMARY KEY (thread_id, step, ` + "`key`" + `)
		) ENGINE=InnoDB`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *MySQLStore[S]) Put(ctx context.Context, t Tuple[S]) error {
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
		ON DUPLICATE KEY UPDATE thread_id = thread_id
	`
	_, err = s.db.ExecContext(ctx, query,
		t.ThreadID, t.Step, t.NodeID, string(stateJSON), boolToInt(t.Suspended), boolToInt(t.Done),
		string(payloadJSON), t.CreatedAt.Format("2006-01-02 15:04:05.000000"))
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

func (s *MySQLStore[S]) PutWrites(ctx context.Context, w PendingWrite) error {
	query := `
		INSERT INTO pending_writes (thread_id, step, ` + "`key`" + `, value)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE value = VALUES(value)
	`
	_, err := s.db.ExecContext(ctx, query, w.ThreadID, w.Step, w.Key, string(w.Value))
	if err != nil {
		return fmt.Errorf("insert pending write: %w", err)
	}
	return nil
}

func (s *MySQLStore[S]) GetTuple(ctx context.Context, threadID string) (Tuple[S], error) {
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
		createdAt    time.Time
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
	t.CreatedAt = createdAt
	return t, nil
}

func (s *MySQLStore[S]) GetWrites(ctx context.Context, threadID string, step int) (map[string]PendingWrite, error) {
	query := "SELECT `key`, value FROM pending_writes WHERE thread_id = ? AND step = ?"
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
	return out, rows.Err()
}

func (s *MySQLStore[S]) List(ctx context.Context, threadID string) ([]Tuple[S], error) {
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
			createdAt    time.Time
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
		t.CreatedAt = createdAt
		out = append(out, t)
	}
	return out, rows.Err()
}

// Lease acquires a session-scoped named lock for threadID using MySQL's
// GET_LOCK, so the lease is automatically dropped if this connection dies
// without calling Release. owner is recorded for diagnostics only; MySQL's
// lock itself is connection-scoped, not owner-scoped.
func (s *MySQLStore[S]) Lease(ctx context.Context, threadID, owner string) error {
	var acquired int
	err := s.db.QueryRowContext(ctx, "SELECT GET_LOCK(?, 5)", lockName(threadID)).Scan(&acquired)
	if err != nil {
		return fmt.Errorf("%w: get_lock: %v", ErrUnavailable, err)
	}
	if acquired != 1 {
		return fmt.Errorf("%w: thread %s locked elsewhere (owner=%s)", ErrConflictingWrite, threadID, owner)
	}
	return nil
}

// Release frees the named lock acquired by Lease.
func (s *MySQLStore[S]) Release(ctx context.Context, threadID, _ string) error {
	_, err := s.db.ExecContext(ctx, "SELECT RELEASE_LOCK(?)", lockName(threadID))
	return err
}

func lockName(threadID string) string {
	return "agentgraph_thread:" + threadID
}

// Close closes the underlying connection pool.
func (s *MySQLStore[S]) Close() error { return s.db.Close() }
