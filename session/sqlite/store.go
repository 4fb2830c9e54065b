// Package sqlite provides a durable core.EventLog backed by SQLite, so a task
// paused on a confirmation survives process exit and can be resumed by a
// fresh process.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/hupe1980/predator/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL DEFAULT '',
	user_id    TEXT NOT NULL DEFAULT '',
	next_seq   INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	task_id  TEXT NOT NULL,
	seq      INTEGER NOT NULL,
	id       TEXT NOT NULL,
	turn     INTEGER NOT NULL,
	kind     TEXT NOT NULL,
	body     TEXT NOT NULL,
	PRIMARY KEY (task_id, seq),
	FOREIGN KEY (task_id) REFERENCES tasks(id)
);
`

// Store is a core.EventLog persisted in a SQLite database file. Every event is
// stored as its JSON encoding, which is the canonical form also used by the
// in-memory log after payload normalization.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the database at path. Use ":memory:"
// for a throwaway database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

func dsn(path string) string {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return path
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// CreateTask stores task unless it already exists, in which case the stored
// record is returned.
func (s *Store) CreateTask(ctx context.Context, task core.Task) (core.Task, error) {
	if task.ID == "" {
		return core.Task{}, fmt.Errorf("task id is required")
	}
	if task.Created.IsZero() {
		task = core.NewTask(task.ID, task.SessionID, task.UserID)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, session_id, user_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		task.ID, task.SessionID, task.UserID, formatTime(task.Created), formatTime(task.Updated),
	)
	if err != nil {
		return core.Task{}, fmt.Errorf("create task %s: %w", task.ID, err)
	}

	return s.GetTask(ctx, task.ID)
}

// GetTask returns the task record.
func (s *Store) GetTask(ctx context.Context, taskID string) (core.Task, error) {
	var (
		task             core.Task
		created, updated string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, user_id, created_at, updated_at FROM tasks WHERE id = ?`, taskID,
	).Scan(&task.ID, &task.SessionID, &task.UserID, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Task{}, fmt.Errorf("%w: %s", core.ErrTaskNotFound, taskID)
	}
	if err != nil {
		return core.Task{}, fmt.Errorf("get task %s: %w", taskID, err)
	}

	if task.Created, err = parseTime(created); err != nil {
		return core.Task{}, err
	}
	if task.Updated, err = parseTime(updated); err != nil {
		return core.Task{}, err
	}

	return task, nil
}

// Append stores ev at the end of the task's log and assigns its Seq.
func (s *Store) Append(ctx context.Context, taskID string, ev core.Event) (core.Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Event{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var seq int64
	err = tx.QueryRowContext(ctx, `SELECT next_seq FROM tasks WHERE id = ?`, taskID).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Event{}, fmt.Errorf("%w: %s", core.ErrTaskNotFound, taskID)
	}
	if err != nil {
		return core.Event{}, fmt.Errorf("append to %s: %w", taskID, err)
	}

	ev.TaskID = taskID
	ev.Seq = seq

	if err := insertEvent(ctx, tx, ev); err != nil {
		return core.Event{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET next_seq = ?, updated_at = ? WHERE id = ?`,
		seq+1, formatTime(time.Now().UTC()), taskID,
	); err != nil {
		return core.Event{}, fmt.Errorf("append to %s: %w", taskID, err)
	}

	if err := tx.Commit(); err != nil {
		return core.Event{}, fmt.Errorf("append to %s: %w", taskID, err)
	}

	return ev, nil
}

// Events returns the task's log in Seq order.
func (s *Store) Events(ctx context.Context, taskID string) ([]core.Event, error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT body FROM events WHERE task_id = ? ORDER BY seq`, taskID)
	if err != nil {
		return nil, fmt.Errorf("read events of %s: %w", taskID, err)
	}
	defer rows.Close()

	var events []core.Event
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var ev core.Event
		if err := json.Unmarshal([]byte(body), &ev); err != nil {
			return nil, fmt.Errorf("decode event of %s: %w", taskID, err)
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}

// ReplacePrefix atomically removes every event with Seq <= throughSeq and
// stores summary in their place.
func (s *Store) ReplacePrefix(ctx context.Context, taskID string, throughSeq int64, summary core.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM events WHERE task_id = ? AND seq <= ?`, taskID, throughSeq)
	if err != nil {
		return fmt.Errorf("replace prefix of %s: %w", taskID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("replace prefix: no events through seq %d in task %s", throughSeq, taskID)
	}

	summary.TaskID = taskID
	summary.Seq = throughSeq
	if err := insertEvent(ctx, tx, summary); err != nil {
		return err
	}

	return tx.Commit()
}

func insertEvent(ctx context.Context, tx *sql.Tx, ev core.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO events (task_id, seq, id, turn, kind, body) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.TaskID, ev.Seq, ev.ID, ev.Turn, string(ev.Kind), string(body),
	); err != nil {
		return fmt.Errorf("insert event %d of %s: %w", ev.Seq, ev.TaskID, err)
	}
	return nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
