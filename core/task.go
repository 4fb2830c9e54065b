package core

import (
	"context"
	"time"
)

// Task is one end-to-end user request. Its events are read separately through
// an EventLog.
type Task struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Created   time.Time `json:"created"`
	Updated   time.Time `json:"updated"`
}

// NewTask creates a task record with creation timestamps set.
func NewTask(id, sessionID, userID string) Task {
	now := time.Now().UTC()
	return Task{ID: id, SessionID: sessionID, UserID: userID, Created: now, Updated: now}
}

// Closed reports whether the log ends a turn with a final answer and no
// invocation is still waiting for a decision.
func Closed(events []Event) (bool, error) {
	if len(events) == 0 || !events[len(events)-1].IsFinalAnswer() {
		return false, nil
	}
	l, err := Replay(events)
	if err != nil {
		return false, err
	}
	return len(l.Outstanding()) == 0, nil
}

// EventLog persists tasks and their append-only event logs. Implementations
// must be safe for concurrent use across tasks.
//
// Contract:
//   - Append assigns the next Seq (1-based, strictly increasing per task) and
//     TaskID, and returns the stored event
//   - Events returns the log in Seq order
//   - ReplacePrefix atomically removes every event with Seq <= throughSeq and
//     stores summary in their place with Seq == throughSeq
type EventLog interface {
	CreateTask(ctx context.Context, task Task) (Task, error)
	GetTask(ctx context.Context, taskID string) (Task, error)
	Append(ctx context.Context, taskID string, ev Event) (Event, error)
	Events(ctx context.Context, taskID string) ([]Event, error)
	ReplacePrefix(ctx context.Context, taskID string, throughSeq int64, summary Event) error
}

// Summarizer condenses a contiguous range of events into text.
type Summarizer interface {
	Summarize(ctx context.Context, events []Event) (string, error)
}
