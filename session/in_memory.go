package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/predator/core"
)

type taskLog struct {
	task    core.Task
	events  []core.Event
	nextSeq int64
}

// InMemoryStore is a volatile EventLog storing tasks in a process local map.
// It is safe for concurrent access and best suited for tests or ephemeral
// demo servers. Reads return copies so callers cannot mutate stored logs.
type InMemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*taskLog
}

// NewInMemoryStore constructs an empty in-memory event log.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{tasks: make(map[string]*taskLog)}
}

// CreateTask stores task unless a task with the same id exists, in which case
// the existing record is returned.
func (s *InMemoryStore) CreateTask(_ context.Context, task core.Task) (core.Task, error) {
	if task.ID == "" {
		return core.Task{}, fmt.Errorf("task id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tl, ok := s.tasks[task.ID]; ok {
		return tl.task, nil
	}
	if task.Created.IsZero() {
		task = core.NewTask(task.ID, task.SessionID, task.UserID)
	}
	s.tasks[task.ID] = &taskLog{task: task, nextSeq: 1}

	return task, nil
}

// GetTask returns the task record.
func (s *InMemoryStore) GetTask(_ context.Context, taskID string) (core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tl, ok := s.tasks[taskID]
	if !ok {
		return core.Task{}, fmt.Errorf("%w: %s", core.ErrTaskNotFound, taskID)
	}

	return tl.task, nil
}

// Append stores ev at the end of the task's log and assigns its Seq.
func (s *InMemoryStore) Append(_ context.Context, taskID string, ev core.Event) (core.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tl, ok := s.tasks[taskID]
	if !ok {
		return core.Event{}, fmt.Errorf("%w: %s", core.ErrTaskNotFound, taskID)
	}

	ev.TaskID = taskID
	ev.Seq = tl.nextSeq
	tl.nextSeq++
	tl.events = append(tl.events, ev)
	tl.task.Updated = time.Now().UTC()

	return ev, nil
}

// Events returns a copy of the task's log in Seq order.
func (s *InMemoryStore) Events(_ context.Context, taskID string) ([]core.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tl, ok := s.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrTaskNotFound, taskID)
	}

	events := make([]core.Event, len(tl.events))
	copy(events, tl.events)

	return events, nil
}

// ReplacePrefix removes every event with Seq <= throughSeq and stores summary
// in their place.
func (s *InMemoryStore) ReplacePrefix(_ context.Context, taskID string, throughSeq int64, summary core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tl, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrTaskNotFound, taskID)
	}

	cut := 0
	for cut < len(tl.events) && tl.events[cut].Seq <= throughSeq {
		cut++
	}
	if cut == 0 {
		return fmt.Errorf("replace prefix: no events through seq %d in task %s", throughSeq, taskID)
	}

	summary.TaskID = taskID
	summary.Seq = throughSeq

	rest := make([]core.Event, 0, len(tl.events)-cut+1)
	rest = append(rest, summary)
	rest = append(rest, tl.events[cut:]...)
	tl.events = rest
	tl.task.Updated = time.Now().UTC()

	return nil
}
